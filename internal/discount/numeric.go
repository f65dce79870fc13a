package discount

import "strconv"

func parseFloatPtr(s string) *float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func parseIntPtr(s string) *int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func mustFloat(s string) float64 {
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
