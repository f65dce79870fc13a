package model

// DiscountRecord holds normalized discount metadata recovered from the
// structured record enclosing a promo code. A record with every field unset
// is treated as absent, never as a zero-value discount.
type DiscountRecord struct {
	PercentOff *float64 `json:"percent_off,omitempty"`
	AmountOff  *float64 `json:"amount_off,omitempty"`
	// AmountOffCents is a cents-denominated amount kept distinct from
	// AmountOff; the two are never merged.
	AmountOffCents *int64 `json:"amount_off_cents,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

// Present reports whether the record carries at least one discount value.
func (d *DiscountRecord) Present() bool {
	if d == nil {
		return false
	}
	return d.PercentOff != nil || d.AmountOff != nil || d.AmountOffCents != nil
}
