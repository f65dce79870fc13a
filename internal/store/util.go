package store

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func unmarshalResult(data string) (*model.ExtractionResult, error) {
	var result model.ExtractionResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal result")
	}
	return &result, nil
}
