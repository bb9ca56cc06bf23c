package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DecimalString renders a JSON scalar as a decimal string. Strings are
// returned verbatim, numbers are normalized without exponent. Anything
// else (objects, arrays, null, bools) yields nil.
func DecimalString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return &s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return nil
		}
		s := d.String()
		return &s
	default:
		return nil
	}
}

// OptionalString decodes a JSON string field, nil when absent, null, empty
// or not a string.
func OptionalString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	return &s
}
