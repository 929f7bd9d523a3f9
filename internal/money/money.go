// Package money converts between major-unit decimal strings and integer cents.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// ErrInvalidAmount rejects amounts that are not finite, non-negative, two-decimal figures.
var ErrInvalidAmount = shared.E(shared.KindInvalidInput, "money: amount must be a non-negative figure with at most 2 decimals")

// MaxCents bounds any single cents figure accepted from callers.
const MaxCents int64 = 1 << 53

var hundred = decimal.NewFromInt(100)

// ParseCents parses "95.60" into 9560.
func ParseCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d)
}

// FromDecimal converts a major-unit decimal into cents.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return cents.IntPart(), nil
}

// Format renders cents as a signed major-unit string, e.g. -60 -> "-0.60".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Amount is a non-negative cents value that decodes from either a JSON string in major
// units ("95.60") or a JSON number in major units (95.6).
type Amount int64

// Cents returns the value in cents.
func (a Amount) Cents() int64 { return int64(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalidAmount
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return ErrInvalidAmount
		}
	} else {
		raw = string(data)
	}
	cents, err := ParseCents(raw)
	if err != nil {
		return err
	}
	*a = Amount(cents)
	return nil
}

// MarshalJSON renders the amount as a major-unit string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(int64(a)))
}
