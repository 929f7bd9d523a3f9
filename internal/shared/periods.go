package shared

import (
	"fmt"
	"strings"
	"time"
)

// BusinessDateLayout is the wire format of a business date.
const BusinessDateLayout = "2006-01-02"

// ErrInvalidBusinessDate indicates a malformed or out-of-range business date.
var ErrInvalidBusinessDate = E(KindInvalidInput, "business date must be YYYY-MM-DD and not in the future")

// ParseBusinessDate parses a calendar date with no time component, normalised to UTC midnight.
func ParseBusinessDate(raw string) (time.Time, error) {
	d, err := time.Parse(BusinessDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidBusinessDate, raw)
	}
	return d, nil
}

// BusinessDay truncates t to its calendar date in UTC.
func BusinessDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBusinessDate rejects zero dates, dates carrying a time component and dates after now.
func ValidateBusinessDate(date, now time.Time) error {
	if date.IsZero() {
		return ErrInvalidBusinessDate
	}
	if !BusinessDay(date).Equal(date.UTC()) {
		return ErrInvalidBusinessDate
	}
	if date.After(BusinessDay(now)) {
		return ErrInvalidBusinessDate
	}
	return nil
}
