// Package tolerance grades a pair of cash figures against a configured threshold.
package tolerance

import "github.com/odyssey-erp/cashrecon/internal/shared"

// ErrNegativeTolerance rejects a misconfigured threshold.
var ErrNegativeTolerance = shared.E(shared.KindInvalidInput, "tolerance: tolerance must not be negative")

// Result is the outcome of grading actual against expected.
type Result struct {
	WithinTolerance bool
	// VarianceCents is actual minus expected; overage is positive.
	VarianceCents int64
}

// OutOfThreshold is the inverse of WithinTolerance.
func (r Result) OutOfThreshold() bool { return !r.WithinTolerance }

// Band places a variance relative to a tolerance.
type Band uint8

const (
	// BandExact means no variance at all.
	BandExact Band = iota
	// BandWithin means a non-zero variance inside the tolerance.
	BandWithin
	// BandOutside means the variance exceeds the tolerance.
	BandOutside
)

func (b Band) String() string {
	switch b {
	case BandExact:
		return "exact"
	case BandWithin:
		return "within"
	default:
		return "outside"
	}
}

// Grade compares actual to expected. A figure is out of threshold when
// |actual-expected| > tolerance.
func Grade(expectedCents, actualCents, toleranceCents int64) (Result, error) {
	if toleranceCents < 0 {
		return Result{}, ErrNegativeTolerance
	}
	variance := actualCents - expectedCents
	return Result{
		WithinTolerance: Abs(variance) <= toleranceCents,
		VarianceCents:   variance,
	}, nil
}

// BandOf classifies a signed variance.
func BandOf(varianceCents, toleranceCents int64) (Band, error) {
	if toleranceCents < 0 {
		return BandOutside, ErrNegativeTolerance
	}
	switch abs := Abs(varianceCents); {
	case abs == 0:
		return BandExact, nil
	case abs <= toleranceCents:
		return BandWithin, nil
	default:
		return BandOutside, nil
	}
}

// Abs returns the absolute value of v.
func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
