package closeout

import "github.com/odyssey-erp/cashrecon/internal/tolerance"

// ReviewPolicy decides whether a warn result needs a manager.
type ReviewPolicy struct {
	WarnRequiresReview bool
}

// DefaultReviewPolicy sends every non-pass closeout to review.
var DefaultReviewPolicy = ReviewPolicy{WarnRequiresReview: true}

// Evaluation holds the derived fields of a graded closeout.
type Evaluation struct {
	Status                Status
	DenomTotalCents       int64
	VarianceCents         int64
	DenomVarianceCents    int64
	RequiresManagerReview bool
}

// ComputeExpectedDeposit subtracts expenses from cash sales. A negative result is returned as is.
func ComputeExpectedDeposit(cashSalesCents int64, expenses []Expense) int64 {
	expected := cashSalesCents
	for _, e := range expenses {
		expected -= e.AmountCents
	}
	return expected
}

// Evaluate grades the declared deposit against expected and the counted denominations
// against the declared deposit.
func Evaluate(denoms Breakdown, actualCents, expectedCents, toleranceCents int64, policy ReviewPolicy) (Evaluation, error) {
	denomTotal := denoms.TotalCents()
	variance := actualCents - expectedCents
	band, err := tolerance.BandOf(variance, toleranceCents)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{
		DenomTotalCents:    denomTotal,
		VarianceCents:      variance,
		DenomVarianceCents: denomTotal - actualCents,
	}
	switch band {
	case tolerance.BandExact:
		ev.Status = StatusPass
	case tolerance.BandWithin:
		ev.Status = StatusWarn
	default:
		ev.Status = StatusFail
	}
	ev.RequiresManagerReview = ev.Status == StatusFail ||
		ev.DenomVarianceCents != 0 ||
		(ev.Status == StatusWarn && policy.WarnRequiresReview)
	return ev, nil
}
