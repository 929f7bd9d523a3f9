// Package rollover reconciles the two independently reported daily sales totals of a store
// into one agreed figure.
package rollover

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Source identifies who reported a figure.
type Source string

const (
	SourceOpener Source = "opener"
	SourceCloser Source = "closer"
)

// Valid reports whether the source is known.
func (s Source) Valid() bool {
	return s == SourceOpener || s == SourceCloser
}

// Opposite returns the other reporting side.
func (s Source) Opposite() Source {
	if s == SourceOpener {
		return SourceCloser
	}
	return SourceOpener
}

// State is the persisted state of a (store, business date).
type State string

const (
	StateEmpty         State = "EMPTY"
	StatePending       State = "PENDING"
	StateMatched       State = "MATCHED"
	StateMismatchSaved State = "MISMATCH_SAVED"
)

// Settled reports whether the pair is immutable.
func (s State) Settled() bool {
	return s == StateMatched || s == StateMismatchSaved
}

// OutcomeKind tags the result of a submission.
type OutcomeKind string

const (
	OutcomeMatched            OutcomeKind = "MATCHED"
	OutcomePendingSecondEntry OutcomeKind = "PENDING_SECOND_ENTRY"
	OutcomeMismatchSaved      OutcomeKind = "MISMATCH_SAVED"
	// OutcomeMismatchDetected asks the caller to confirm; nothing was written.
	OutcomeMismatchDetected OutcomeKind = "MISMATCH_DETECTED"
)

// Entry mirrors a rollover_entries row.
type Entry struct {
	ID           int64     `json:"id"`
	StoreID      int64     `json:"store_id"`
	BusinessDate time.Time `json:"business_date"`
	Source       Source    `json:"source"`
	AmountCents  int64     `json:"amount_cents"`
	Mismatch     bool      `json:"mismatch"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Outcome is the decision for one submission.
type Outcome struct {
	Kind OutcomeKind
	// Entry is the submitted entry once persisted; nil for OutcomeMismatchDetected.
	Entry *Entry
	// Opposite is the other side's entry when one exists.
	Opposite *Entry
	// DifferenceCents is submitted minus opposite; zero without an opposite entry.
	DifferenceCents int64
}

// RequiresConfirmation reports whether the caller must resubmit with ForceMismatch.
func (o Outcome) RequiresConfirmation() bool {
	return o.Kind == OutcomeMismatchDetected
}

// Day is the reconciliation view of one store's business date.
type Day struct {
	StoreID      int64
	BusinessDate time.Time
	State        State
	Opener       *Entry
	Closer       *Entry
}

// AgreedTotal returns the single agreed figure, available only once both sides matched.
func (d Day) AgreedTotal() (int64, bool) {
	if d.State != StateMatched || d.Opener == nil {
		return 0, false
	}
	return d.Opener.AmountCents, true
}

var (
	// ErrInvalidSubmission rejects malformed submissions before any write.
	ErrInvalidSubmission = shared.E(shared.KindInvalidInput, "rollover: invalid submission")
	// ErrAlreadyReported indicates the source already reported for the day.
	ErrAlreadyReported = shared.E(shared.KindConflict, "rollover: source already reported for this day")
	// ErrDaySettled indicates the pair is matched or saved as a mismatch and can no longer change.
	ErrDaySettled = shared.E(shared.KindLocked, "rollover: day already settled")
)

// SubmitInput is one side's reported total.
type SubmitInput struct {
	StoreID       int64
	BusinessDate  time.Time
	AmountCents   int64
	Source        Source
	ForceMismatch bool
	ActorID       int64
}

// Validate checks the submission against the current time.
func (in SubmitInput) Validate(now time.Time) error {
	if !in.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidSubmission, in.Source)
	}
	switch {
	case in.StoreID <= 0:
		return fmt.Errorf("%w: store required", ErrInvalidSubmission)
	case in.ActorID <= 0:
		return fmt.Errorf("%w: actor required", ErrInvalidSubmission)
	case in.AmountCents < 0:
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidSubmission)
	}
	return shared.ValidateBusinessDate(in.BusinessDate, now)
}
