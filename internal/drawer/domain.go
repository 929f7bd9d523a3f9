// Package drawer records drawer counts at shift checkpoints and tracks the review of
// out-of-threshold variances.
package drawer

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// CountType names the checkpoint a count was taken at.
type CountType string

const (
	CountStart      CountType = "start"
	CountChangeover CountType = "changeover"
	CountEnd        CountType = "end"
)

// Valid reports whether the type is one of the fixed checkpoints.
func (c CountType) Valid() bool {
	switch c {
	case CountStart, CountChangeover, CountEnd:
		return true
	}
	return false
}

// Count mirrors a drawer_counts row.
type Count struct {
	ID              int64      `json:"id"`
	StoreID         int64      `json:"store_id"`
	ShiftID         int64      `json:"shift_id"`
	CountType       CountType  `json:"count_type"`
	CountedAt       time.Time  `json:"counted_at"`
	DrawerCents     int64      `json:"drawer_cents"`
	ExpectedCents   int64      `json:"expected_cents"`
	VarianceCents   int64      `json:"variance_cents"`
	Confirmed       bool       `json:"confirmed"`
	OutOfThreshold  bool       `json:"out_of_threshold"`
	NotifiedManager bool       `json:"notified_manager"`
	Note            *string    `json:"note,omitempty"`
	CreatedBy       int64      `json:"created_by"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      *int64     `json:"reviewed_by,omitempty"`
	ReviewNote      *string    `json:"review_note,omitempty"`
}

// Reviewed reports whether a manager has signed the variance off.
func (c Count) Reviewed() bool { return c.ReviewedAt != nil }

var (
	// ErrCountNotFound covers absent counts and counts already reviewed or outside the caller's stores.
	ErrCountNotFound = shared.E(shared.KindNotFound, "drawer: count not found")
	// ErrInvalidCountType rejects checkpoint names outside start/changeover/end.
	ErrInvalidCountType = shared.E(shared.KindInvalidInput, "drawer: unknown count type")
	// ErrInvalidCount rejects malformed count submissions.
	ErrInvalidCount = shared.E(shared.KindInvalidInput, "drawer: invalid count")
)

// RecordCountInput captures a checkpoint count.
type RecordCountInput struct {
	StoreID     int64
	ShiftID     int64
	CountType   CountType
	DrawerCents int64
	Confirmed   bool
	Note        string
	ActorID     int64
}

// Validate performs input validation.
func (in RecordCountInput) Validate() error {
	if !in.CountType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCountType, in.CountType)
	}
	switch {
	case in.StoreID <= 0:
		return fmt.Errorf("%w: store required", ErrInvalidCount)
	case in.ShiftID <= 0:
		return fmt.Errorf("%w: shift required", ErrInvalidCount)
	case in.ActorID <= 0:
		return fmt.Errorf("%w: actor required", ErrInvalidCount)
	case in.DrawerCents < 0:
		return fmt.Errorf("%w: drawer amount must not be negative", ErrInvalidCount)
	}
	return nil
}

// ReviewInput signs off an out-of-threshold count.
type ReviewInput struct {
	CountID    int64
	ReviewerID int64
	Note       string
	// StoreIDs restricts the review to the reviewer's authorized stores.
	StoreIDs []int64
}

// Validate performs input validation.
func (in ReviewInput) Validate() error {
	if in.CountID <= 0 || in.ReviewerID <= 0 {
		return fmt.Errorf("%w: count and reviewer required", ErrInvalidCount)
	}
	return nil
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
