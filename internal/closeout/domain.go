// Package closeout implements the per-store, per-day safe closeout: expected versus actual
// deposit grading, manager review and lock-down.
package closeout

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Status is the lifecycle state of a closeout.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPass   Status = "pass"
	StatusWarn   Status = "warn"
	StatusFail   Status = "fail"
	StatusLocked Status = "locked"
)

// denominationValues maps breakdown codes to their unit value in cents.
var denominationValues = map[string]int64{
	"bill_100": 10000,
	"bill_50":  5000,
	"bill_20":  2000,
	"bill_10":  1000,
	"bill_5":   500,
	"bill_2":   200,
	"bill_1":   100,
	"coin_100": 100,
	"coin_50":  50,
	"coin_25":  25,
	"coin_10":  10,
	"coin_5":   5,
	"coin_1":   1,
}

// DenominationCodes lists the accepted breakdown codes, largest first.
func DenominationCodes() []string {
	codes := make([]string, 0, len(denominationValues))
	for code := range denominationValues {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		vi, vj := denominationValues[codes[i]], denominationValues[codes[j]]
		if vi != vj {
			return vi > vj
		}
		return codes[i] < codes[j]
	})
	return codes
}

// Breakdown counts bills and coins by denomination code.
type Breakdown map[string]int64

// Validate rejects unknown codes, negative counts and totals above money.MaxCents.
func (b Breakdown) Validate() error {
	var total int64
	for code, count := range b {
		value, ok := denominationValues[code]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDenomination, code)
		}
		if count < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrInvalidCloseout, code)
		}
		if count > (money.MaxCents-total)/value {
			return fmt.Errorf("%w: breakdown total too large", ErrInvalidCloseout)
		}
		total += count * value
	}
	return nil
}

// TotalCents sums the breakdown. Unknown codes contribute nothing.
func (b Breakdown) TotalCents() int64 {
	var total int64
	for code, count := range b {
		total += denominationValues[code] * count
	}
	return total
}

// Expense is an append-only line item paid out of the day's cash.
type Expense struct {
	ID          int64     `json:"id"`
	CloseoutID  int64     `json:"closeout_id"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Note        *string   `json:"note,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExpenseInput is a new expense line.
type ExpenseInput struct {
	AmountCents int64
	Category    string
	Note        string
}

// Closeout mirrors a safe_closeouts row.
type Closeout struct {
	ID                    int64      `json:"id"`
	StoreID               int64      `json:"store_id"`
	BusinessDate          time.Time  `json:"business_date"`
	ShiftID               *int64     `json:"shift_id,omitempty"`
	ProfileID             *int64     `json:"profile_id,omitempty"`
	Status                Status     `json:"status"`
	CashSalesCents        int64      `json:"cash_sales_cents"`
	CardSalesCents        int64      `json:"card_sales_cents"`
	OtherSalesCents       int64      `json:"other_sales_cents"`
	ExpectedDepositCents  int64      `json:"expected_deposit_cents"`
	ActualDepositCents    int64      `json:"actual_deposit_cents"`
	DenomTotalCents       int64      `json:"denom_total_cents"`
	DenomVarianceCents    int64      `json:"denom_variance_cents"`
	DrawerCountCents      *int64     `json:"drawer_count_cents,omitempty"`
	VarianceCents         int64      `json:"variance_cents"`
	Denominations         Breakdown  `json:"denomination_breakdown"`
	DepositOverrideReason *string    `json:"deposit_override_reason,omitempty"`
	ValidationAttempts    int        `json:"validation_attempts"`
	RequiresManagerReview bool       `json:"requires_manager_review"`
	ReviewedAt            *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy            *int64     `json:"reviewed_by,omitempty"`
	ReviewNote            *string    `json:"review_note,omitempty"`
	EditedAt              *time.Time `json:"edited_at,omitempty"`
	EditedBy              *int64     `json:"edited_by,omitempty"`
	HistoricalBackfill    bool       `json:"is_historical_backfill"`
	CreatedBy             int64      `json:"created_by"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Expenses              []Expense  `json:"expenses"`
}

// Locked reports whether the closeout has been signed off.
func (c Closeout) Locked() bool { return c.Status == StatusLocked }

var (
	// ErrNotFound covers absent closeouts and closeouts outside the caller's stores.
	ErrNotFound = shared.E(shared.KindNotFound, "closeout: not found")
	// ErrLocked rejects a resubmission of a locked closeout; use Amend.
	ErrLocked = shared.E(shared.KindLocked, "closeout: locked, use the amend path")
	// ErrAlreadyLocked indicates another reviewer locked the closeout first.
	ErrAlreadyLocked = shared.E(shared.KindLocked, "closeout: already locked")
	// ErrReviewNotRequired rejects locking a clean pass without an override reason.
	ErrReviewNotRequired = shared.E(shared.KindInvalidInput, "closeout: review not required, provide an override reason")
	// ErrNotGraded rejects locking a closeout that was never submitted.
	ErrNotGraded = shared.E(shared.KindInvalidInput, "closeout: not graded yet")
	// ErrNotLocked rejects amending an unlocked closeout; resubmit instead.
	ErrNotLocked = shared.E(shared.KindInvalidInput, "closeout: only locked closeouts can be amended")
	// ErrLedgerDisabled indicates the store does not run the cash ledger.
	ErrLedgerDisabled = shared.E(shared.KindInvalidInput, "closeout: ledger disabled for store")
	// ErrCashSalesUnknown indicates no cash sales were given and the rollover is not matched.
	ErrCashSalesUnknown = shared.E(shared.KindInvalidInput, "closeout: cash sales unknown, rollover not matched")
	// ErrUnknownDenomination rejects breakdown codes outside the catalogue.
	ErrUnknownDenomination = shared.E(shared.KindInvalidInput, "closeout: unknown denomination")
	// ErrInvalidCloseout rejects malformed submissions.
	ErrInvalidCloseout = shared.E(shared.KindInvalidInput, "closeout: invalid submission")
)

// SubmitInput is a closeout submission for a (store, business date).
type SubmitInput struct {
	StoreID      int64
	BusinessDate time.Time
	ShiftID      *int64
	ProfileID    *int64
	// CashSalesCents falls back to the matched rollover total when nil.
	CashSalesCents     *int64
	CardSalesCents     int64
	OtherSalesCents    int64
	Expenses           []ExpenseInput
	Denominations      Breakdown
	ActualDepositCents int64
	HistoricalBackfill bool
	ActorID            int64
}

// Validate checks the submission against the current time. Nothing is written on failure.
func (in SubmitInput) Validate(now time.Time) error {
	switch {
	case in.StoreID <= 0:
		return fmt.Errorf("%w: store required", ErrInvalidCloseout)
	case in.ActorID <= 0:
		return fmt.Errorf("%w: actor required", ErrInvalidCloseout)
	case in.CashSalesCents != nil && *in.CashSalesCents < 0:
		return fmt.Errorf("%w: cash sales must not be negative", ErrInvalidCloseout)
	case in.CardSalesCents < 0 || in.OtherSalesCents < 0:
		return fmt.Errorf("%w: sales must not be negative", ErrInvalidCloseout)
	case in.ActualDepositCents < 0:
		return fmt.Errorf("%w: actual deposit must not be negative", ErrInvalidCloseout)
	case in.ShiftID != nil && *in.ShiftID <= 0:
		return fmt.Errorf("%w: invalid shift", ErrInvalidCloseout)
	}
	var spent int64
	for i, e := range in.Expenses {
		if e.AmountCents < 0 {
			return fmt.Errorf("%w: expense %d amount must not be negative", ErrInvalidCloseout, i)
		}
		if e.AmountCents > money.MaxCents-spent {
			return fmt.Errorf("%w: expenses total too large", ErrInvalidCloseout)
		}
		spent += e.AmountCents
		if strings.TrimSpace(e.Category) == "" {
			return fmt.Errorf("%w: expense %d category required", ErrInvalidCloseout, i)
		}
	}
	if err := in.Denominations.Validate(); err != nil {
		return err
	}
	return shared.ValidateBusinessDate(in.BusinessDate, now)
}

// LockInput is a manager sign-off.
type LockInput struct {
	CloseoutID int64
	ReviewerID int64
	// OverrideReason allows locking a clean pass that did not require review.
	OverrideReason string
	StoreIDs       []int64
}

// AmendInput edits a locked closeout.
type AmendInput struct {
	CloseoutID int64
	EditorID   int64
	Reason     string
	// ActualDepositCents keeps the current figure when nil.
	ActualDepositCents *int64
	// Denominations keeps the current breakdown when nil.
	Denominations Breakdown
	StoreIDs      []int64
}

// Validate performs input validation.
func (in AmendInput) Validate() error {
	switch {
	case in.CloseoutID <= 0 || in.EditorID <= 0:
		return fmt.Errorf("%w: closeout and editor required", ErrInvalidCloseout)
	case strings.TrimSpace(in.Reason) == "":
		return fmt.Errorf("%w: amend reason required", ErrInvalidCloseout)
	case in.ActualDepositCents != nil && *in.ActualDepositCents < 0:
		return fmt.Errorf("%w: actual deposit must not be negative", ErrInvalidCloseout)
	}
	return in.Denominations.Validate()
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
