package rollover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Repository loads rollover days and opens transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LoadDay(ctx context.Context, storeID int64, businessDate time.Time) (Day, error)
}

// TxRepository exposes the operations run under the day lock.
type TxRepository interface {
	// LockDay creates the day row if needed, locks it and returns its state.
	LockDay(ctx context.Context, storeID int64, businessDate time.Time) (State, error)
	LoadEntry(ctx context.Context, storeID int64, businessDate time.Time, source Source) (*Entry, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	SetState(ctx context.Context, storeID int64, businessDate time.Time, state State) error
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service matches opener and closer totals.
type Service struct {
	repo    Repository
	audit   AuditRecorder
	metrics *observability.ReconMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds the service. audit may be nil.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches reconciliation counters.
func (s *Service) WithMetrics(m *observability.ReconMetrics) {
	s.metrics = m
}

// Submit records one side's total for the day and decides the outcome. All reads and writes
// for the (store, date) happen under the day row lock.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Outcome, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		state, err := tx.LockDay(ctx, in.StoreID, in.BusinessDate)
		if err != nil {
			return err
		}
		if state.Settled() {
			return ErrDaySettled
		}
		own, err := tx.LoadEntry(ctx, in.StoreID, in.BusinessDate, in.Source)
		if err != nil {
			return err
		}
		if own != nil {
			return ErrAlreadyReported
		}
		opposite, err := tx.LoadEntry(ctx, in.StoreID, in.BusinessDate, in.Source.Opposite())
		if err != nil {
			return err
		}
		out, err = decide(ctx, tx, in, opposite, now)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	s.metrics.RolloverOutcome(string(out.Kind))
	if out.Kind == OutcomeMismatchSaved {
		s.recordMismatch(ctx, in, out)
	}
	return out, nil
}

func decide(ctx context.Context, tx TxRepository, in SubmitInput, opposite *Entry, now time.Time) (Outcome, error) {
	entry := Entry{
		StoreID:      in.StoreID,
		BusinessDate: in.BusinessDate,
		Source:       in.Source,
		AmountCents:  in.AmountCents,
		CreatedBy:    in.ActorID,
		CreatedAt:    now.UTC(),
	}
	out := Outcome{Opposite: opposite}
	var next State
	switch {
	case opposite == nil:
		out.Kind, next = OutcomePendingSecondEntry, StatePending
	case opposite.AmountCents == in.AmountCents:
		out.Kind, next = OutcomeMatched, StateMatched
	case !in.ForceMismatch:
		out.Kind = OutcomeMismatchDetected
		out.DifferenceCents = in.AmountCents - opposite.AmountCents
		return out, nil
	default:
		out.Kind, next = OutcomeMismatchSaved, StateMismatchSaved
		out.DifferenceCents = in.AmountCents - opposite.AmountCents
		entry.Mismatch = true
	}
	saved, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Outcome{}, fmt.Errorf("rollover: insert entry: %w", err)
	}
	if err := tx.SetState(ctx, in.StoreID, in.BusinessDate, next); err != nil {
		return Outcome{}, err
	}
	out.Entry = &saved
	return out, nil
}

func (s *Service) recordMismatch(ctx context.Context, in SubmitInput, out Outcome) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  in.ActorID,
		Action:   shared.AuditRolloverMismatch,
		Entity:   "rollover_day",
		EntityID: fmt.Sprintf("%d:%s", in.StoreID, in.BusinessDate.Format(shared.BusinessDateLayout)),
		Meta: map[string]any{
			"source":           string(in.Source),
			"amount_cents":     in.AmountCents,
			"difference_cents": out.DifferenceCents,
		},
	})
	if err != nil {
		s.logger.Warn("rollover mismatch audit", slog.Int64("store_id", in.StoreID), slog.Any("error", err))
	}
}

// Day returns the day's state and entries. A day nobody reported on is EMPTY.
func (s *Service) Day(ctx context.Context, storeID int64, businessDate time.Time) (Day, error) {
	if err := shared.ValidateBusinessDate(businessDate, s.now()); err != nil {
		return Day{}, err
	}
	return s.repo.LoadDay(ctx, storeID, businessDate)
}

// AgreedTotal returns the matched figure for the day, if any.
func (s *Service) AgreedTotal(ctx context.Context, storeID int64, businessDate time.Time) (int64, bool, error) {
	day, err := s.Day(ctx, storeID, businessDate)
	if err != nil {
		return 0, false, err
	}
	total, ok := day.AgreedTotal()
	return total, ok, nil
}
