package closeout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/drawer"
	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Repository loads closeouts and opens transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, storeID int64, businessDate time.Time) (Closeout, error)
	GetByID(ctx context.Context, id int64) (Closeout, error)
	ListPendingReview(ctx context.Context, storeIDs []int64, limit int) ([]Closeout, error)
}

// TxRepository exposes the operations run under the closeout row lock.
type TxRepository interface {
	// LockOrCreate returns the (store, date) row locked for update, creating it in draft.
	LockOrCreate(ctx context.Context, storeID int64, businessDate time.Time, actorID int64) (Closeout, error)
	// LockByID locks a closeout in one of the given stores.
	LockByID(ctx context.Context, id int64, storeIDs []int64) (Closeout, error)
	DeleteExpenses(ctx context.Context, closeoutID int64) error
	InsertExpenses(ctx context.Context, closeoutID int64, expenses []ExpenseInput, actorID int64) error
	ListExpenses(ctx context.Context, closeoutID int64) ([]Expense, error)
	Save(ctx context.Context, c Closeout) (Closeout, error)
}

// SettingsProvider yields the store's tolerance and ledger switch.
type SettingsProvider interface {
	Get(ctx context.Context, storeID int64) (settings.Settings, error)
}

// RolloverTotals supplies the agreed daily cash total.
type RolloverTotals interface {
	AgreedTotal(ctx context.Context, storeID int64, businessDate time.Time) (int64, bool, error)
}

// DrawerCounts supplies the shift's closing drawer count.
type DrawerCounts interface {
	LatestForShift(ctx context.Context, shiftID int64, countType drawer.CountType) (drawer.Count, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates safe closeout submission, review and amendment.
type Service struct {
	repo      Repository
	settings  SettingsProvider
	rollovers RolloverTotals
	drawers   DrawerCounts
	audit     AuditRecorder
	policy    ReviewPolicy
	metrics   *observability.ReconMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// Deps collects the collaborators of the service. Rollovers, Drawers and Audit may be nil.
type Deps struct {
	Repo      Repository
	Settings  SettingsProvider
	Rollovers RolloverTotals
	Drawers   DrawerCounts
	Audit     AuditRecorder
	Policy    ReviewPolicy
	Logger    *slog.Logger
}

// NewService constructs a Service instance.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      deps.Repo,
		settings:  deps.Settings,
		rollovers: deps.Rollovers,
		drawers:   deps.Drawers,
		audit:     deps.Audit,
		policy:    deps.Policy,
		logger:    logger,
		now:       time.Now,
	}
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

// Submit grades a closeout submission, creating the day's closeout on first use.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Closeout, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return Closeout{}, err
	}
	cfg, err := s.settings.Get(ctx, in.StoreID)
	if err != nil {
		return Closeout{}, err
	}
	if !cfg.LedgerEnabled && !in.HistoricalBackfill {
		return Closeout{}, ErrLedgerDisabled
	}
	cashSales, err := s.cashSales(ctx, in)
	if err != nil {
		return Closeout{}, err
	}
	drawerCents, err := s.closingDrawer(ctx, in.ShiftID)
	if err != nil {
		return Closeout{}, err
	}

	var out Closeout
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.LockOrCreate(ctx, in.StoreID, in.BusinessDate, in.ActorID)
		if err != nil {
			return err
		}
		if c.Locked() {
			return ErrLocked
		}
		// The submitted list is the full expense set until the closeout is locked.
		if err := tx.DeleteExpenses(ctx, c.ID); err != nil {
			return err
		}
		if len(in.Expenses) > 0 {
			if err := tx.InsertExpenses(ctx, c.ID, in.Expenses, in.ActorID); err != nil {
				return err
			}
		}
		expenses, err := tx.ListExpenses(ctx, c.ID)
		if err != nil {
			return err
		}
		expected := ComputeExpectedDeposit(cashSales, expenses)
		ev, err := Evaluate(in.Denominations, in.ActualDepositCents, expected, cfg.DepositToleranceCents, s.policy)
		if err != nil {
			return err
		}
		if in.HistoricalBackfill {
			ev.RequiresManagerReview = false
		}
		c.ShiftID = in.ShiftID
		c.ProfileID = in.ProfileID
		c.CashSalesCents = cashSales
		c.CardSalesCents = in.CardSalesCents
		c.OtherSalesCents = in.OtherSalesCents
		c.ExpectedDepositCents = expected
		c.ActualDepositCents = in.ActualDepositCents
		c.Denominations = in.Denominations
		c.DrawerCountCents = drawerCents
		c.HistoricalBackfill = in.HistoricalBackfill
		c.ValidationAttempts++
		applyEvaluation(&c, ev)
		c.Status = ev.Status
		c.UpdatedAt = now.UTC()
		saved, err := tx.Save(ctx, c)
		if err != nil {
			return err
		}
		saved.Expenses = expenses
		out = saved
		return nil
	})
	if err != nil {
		return Closeout{}, err
	}
	s.metrics.CloseoutGraded(string(out.Status), out.RequiresManagerReview)
	return out, nil
}

func (s *Service) cashSales(ctx context.Context, in SubmitInput) (int64, error) {
	if in.CashSalesCents != nil {
		return *in.CashSalesCents, nil
	}
	if s.rollovers == nil {
		return 0, ErrCashSalesUnknown
	}
	total, ok, err := s.rollovers.AgreedTotal(ctx, in.StoreID, in.BusinessDate)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrCashSalesUnknown
	}
	return total, nil
}

func (s *Service) closingDrawer(ctx context.Context, shiftID *int64) (*int64, error) {
	if shiftID == nil || s.drawers == nil {
		return nil, nil
	}
	count, err := s.drawers.LatestForShift(ctx, *shiftID, drawer.CountEnd)
	if err != nil {
		if errors.Is(err, drawer.ErrCountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cents := count.DrawerCents
	return &cents, nil
}

func applyEvaluation(c *Closeout, ev Evaluation) {
	c.DenomTotalCents = ev.DenomTotalCents
	c.VarianceCents = ev.VarianceCents
	c.DenomVarianceCents = ev.DenomVarianceCents
	c.RequiresManagerReview = ev.RequiresManagerReview
}

// Lock signs off a graded closeout. A clean pass needs an explicit override reason.
func (s *Service) Lock(ctx context.Context, in LockInput) (Closeout, error) {
	if in.CloseoutID <= 0 || in.ReviewerID <= 0 {
		return Closeout{}, fmt.Errorf("%w: closeout and reviewer required", ErrInvalidCloseout)
	}
	if len(in.StoreIDs) == 0 {
		return Closeout{}, ErrNotFound
	}
	now := s.now().UTC()
	override := optionalText(in.OverrideReason)
	var (
		out    Closeout
		graded Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.LockByID(ctx, in.CloseoutID, in.StoreIDs)
		if err != nil {
			return err
		}
		switch {
		case c.Locked():
			return ErrAlreadyLocked
		case c.Status == StatusDraft:
			return ErrNotGraded
		case c.Status == StatusPass && !c.RequiresManagerReview && override == nil:
			return ErrReviewNotRequired
		}
		graded = c.Status
		reviewer := in.ReviewerID
		c.Status = StatusLocked
		c.ReviewedAt = &now
		c.ReviewedBy = &reviewer
		c.ReviewNote = override
		c.UpdatedAt = now
		out, err = tx.Save(ctx, c)
		return err
	})
	if err != nil {
		return Closeout{}, err
	}
	action := "lock"
	if override != nil {
		action = "lock_override"
	}
	s.metrics.CloseoutAction(action)
	s.record(ctx, shared.AuditLog{
		ActorID:  in.ReviewerID,
		Action:   shared.AuditCloseoutLocked,
		Entity:   "safe_closeout",
		EntityID: strconv.FormatInt(out.ID, 10),
		Meta: map[string]any{
			"graded_status":  string(graded),
			"variance_cents": out.VarianceCents,
			"override":       override != nil,
		},
		At: now,
	})
	return out, nil
}

// Amend edits the deposit figures of a locked closeout. The closeout stays locked.
func (s *Service) Amend(ctx context.Context, in AmendInput) (Closeout, error) {
	if err := in.Validate(); err != nil {
		return Closeout{}, err
	}
	if len(in.StoreIDs) == 0 {
		return Closeout{}, ErrNotFound
	}
	now := s.now().UTC()
	var (
		out    Closeout
		before int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.LockByID(ctx, in.CloseoutID, in.StoreIDs)
		if err != nil {
			return err
		}
		if !c.Locked() {
			return ErrNotLocked
		}
		cfg, err := s.settings.Get(ctx, c.StoreID)
		if err != nil {
			return err
		}
		expenses, err := tx.ListExpenses(ctx, c.ID)
		if err != nil {
			return err
		}
		before = c.ActualDepositCents
		if in.ActualDepositCents != nil {
			c.ActualDepositCents = *in.ActualDepositCents
		}
		if in.Denominations != nil {
			c.Denominations = in.Denominations
		}
		c.ExpectedDepositCents = ComputeExpectedDeposit(c.CashSalesCents, expenses)
		ev, err := Evaluate(c.Denominations, c.ActualDepositCents, c.ExpectedDepositCents, cfg.DepositToleranceCents, s.policy)
		if err != nil {
			return err
		}
		if c.HistoricalBackfill {
			ev.RequiresManagerReview = false
		}
		applyEvaluation(&c, ev)
		editor := in.EditorID
		c.EditedAt = &now
		c.EditedBy = &editor
		c.DepositOverrideReason = optionalText(in.Reason)
		c.UpdatedAt = now
		saved, err := tx.Save(ctx, c)
		if err != nil {
			return err
		}
		saved.Expenses = expenses
		out = saved
		return nil
	})
	if err != nil {
		return Closeout{}, err
	}
	s.metrics.CloseoutAction("amend")
	s.record(ctx, shared.AuditLog{
		ActorID:  in.EditorID,
		Action:   shared.AuditCloseoutAmended,
		Entity:   "safe_closeout",
		EntityID: strconv.FormatInt(out.ID, 10),
		Meta: map[string]any{
			"reason":               in.Reason,
			"actual_before_cents":  before,
			"actual_after_cents":   out.ActualDepositCents,
			"variance_after_cents": out.VarianceCents,
		},
		At: now,
	})
	return out, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("closeout audit", slog.String("action", log.Action), slog.String("closeout_id", log.EntityID), slog.Any("error", err))
	}
}

// Get returns the closeout for a store's business date.
func (s *Service) Get(ctx context.Context, storeID int64, businessDate time.Time) (Closeout, error) {
	return s.repo.Get(ctx, storeID, businessDate)
}

// GetByID returns a closeout by identifier.
func (s *Service) GetByID(ctx context.Context, id int64) (Closeout, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPendingReview lists unlocked closeouts awaiting a manager in the given stores.
func (s *Service) ListPendingReview(ctx context.Context, storeIDs []int64, limit int) ([]Closeout, error) {
	if len(storeIDs) == 0 {
		return []Closeout{}, nil
	}
	return s.repo.ListPendingReview(ctx, storeIDs, shared.ClampLimit(limit))
}
