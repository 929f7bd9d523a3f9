package closeout

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/drawer"
	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	mu        sync.Mutex
	closeouts map[int64]Closeout
	expenses  map[int64][]Expense
	nextID    int64
	nextExpID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		closeouts: make(map[int64]Closeout),
		expenses:  make(map[int64][]Expense),
		nextID:    1,
		nextExpID: 1,
	}
}

// WithTx holds the repository mutex for the whole callback and restores state on error.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	closeouts := make(map[int64]Closeout, len(m.closeouts))
	for k, v := range m.closeouts {
		closeouts[k] = v
	}
	expenses := make(map[int64][]Expense, len(m.expenses))
	for k, v := range m.expenses {
		expenses[k] = append([]Expense(nil), v...)
	}
	if err := fn(ctx, &mockTxRepo{mock: m}); err != nil {
		m.closeouts = closeouts
		m.expenses = expenses
		return err
	}
	return nil
}

func (m *mockRepository) Get(_ context.Context, storeID int64, date time.Time) (Closeout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.closeouts {
		if c.StoreID == storeID && c.BusinessDate.Equal(date) {
			c.Expenses = append([]Expense{}, m.expenses[c.ID]...)
			return c, nil
		}
	}
	return Closeout{}, ErrNotFound
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (Closeout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.closeouts[id]
	if !ok {
		return Closeout{}, ErrNotFound
	}
	c.Expenses = append([]Expense{}, m.expenses[c.ID]...)
	return c, nil
}

func (m *mockRepository) ListPendingReview(_ context.Context, storeIDs []int64, limit int) ([]Closeout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caller := shared.Caller{StoreIDs: storeIDs}
	var out []Closeout
	for _, c := range m.closeouts {
		if c.RequiresManagerReview && !c.Locked() && caller.CanAccessStore(c.StoreID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessDate.After(out[j].BusinessDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (tx *mockTxRepo) LockOrCreate(_ context.Context, storeID int64, date time.Time, actorID int64) (Closeout, error) {
	for _, c := range tx.mock.closeouts {
		if c.StoreID == storeID && c.BusinessDate.Equal(date) {
			return c, nil
		}
	}
	c := Closeout{ID: tx.mock.nextID, StoreID: storeID, BusinessDate: date, Status: StatusDraft, CreatedBy: actorID, Denominations: Breakdown{}}
	tx.mock.nextID++
	tx.mock.closeouts[c.ID] = c
	return c, nil
}

func (tx *mockTxRepo) LockByID(_ context.Context, id int64, storeIDs []int64) (Closeout, error) {
	c, ok := tx.mock.closeouts[id]
	if !ok || !(shared.Caller{StoreIDs: storeIDs}).CanAccessStore(c.StoreID) {
		return Closeout{}, ErrNotFound
	}
	return c, nil
}

func (tx *mockTxRepo) DeleteExpenses(_ context.Context, closeoutID int64) error {
	delete(tx.mock.expenses, closeoutID)
	return nil
}

func (tx *mockTxRepo) InsertExpenses(_ context.Context, closeoutID int64, in []ExpenseInput, actorID int64) error {
	for _, e := range in {
		tx.mock.expenses[closeoutID] = append(tx.mock.expenses[closeoutID], Expense{
			ID: tx.mock.nextExpID, CloseoutID: closeoutID, AmountCents: e.AmountCents,
			Category: e.Category, Note: optionalText(e.Note), CreatedBy: actorID,
		})
		tx.mock.nextExpID++
	}
	return nil
}

func (tx *mockTxRepo) ListExpenses(_ context.Context, closeoutID int64) ([]Expense, error) {
	return append([]Expense{}, tx.mock.expenses[closeoutID]...), nil
}

func (tx *mockTxRepo) Save(_ context.Context, c Closeout) (Closeout, error) {
	c.Expenses = nil
	tx.mock.closeouts[c.ID] = c
	return c, nil
}

type stubSettings map[int64]settings.Settings

func (s stubSettings) Get(_ context.Context, storeID int64) (settings.Settings, error) {
	cfg, ok := s[storeID]
	if !ok {
		return settings.Settings{}, settings.ErrNotFound
	}
	return cfg, nil
}

type stubRollovers map[int64]int64

func (s stubRollovers) AgreedTotal(_ context.Context, storeID int64, _ time.Time) (int64, bool, error) {
	total, ok := s[storeID]
	return total, ok, nil
}

type stubDrawers map[int64]int64

func (s stubDrawers) LatestForShift(_ context.Context, shiftID int64, countType drawer.CountType) (drawer.Count, error) {
	cents, ok := s[shiftID]
	if !ok || countType != drawer.CountEnd {
		return drawer.Count{}, drawer.ErrCountNotFound
	}
	return drawer.Count{ShiftID: shiftID, CountType: countType, DrawerCents: cents}, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	testNow  = time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC)
	testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	repo  *mockRepository
	audit *recordingAudit
}

func newFixture(policy ReviewPolicy) fixture {
	repo := newMockRepository()
	audit := &recordingAudit{}
	svc := NewService(Deps{
		Repo: repo,
		Settings: stubSettings{
			1: {StoreID: 1, LedgerEnabled: true, DepositToleranceCents: 100, PhotoRetentionDays: 30, PhotoPurgeDayOfMonth: 1},
			2: {StoreID: 2, LedgerEnabled: false, DepositToleranceCents: 100, PhotoRetentionDays: 30, PhotoPurgeDayOfMonth: 1},
			3: {StoreID: 3, LedgerEnabled: true, DepositToleranceCents: 100, PhotoRetentionDays: 30, PhotoPurgeDayOfMonth: 1},
		},
		Rollovers: stubRollovers{3: 20000},
		Drawers:   stubDrawers{77: 15050},
		Audit:     audit,
		Policy:    policy,
	})
	svc.WithNow(func() time.Time { return testNow })
	return fixture{svc: svc, repo: repo, audit: audit}
}

func cents(v int64) *int64 { return &v }

// breakdownFor counts total as $1 bills plus pennies.
func breakdownFor(total int64) Breakdown {
	return Breakdown{"bill_1": total / 100, "coin_1": total % 100}
}

func submission(actual int64, denoms Breakdown) SubmitInput {
	return SubmitInput{
		StoreID:            1,
		BusinessDate:       testDate,
		CashSalesCents:     cents(10000),
		Expenses:           []ExpenseInput{{AmountCents: 500, Category: "supplies"}},
		Denominations:      denoms,
		ActualDepositCents: actual,
		ActorID:            4,
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestComputeExpectedDepositDoesNotClamp(t *testing.T) {
	assert.Equal(t, int64(9500), ComputeExpectedDeposit(10000, []Expense{{AmountCents: 500}}))
	assert.Equal(t, int64(-250), ComputeExpectedDeposit(1000, []Expense{{AmountCents: 750}, {AmountCents: 500}}))
	assert.Equal(t, int64(1000), ComputeExpectedDeposit(1000, nil))
}

func TestEvaluateBands(t *testing.T) {
	tests := []struct {
		name       string
		actual     int64
		denoms     Breakdown
		policy     ReviewPolicy
		wantStatus Status
		wantReview bool
	}{
		{"exact pass", 9500, breakdownFor(9500), DefaultReviewPolicy, StatusPass, false},
		{"pass with denomination mismatch", 9500, breakdownFor(9400), DefaultReviewPolicy, StatusPass, true},
		{"warn under strict policy", 9560, breakdownFor(9560), ReviewPolicy{WarnRequiresReview: true}, StatusWarn, true},
		{"warn under lenient policy", 9560, breakdownFor(9560), ReviewPolicy{WarnRequiresReview: false}, StatusWarn, false},
		{"warn lenient with denomination mismatch", 9560, breakdownFor(9500), ReviewPolicy{WarnRequiresReview: false}, StatusWarn, true},
		{"boundary is warn", 9600, breakdownFor(9600), ReviewPolicy{}, StatusWarn, false},
		{"short beyond tolerance fails", 9399, breakdownFor(9399), ReviewPolicy{}, StatusFail, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Evaluate(tc.denoms, tc.actual, 9500, 100, tc.policy)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, ev.Status)
			assert.Equal(t, tc.wantReview, ev.RequiresManagerReview)
			assert.Equal(t, tc.actual-9500, ev.VarianceCents)
		})
	}

	_, err := Evaluate(nil, 1, 1, -1, DefaultReviewPolicy)
	assert.True(t, shared.IsKind(err, shared.KindInvalidInput))
}

func TestSubmitExactDepositPasses(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)

	c, err := f.svc.Submit(context.Background(), submission(9500, breakdownFor(9500)))
	require.NoError(t, err)
	assert.Equal(t, StatusPass, c.Status)
	assert.Equal(t, int64(9500), c.ExpectedDepositCents)
	assert.Zero(t, c.VarianceCents)
	assert.Equal(t, int64(9500), c.DenomTotalCents)
	assert.False(t, c.RequiresManagerReview)
	assert.Equal(t, 1, c.ValidationAttempts)
	require.Len(t, c.Expenses, 1)
}

func TestSubmitWarnFollowsReviewPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy     ReviewPolicy
		wantReview bool
	}{
		{ReviewPolicy{WarnRequiresReview: true}, true},
		{ReviewPolicy{WarnRequiresReview: false}, false},
	} {
		f := newFixture(tc.policy)
		c, err := f.svc.Submit(context.Background(), submission(9560, breakdownFor(9560)))
		require.NoError(t, err)
		assert.Equal(t, StatusWarn, c.Status)
		assert.Equal(t, int64(60), c.VarianceCents)
		assert.Equal(t, tc.wantReview, c.RequiresManagerReview, "policy %+v", tc.policy)
	}
}

func TestResubmitCountsAttemptsAndReplacesExpenses(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submission(9000, breakdownFor(9000)))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, first.Status)
	assert.True(t, first.RequiresManagerReview)

	second := submission(9000, breakdownFor(9000))
	second.Expenses = []ExpenseInput{
		{AmountCents: 500, Category: "supplies"},
		{AmountCents: 500, Category: "refund"},
	}
	c, err := f.svc.Submit(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, c.ID)
	assert.Equal(t, 2, c.ValidationAttempts)
	assert.Equal(t, int64(9000), c.ExpectedDepositCents)
	assert.Equal(t, StatusPass, c.Status)
	assert.Len(t, c.Expenses, 2)
}

func TestIdenticalResubmitKeepsGrade(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submission(9500, breakdownFor(9500)))
	require.NoError(t, err)
	assert.Equal(t, StatusPass, first.Status)

	again, err := f.svc.Submit(ctx, submission(9500, breakdownFor(9500)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 2, again.ValidationAttempts)
	assert.Equal(t, StatusPass, again.Status)
	assert.Equal(t, int64(9500), again.ExpectedDepositCents)
	assert.Equal(t, int64(0), again.VarianceCents)
	assert.False(t, again.RequiresManagerReview)
	require.Len(t, again.Expenses, 1)
	assert.Equal(t, int64(500), again.Expenses[0].AmountCents)

	stored, err := f.repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Expenses, 1)
}

func TestLockPassRequiresOverride(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	c, err := f.svc.Submit(ctx, submission(9500, breakdownFor(9500)))
	require.NoError(t, err)

	_, err = f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 8, StoreIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrReviewNotRequired)

	locked, err := f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 8, OverrideReason: "spot check", StoreIDs: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, locked.Status)
	require.NotNil(t, locked.ReviewNote)
	assert.Equal(t, "spot check", *locked.ReviewNote)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, true, f.audit.logs[0].Meta["override"])
}

func TestLockFailThenSubmitIsLocked(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	c, err := f.svc.Submit(ctx, submission(9000, breakdownFor(9000)))
	require.NoError(t, err)
	require.Equal(t, StatusFail, c.Status)

	locked, err := f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 8, StoreIDs: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, locked.Status)
	require.NotNil(t, locked.ReviewedBy)
	assert.Equal(t, int64(8), *locked.ReviewedBy)
	assert.Equal(t, testNow, *locked.ReviewedAt)

	_, err = f.svc.Submit(ctx, submission(9500, breakdownFor(9500)))
	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, shared.IsKind(err, shared.KindLocked))

	_, err = f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 9, StoreIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrAlreadyLocked)

	stored, err := f.svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ValidationAttempts)
	assert.Len(t, stored.Expenses, 1, "rejected submission must not touch expenses")
}

func TestLockOutsideCallerStoresIsNotFound(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	c, err := f.svc.Submit(ctx, submission(9000, breakdownFor(9000)))
	require.NoError(t, err)

	_, err = f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 8, StoreIDs: []int64{2}})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Lock(ctx, LockInput{CloseoutID: 999, ReviewerID: 8, StoreIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAmendLockedCloseout(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	c, err := f.svc.Submit(ctx, submission(9000, breakdownFor(9000)))
	require.NoError(t, err)

	_, err = f.svc.Amend(ctx, AmendInput{CloseoutID: c.ID, EditorID: 8, Reason: "bank recount", ActualDepositCents: cents(9500), StoreIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrNotLocked)

	_, err = f.svc.Lock(ctx, LockInput{CloseoutID: c.ID, ReviewerID: 8, StoreIDs: []int64{1}})
	require.NoError(t, err)

	_, err = f.svc.Amend(ctx, AmendInput{CloseoutID: c.ID, EditorID: 8, ActualDepositCents: cents(9500), StoreIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrInvalidCloseout)

	amended, err := f.svc.Amend(ctx, AmendInput{
		CloseoutID:         c.ID,
		EditorID:           8,
		Reason:             "bank recount",
		ActualDepositCents: cents(9500),
		Denominations:      breakdownFor(9500),
		StoreIDs:           []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, amended.Status)
	assert.Zero(t, amended.VarianceCents)
	assert.Zero(t, amended.DenomVarianceCents)
	assert.False(t, amended.RequiresManagerReview)
	require.NotNil(t, amended.EditedBy)
	assert.Equal(t, int64(8), *amended.EditedBy)
	require.NotNil(t, amended.DepositOverrideReason)
	assert.Equal(t, "bank recount", *amended.DepositOverrideReason)
	assert.Equal(t, 1, amended.ValidationAttempts)

	require.Len(t, f.audit.logs, 2)
	assert.Equal(t, shared.AuditCloseoutAmended, f.audit.logs[1].Action)
}

func TestHistoricalBackfillNeverRequiresReview(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	in := submission(5000, breakdownFor(4000))
	in.StoreID = 2
	in.BusinessDate = testDate.AddDate(0, -2, 0)
	in.HistoricalBackfill = true
	c, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, StatusFail, c.Status)
	assert.Equal(t, int64(-4500), c.VarianceCents)
	assert.Equal(t, int64(-1000), c.DenomVarianceCents)
	assert.False(t, c.RequiresManagerReview)
	assert.True(t, c.HistoricalBackfill)

	pending, err := f.svc.ListPendingReview(ctx, []int64{1, 2}, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitLedgerDisabled(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)

	in := submission(9500, breakdownFor(9500))
	in.StoreID = 2
	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrLedgerDisabled)
	assert.Empty(t, f.repo.closeouts)
}

func TestSubmitUsesMatchedRolloverAndClosingDrawer(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	in := submission(19500, breakdownFor(19500))
	in.StoreID = 3
	in.CashSalesCents = nil
	in.ShiftID = cents(77)
	c, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), c.CashSalesCents)
	assert.Equal(t, int64(19500), c.ExpectedDepositCents)
	assert.Equal(t, StatusPass, c.Status)
	require.NotNil(t, c.DrawerCountCents)
	assert.Equal(t, int64(15050), *c.DrawerCountCents)

	in.StoreID = 1
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, ErrCashSalesUnknown)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	mutations := []func(*SubmitInput){
		func(in *SubmitInput) { in.Denominations = Breakdown{"bill_3": 1} },
		func(in *SubmitInput) { in.Denominations = Breakdown{"bill_1": -1} },
		func(in *SubmitInput) { in.Denominations = Breakdown{"bill_100": 922337203685478} },
		func(in *SubmitInput) { in.ActualDepositCents = -1 },
		func(in *SubmitInput) { in.CashSalesCents = cents(-5) },
		func(in *SubmitInput) { in.Expenses = []ExpenseInput{{AmountCents: -1, Category: "x"}} },
		func(in *SubmitInput) { in.Expenses = []ExpenseInput{{AmountCents: 1}} },
		func(in *SubmitInput) {
			in.Expenses = []ExpenseInput{{AmountCents: money.MaxCents, Category: "x"}, {AmountCents: 1, Category: "y"}}
		},
		func(in *SubmitInput) { in.BusinessDate = testDate.AddDate(0, 0, 1) },
	}
	for i, mutate := range mutations {
		in := submission(9500, breakdownFor(9500))
		mutate(&in)
		_, err := f.svc.Submit(ctx, in)
		assert.True(t, shared.IsKind(err, shared.KindInvalidInput), "case %d: %v", i, err)
	}
	assert.Empty(t, f.repo.closeouts)
}

func TestListPendingReview(t *testing.T) {
	f := newFixture(DefaultReviewPolicy)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submission(9000, breakdownFor(9000)))
	require.NoError(t, err)
	clean := submission(9500, breakdownFor(9500))
	clean.BusinessDate = testDate.AddDate(0, 0, -1)
	_, err = f.svc.Submit(ctx, clean)
	require.NoError(t, err)

	pending, err := f.svc.ListPendingReview(ctx, []int64{1}, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, StatusFail, pending[0].Status)

	none, err := f.svc.ListPendingReview(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBreakdownValidateBoundsTotal(t *testing.T) {
	huge := Breakdown{"bill_100": 922337203685478}
	err := huge.Validate()
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindInvalidInput))

	atLimit := Breakdown{"coin_1": money.MaxCents}
	require.NoError(t, atLimit.Validate())
	assert.Equal(t, money.MaxCents, atLimit.TotalCents())

	overLimit := Breakdown{"coin_1": money.MaxCents, "coin_5": 1}
	assert.Error(t, overLimit.Validate())
}

func TestDenominationCodesOrdered(t *testing.T) {
	codes := DenominationCodes()
	require.NotEmpty(t, codes)
	assert.Equal(t, "bill_100", codes[0])
	assert.Equal(t, "coin_1", codes[len(codes)-1])
	assert.Equal(t, int64(10000+2*25+3), Breakdown{"bill_100": 1, "coin_25": 2, "coin_1": 3}.TotalCents())
}
