package closeout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashrecon/internal/platform/db"
)

const closeoutColumns = `id, store_id, business_date, shift_id, profile_id, status, cash_sales_cents,
	card_sales_cents, other_sales_cents, expected_deposit_cents, actual_deposit_cents, denom_total_cents,
	denom_variance_cents, drawer_count_cents, variance_cents, denomination_breakdown, deposit_override_reason,
	validation_attempts, requires_manager_review, reviewed_at, reviewed_by, review_note, edited_at, edited_by,
	is_historical_backfill, created_by, created_at, updated_at`

// PgRepository persists closeouts in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads the closeout for a store's business date with its expenses.
func (r *PgRepository) Get(ctx context.Context, storeID int64, businessDate time.Time) (Closeout, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+closeoutColumns+` FROM safe_closeouts WHERE store_id = $1 AND business_date = $2`,
		storeID, businessDate)
	return r.withExpenses(ctx, row)
}

// GetByID loads a closeout with its expenses.
func (r *PgRepository) GetByID(ctx context.Context, id int64) (Closeout, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+closeoutColumns+` FROM safe_closeouts WHERE id = $1`, id)
	return r.withExpenses(ctx, row)
}

func (r *PgRepository) withExpenses(ctx context.Context, row pgx.Row) (Closeout, error) {
	c, err := scanCloseout(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Closeout{}, ErrNotFound
		}
		return Closeout{}, err
	}
	c.Expenses, err = listExpenses(ctx, r.pool, c.ID)
	if err != nil {
		return Closeout{}, err
	}
	return c, nil
}

// ListPendingReview lists unlocked closeouts flagged for review.
func (r *PgRepository) ListPendingReview(ctx context.Context, storeIDs []int64, limit int) ([]Closeout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+closeoutColumns+`
		FROM safe_closeouts
		WHERE requires_manager_review AND status <> 'locked' AND store_id = ANY($1)
		ORDER BY business_date DESC, id DESC
		LIMIT $2`, storeIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Closeout, 0, limit)
	for rows.Next() {
		c, err := scanCloseout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *txRepo) LockOrCreate(ctx context.Context, storeID int64, businessDate time.Time, actorID int64) (Closeout, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO safe_closeouts (store_id, business_date, status, created_by)
		VALUES ($1, $2, 'draft', $3)
		ON CONFLICT (store_id, business_date) DO UPDATE SET updated_at = safe_closeouts.updated_at
		RETURNING `+closeoutColumns, storeID, businessDate, actorID)
	return scanCloseout(row)
}

func (t *txRepo) LockByID(ctx context.Context, id int64, storeIDs []int64) (Closeout, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+closeoutColumns+`
		FROM safe_closeouts
		WHERE id = $1 AND store_id = ANY($2)
		FOR UPDATE`, id, storeIDs)
	c, err := scanCloseout(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Closeout{}, ErrNotFound
		}
		return Closeout{}, err
	}
	return c, nil
}

func (t *txRepo) DeleteExpenses(ctx context.Context, closeoutID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM safe_closeout_expenses WHERE closeout_id = $1`, closeoutID)
	return err
}

func (t *txRepo) InsertExpenses(ctx context.Context, closeoutID int64, expenses []ExpenseInput, actorID int64) error {
	batch := &pgx.Batch{}
	for _, e := range expenses {
		batch.Queue(`
			INSERT INTO safe_closeout_expenses (closeout_id, amount_cents, category, note, created_by)
			VALUES ($1, $2, $3, $4, $5)`, closeoutID, e.AmountCents, e.Category, optionalText(e.Note), actorID)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) ListExpenses(ctx context.Context, closeoutID int64) ([]Expense, error) {
	return listExpenses(ctx, t.tx, closeoutID)
}

func (t *txRepo) Save(ctx context.Context, c Closeout) (Closeout, error) {
	breakdown, err := json.Marshal(nonNilBreakdown(c.Denominations))
	if err != nil {
		return Closeout{}, fmt.Errorf("closeout: encode breakdown: %w", err)
	}
	row := t.tx.QueryRow(ctx, `
		UPDATE safe_closeouts SET
			shift_id = $2, profile_id = $3, status = $4, cash_sales_cents = $5, card_sales_cents = $6,
			other_sales_cents = $7, expected_deposit_cents = $8, actual_deposit_cents = $9,
			denom_total_cents = $10, denom_variance_cents = $11, drawer_count_cents = $12,
			variance_cents = $13, denomination_breakdown = $14, deposit_override_reason = $15,
			validation_attempts = $16, requires_manager_review = $17, reviewed_at = $18,
			reviewed_by = $19, review_note = $20, edited_at = $21, edited_by = $22,
			is_historical_backfill = $23, updated_at = $24
		WHERE id = $1
		RETURNING `+closeoutColumns,
		c.ID, c.ShiftID, c.ProfileID, string(c.Status), c.CashSalesCents, c.CardSalesCents,
		c.OtherSalesCents, c.ExpectedDepositCents, c.ActualDepositCents,
		c.DenomTotalCents, c.DenomVarianceCents, c.DrawerCountCents,
		c.VarianceCents, breakdown, c.DepositOverrideReason,
		c.ValidationAttempts, c.RequiresManagerReview, c.ReviewedAt,
		c.ReviewedBy, c.ReviewNote, c.EditedAt, c.EditedBy,
		c.HistoricalBackfill, c.UpdatedAt)
	return scanCloseout(row)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listExpenses(ctx context.Context, q querier, closeoutID int64) ([]Expense, error) {
	rows, err := q.Query(ctx, `
		SELECT id, closeout_id, amount_cents, category, note, created_by, created_at
		FROM safe_closeout_expenses
		WHERE closeout_id = $1
		ORDER BY id`, closeoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	expenses := make([]Expense, 0)
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.CloseoutID, &e.AmountCents, &e.Category, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanCloseout(row pgx.Row) (Closeout, error) {
	var (
		c         Closeout
		status    string
		breakdown []byte
	)
	err := row.Scan(&c.ID, &c.StoreID, &c.BusinessDate, &c.ShiftID, &c.ProfileID, &status, &c.CashSalesCents,
		&c.CardSalesCents, &c.OtherSalesCents, &c.ExpectedDepositCents, &c.ActualDepositCents, &c.DenomTotalCents,
		&c.DenomVarianceCents, &c.DrawerCountCents, &c.VarianceCents, &breakdown, &c.DepositOverrideReason,
		&c.ValidationAttempts, &c.RequiresManagerReview, &c.ReviewedAt, &c.ReviewedBy, &c.ReviewNote, &c.EditedAt, &c.EditedBy,
		&c.HistoricalBackfill, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Closeout{}, err
	}
	c.Status = Status(status)
	c.Denominations = Breakdown{}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &c.Denominations); err != nil {
			return Closeout{}, fmt.Errorf("closeout: decode breakdown: %w", err)
		}
	}
	return c, nil
}

func nonNilBreakdown(b Breakdown) Breakdown {
	if b == nil {
		return Breakdown{}
	}
	return b
}
