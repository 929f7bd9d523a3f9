package rollover

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashrecon/internal/platform/db"
)

// PgRepository persists rollover days in Postgres.
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

// LoadDay reads the day state and both entries outside a transaction.
func (r *PgRepository) LoadDay(ctx context.Context, storeID int64, businessDate time.Time) (Day, error) {
	day := Day{StoreID: storeID, BusinessDate: businessDate, State: StateEmpty}
	var state string
	err := r.pool.QueryRow(ctx, `SELECT state FROM rollover_days WHERE store_id = $1 AND business_date = $2`,
		storeID, businessDate).Scan(&state)
	switch {
	case err == nil:
		day.State = State(state)
	case db.IsNoRows(err):
		return day, nil
	default:
		return Day{}, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, store_id, business_date, source, amount_cents, mismatch, created_by, created_at
		FROM rollover_entries
		WHERE store_id = $1 AND business_date = $2`, storeID, businessDate)
	if err != nil {
		return Day{}, err
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return Day{}, err
		}
		if entry.Source == SourceOpener {
			day.Opener = &entry
		} else {
			day.Closer = &entry
		}
	}
	return day, rows.Err()
}

func (t *txRepo) LockDay(ctx context.Context, storeID int64, businessDate time.Time) (State, error) {
	var state string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO rollover_days (store_id, business_date, state)
		VALUES ($1, $2, 'EMPTY')
		ON CONFLICT (store_id, business_date) DO UPDATE SET updated_at = NOW()
		RETURNING state`, storeID, businessDate).Scan(&state)
	if err != nil {
		return "", err
	}
	return State(state), nil
}

func (t *txRepo) LoadEntry(ctx context.Context, storeID int64, businessDate time.Time, source Source) (*Entry, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, store_id, business_date, source, amount_cents, mismatch, created_by, created_at
		FROM rollover_entries
		WHERE store_id = $1 AND business_date = $2 AND source = $3`, storeID, businessDate, string(source))
	entry, err := scanEntry(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (t *txRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO rollover_entries (store_id, business_date, source, amount_cents, mismatch, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`, e.StoreID, e.BusinessDate, string(e.Source), e.AmountCents, e.Mismatch, e.CreatedBy, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (t *txRepo) SetState(ctx context.Context, storeID int64, businessDate time.Time, state State) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE rollover_days SET state = $3, updated_at = NOW()
		WHERE store_id = $1 AND business_date = $2`, storeID, businessDate, string(state))
	return err
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e      Entry
		source string
	)
	if err := row.Scan(&e.ID, &e.StoreID, &e.BusinessDate, &source, &e.AmountCents, &e.Mismatch, &e.CreatedBy, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Source = Source(source)
	return e, nil
}
