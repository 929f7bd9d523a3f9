package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashrecon/internal/platform/db"
)

// Repository reads store settings from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads settings for a store.
func (r *Repository) Get(ctx context.Context, storeID int64) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT store_id, ledger_enabled, deposit_tolerance_cents, denom_tolerance_cents,
		       expected_drawer_cents, photo_retention_days, photo_purge_day_of_month
		FROM store_reconciliation_settings
		WHERE store_id = $1`, storeID).Scan(
		&s.StoreID, &s.LedgerEnabled, &s.DepositToleranceCents, &s.DenomToleranceCents,
		&s.ExpectedDrawerCents, &s.PhotoRetentionDays, &s.PhotoPurgeDayOfMonth,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// StoresWithPurgeDay lists stores whose evidence sweep runs on the given day of month.
func (r *Repository) StoresWithPurgeDay(ctx context.Context, day int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT store_id FROM store_reconciliation_settings
		WHERE photo_purge_day_of_month = $1
		ORDER BY store_id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
