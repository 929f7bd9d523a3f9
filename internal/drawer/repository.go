package drawer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashrecon/internal/platform/db"
)

const countColumns = `id, store_id, shift_id, count_type, counted_at, drawer_cents, expected_cents,
	variance_cents, confirmed, out_of_threshold, notified_manager, note, created_by,
	reviewed_at, reviewed_by, review_note`

// PgRepository stores drawer counts in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Insert writes a new count and returns it with its identifier.
func (r *PgRepository) Insert(ctx context.Context, c Count) (Count, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO drawer_counts (store_id, shift_id, count_type, counted_at, drawer_cents, expected_cents,
			variance_cents, confirmed, out_of_threshold, notified_manager, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+countColumns,
		c.StoreID, c.ShiftID, string(c.CountType), c.CountedAt, c.DrawerCents, c.ExpectedCents,
		c.VarianceCents, c.Confirmed, c.OutOfThreshold, c.NotifiedManager, c.Note, c.CreatedBy)
	out, err := scanCount(row)
	if err != nil {
		return Count{}, db.Classify(err)
	}
	return out, nil
}

// ListUnreviewed returns open variances for the given stores, newest first.
func (r *PgRepository) ListUnreviewed(ctx context.Context, storeIDs []int64, limit int) ([]Count, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+countColumns+`
		FROM drawer_counts
		WHERE out_of_threshold AND reviewed_at IS NULL AND store_id = ANY($1)
		ORDER BY counted_at DESC, id DESC
		LIMIT $2`, storeIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make([]Count, 0, limit)
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// MarkReviewed applies the review in a single conditional update.
func (r *PgRepository) MarkReviewed(ctx context.Context, in ReviewInput, at time.Time) (Count, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE drawer_counts
		SET reviewed_at = $2, reviewed_by = $3, review_note = $4
		WHERE id = $1 AND reviewed_at IS NULL AND out_of_threshold AND store_id = ANY($5)
		RETURNING `+countColumns,
		in.CountID, at, in.ReviewerID, optionalText(in.Note), in.StoreIDs)
	c, err := scanCount(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Count{}, ErrCountNotFound
		}
		return Count{}, fmt.Errorf("drawer: mark reviewed: %w", err)
	}
	return c, nil
}

// LatestForShift returns the newest count of a type for the shift.
func (r *PgRepository) LatestForShift(ctx context.Context, shiftID int64, countType CountType) (Count, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+countColumns+`
		FROM drawer_counts
		WHERE shift_id = $1 AND count_type = $2
		ORDER BY counted_at DESC, id DESC
		LIMIT 1`, shiftID, string(countType))
	c, err := scanCount(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Count{}, ErrCountNotFound
		}
		return Count{}, err
	}
	return c, nil
}

func scanCount(row pgx.Row) (Count, error) {
	var (
		c         Count
		countType string
	)
	err := row.Scan(&c.ID, &c.StoreID, &c.ShiftID, &countType, &c.CountedAt, &c.DrawerCents, &c.ExpectedCents,
		&c.VarianceCents, &c.Confirmed, &c.OutOfThreshold, &c.NotifiedManager, &c.Note, &c.CreatedBy,
		&c.ReviewedAt, &c.ReviewedBy, &c.ReviewNote)
	if err != nil {
		return Count{}, err
	}
	c.CountType = CountType(countType)
	return c, nil
}
