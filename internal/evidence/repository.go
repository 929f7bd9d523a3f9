package evidence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashrecon/internal/platform/db"
)

const photoColumns = `id, closeout_id, store_id, photo_type, storage_bucket, storage_path, content_type,
	created_by, created_at, purge_after`

// PgRepository persists photos in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Insert stores the photo only while its closeout is unlocked.
func (r *PgRepository) Insert(ctx context.Context, p Photo) (Photo, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO safe_closeout_photos (closeout_id, store_id, photo_type, storage_bucket, storage_path,
			content_type, created_by, created_at, purge_after)
		SELECT c.id, c.store_id, $2, $3, $4, $5, $6, $7, $8
		FROM safe_closeouts c
		WHERE c.id = $1 AND c.status <> 'locked'
		RETURNING `+photoColumns,
		p.CloseoutID, string(p.PhotoType), p.StorageBucket, p.StoragePath, p.ContentType, p.CreatedBy, p.CreatedAt, p.PurgeAfter)
	out, err := scanPhoto(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Photo{}, ErrCloseoutLocked
		}
		return Photo{}, db.Classify(err)
	}
	return out, nil
}

// ListExpired pages through photos past their purge time.
func (r *PgRepository) ListExpired(ctx context.Context, now time.Time, scope SweepRequest, afterID int64, limit int) ([]Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+`
		FROM safe_closeout_photos
		WHERE purge_after <= $1 AND id > $2 AND ($3 OR store_id = ANY($4))
		ORDER BY id
		LIMIT $5`, now, afterID, scope.AllStores, scope.StoreIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteExpired removes rows by id that remain past purge_after.
func (r *PgRepository) DeleteExpired(ctx context.Context, ids []int64, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM safe_closeout_photos WHERE id = ANY($1) AND purge_after <= $2`, ids, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForCloseout returns the photos attached to a closeout.
func (r *PgRepository) ListForCloseout(ctx context.Context, closeoutID int64) ([]Photo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+photoColumns+` FROM safe_closeout_photos WHERE closeout_id = $1 ORDER BY id`, closeoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPhoto(row pgx.Row) (Photo, error) {
	var (
		p         Photo
		photoType string
	)
	if err := row.Scan(&p.ID, &p.CloseoutID, &p.StoreID, &photoType, &p.StorageBucket, &p.StoragePath,
		&p.ContentType, &p.CreatedBy, &p.CreatedAt, &p.PurgeAfter); err != nil {
		return Photo{}, err
	}
	p.PhotoType = PhotoType(photoType)
	return p, nil
}
