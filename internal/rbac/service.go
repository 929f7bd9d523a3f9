// Package rbac resolves which stores a caller may act on.
package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreSource lists the stores a user belongs to.
type StoreSource interface {
	AuthorizedStores(ctx context.Context, userID int64) ([]int64, error)
}

// Service reads store memberships from Postgres.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// AuthorizedStores returns the user's store set ordered by id.
func (s *Service) AuthorizedStores(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT store_id FROM store_memberships WHERE user_id = $1 ORDER BY store_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stores := make([]int64, 0, 4)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		stores = append(stores, id)
	}
	return stores, rows.Err()
}
