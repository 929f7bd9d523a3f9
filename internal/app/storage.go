package app

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/cashrecon/internal/platform/storage"
)

// NewObjectStore opens the evidence bucket. Without GCS_BUCKET outside production the photos
// stay in process memory.
func NewObjectStore(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.ObjectStore, func() error, error) {
	if cfg.GCSBucket == "" {
		logger.Warn("GCS_BUCKET not set, evidence kept in memory")
		return storage.NewMemory("local"), func() error { return nil }, nil
	}
	store, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
