package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/cashrecon/internal/closeout"
	"github.com/odyssey-erp/cashrecon/internal/platform/storage"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

const (
	sweepBatchSize   = 200
	sweepConcurrency = 8
)

// Repository persists photo rows.
type Repository interface {
	// Insert stores p unless its closeout is locked, reporting ErrCloseoutLocked.
	Insert(ctx context.Context, p Photo) (Photo, error)
	// ListExpired pages through photos with purge_after <= now, ordered by id after afterID.
	ListExpired(ctx context.Context, now time.Time, scope SweepRequest, afterID int64, limit int) ([]Photo, error)
	// DeleteExpired removes the given rows that are still past purge_after.
	DeleteExpired(ctx context.Context, ids []int64, now time.Time) (int64, error)
	ListForCloseout(ctx context.Context, closeoutID int64) ([]Photo, error)
}

// Closeouts resolves the closeout a photo belongs to.
type Closeouts interface {
	GetByID(ctx context.Context, id int64) (closeout.Closeout, error)
}

// SettingsProvider yields retention settings and purge schedules.
type SettingsProvider interface {
	Get(ctx context.Context, storeID int64) (settings.Settings, error)
	StoresWithPurgeDay(ctx context.Context, day int) ([]int64, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service attaches, uploads and purges closeout evidence.
type Service struct {
	repo      Repository
	closeouts Closeouts
	settings  SettingsProvider
	store     storage.ObjectStore
	audit     AuditRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service instance. audit may be nil.
func NewService(repo Repository, closeouts Closeouts, settings SettingsProvider, store storage.ObjectStore, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		closeouts: closeouts,
		settings:  settings,
		store:     store,
		audit:     audit,
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

// Attach records an object already present in the bucket.
func (s *Service) Attach(ctx context.Context, in AttachInput) (Photo, error) {
	if err := in.Validate(); err != nil {
		return Photo{}, err
	}
	c, err := s.writableCloseout(ctx, in.CloseoutID, in.StoreIDs)
	if err != nil {
		return Photo{}, err
	}
	return s.attach(ctx, c, in.PhotoType, in.StoragePath, in.ContentType, in.RetentionDays, in.ActorID)
}

// Upload writes the photo to the object store under closeouts/<id>/<uuid>.<ext> and attaches it
// with the store's retention window.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Photo, error) {
	if err := in.Validate(); err != nil {
		return Photo{}, err
	}
	contentType, ext, ok := extensionFor(in.ContentType)
	if !ok {
		return Photo{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, in.ContentType)
	}
	c, err := s.writableCloseout(ctx, in.CloseoutID, in.StoreIDs)
	if err != nil {
		return Photo{}, err
	}
	cfg, err := s.settings.Get(ctx, c.StoreID)
	if err != nil {
		return Photo{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Photo{}, err
	}

	path := fmt.Sprintf("closeouts/%d/%s%s", c.ID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, path, contentType, in.Body); err != nil {
		return Photo{}, fmt.Errorf("evidence: upload: %w", err)
	}
	photo, err := s.attach(ctx, c, in.PhotoType, path, contentType, cfg.PhotoRetentionDays, in.ActorID)
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), path); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotExist) {
			s.logger.WarnContext(ctx, "orphaned evidence object", slog.String("path", path), slog.Any("error", delErr))
		}
		return Photo{}, err
	}
	return photo, nil
}

// List returns the photos attached to a closeout in the caller's stores.
func (s *Service) List(ctx context.Context, closeoutID int64, storeIDs []int64) ([]Photo, error) {
	c, err := s.closeouts.GetByID(ctx, closeoutID)
	if err != nil {
		if errors.Is(err, closeout.ErrNotFound) {
			return nil, ErrCloseoutNotFound
		}
		return nil, err
	}
	if !(shared.Caller{StoreIDs: storeIDs}).CanAccessStore(c.StoreID) {
		return nil, ErrCloseoutNotFound
	}
	return s.repo.ListForCloseout(ctx, c.ID)
}

func (s *Service) writableCloseout(ctx context.Context, id int64, storeIDs []int64) (closeout.Closeout, error) {
	c, err := s.closeouts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, closeout.ErrNotFound) {
			return closeout.Closeout{}, ErrCloseoutNotFound
		}
		return closeout.Closeout{}, err
	}
	if !(shared.Caller{StoreIDs: storeIDs}).CanAccessStore(c.StoreID) {
		return closeout.Closeout{}, ErrCloseoutNotFound
	}
	if c.Locked() {
		return closeout.Closeout{}, ErrCloseoutLocked
	}
	return c, nil
}

func (s *Service) attach(ctx context.Context, c closeout.Closeout, photoType PhotoType, path, contentType string, retentionDays int, actorID int64) (Photo, error) {
	now := s.now().UTC()
	return s.repo.Insert(ctx, Photo{
		CloseoutID:    c.ID,
		StoreID:       c.StoreID,
		PhotoType:     photoType,
		StorageBucket: s.store.Bucket(),
		StoragePath:   path,
		ContentType:   contentType,
		CreatedBy:     actorID,
		CreatedAt:     now,
		PurgeAfter:    now.AddDate(0, 0, retentionDays),
	})
}

// Sweep purges expired photos when req.Now falls on the purge day. Objects are removed before
// their rows; an object already gone counts as removed. Rows whose object could not be removed
// stay for the next run.
func (s *Service) Sweep(ctx context.Context, req SweepRequest) (int, error) {
	if !req.Due() {
		return 0, nil
	}
	if !req.AllStores && len(req.StoreIDs) == 0 {
		return 0, nil
	}
	now := req.Now.UTC()

	var (
		purged   int
		failures []error
		afterID  int64
	)
	for {
		batch, err := s.repo.ListExpired(ctx, now, req, afterID, sweepBatchSize)
		if err != nil {
			return purged, err
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		removed, errs := s.deleteObjects(ctx, batch)
		failures = append(failures, errs...)
		if len(removed) > 0 {
			n, err := s.repo.DeleteExpired(ctx, removed, now)
			if err != nil {
				return purged, err
			}
			purged += int(n)
		}
		if len(batch) < sweepBatchSize {
			break
		}
	}

	if purged > 0 {
		s.record(ctx, req, purged)
	}
	s.logger.InfoContext(ctx, "evidence sweep finished",
		slog.Int("purged", purged),
		slog.Int("failed", len(failures)),
		slog.Bool("all_stores", req.AllStores),
		slog.Int("stores", len(req.StoreIDs)),
	)
	if len(failures) > 0 {
		return purged, fmt.Errorf("evidence: %d objects not deleted: %w", len(failures), errors.Join(failures...))
	}
	return purged, nil
}

func (s *Service) deleteObjects(ctx context.Context, batch []Photo) ([]int64, []error) {
	var (
		mu       sync.Mutex
		removed  = make([]int64, 0, len(batch))
		failures []error
	)
	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for _, photo := range batch {
		g.Go(func() error {
			err := s.store.Delete(ctx, photo.StoragePath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
				failures = append(failures, fmt.Errorf("%s: %w", photo.StoragePath, err))
				return nil
			}
			removed = append(removed, photo.ID)
			return nil
		})
	}
	_ = g.Wait()
	return removed, failures
}

func (s *Service) record(ctx context.Context, req SweepRequest, purged int) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   shared.AuditPhotosPurged,
		Entity:   "safe_closeout_photo",
		EntityID: req.Now.UTC().Format(shared.BusinessDateLayout),
		Meta: map[string]any{
			"purged":     purged,
			"stores":     req.StoreIDs,
			"all_stores": req.AllStores,
		},
		At: req.Now,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", shared.AuditPhotosPurged), slog.Any("error", err))
	}
}

// SweepDue sweeps every store whose purge day is today.
func (s *Service) SweepDue(ctx context.Context, now time.Time) (int, error) {
	day := now.UTC().Day()
	stores, err := s.settings.StoresWithPurgeDay(ctx, day)
	if err != nil {
		return 0, err
	}
	if len(stores) == 0 {
		return 0, nil
	}
	return s.Sweep(ctx, SweepRequest{Now: now.UTC(), PurgeDayOfMonth: day, StoreIDs: stores})
}

// Bucket exposes the configured bucket name.
func (s *Service) Bucket() string { return s.store.Bucket() }
