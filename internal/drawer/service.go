package drawer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
	"github.com/odyssey-erp/cashrecon/internal/tolerance"
	"github.com/odyssey-erp/cashrecon/jobs"
)

// Repository persists drawer counts.
type Repository interface {
	Insert(ctx context.Context, count Count) (Count, error)
	ListUnreviewed(ctx context.Context, storeIDs []int64, limit int) ([]Count, error)
	MarkReviewed(ctx context.Context, in ReviewInput, at time.Time) (Count, error)
	LatestForShift(ctx context.Context, shiftID int64, countType CountType) (Count, error)
}

// SettingsProvider yields the store's configured float and tolerance.
type SettingsProvider interface {
	Get(ctx context.Context, storeID int64) (settings.Settings, error)
}

// Alerter hands out-of-threshold counts to the notification pipeline.
type Alerter interface {
	EnqueueDrawerVarianceAlert(ctx context.Context, payload jobs.DrawerVarianceAlertPayload) error
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records checkpoint counts and their reviews.
type Service struct {
	repo     Repository
	settings SettingsProvider
	alerts   Alerter
	audit    AuditRecorder
	metrics  *observability.ReconMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the drawer service. alerts and audit may be nil.
func NewService(repo Repository, settings SettingsProvider, alerts Alerter, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, settings: settings, alerts: alerts, audit: audit, logger: logger, now: time.Now}
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

// RecordCount grades a checkpoint count against the store's expected drawer and persists it.
func (s *Service) RecordCount(ctx context.Context, in RecordCountInput) (Count, error) {
	if err := in.Validate(); err != nil {
		return Count{}, err
	}
	cfg, err := s.settings.Get(ctx, in.StoreID)
	if err != nil {
		return Count{}, err
	}
	grade, err := tolerance.Grade(cfg.ExpectedDrawerCents, in.DrawerCents, cfg.DenomToleranceCents)
	if err != nil {
		return Count{}, err
	}
	count := Count{
		StoreID:         in.StoreID,
		ShiftID:         in.ShiftID,
		CountType:       in.CountType,
		CountedAt:       s.now().UTC(),
		DrawerCents:     in.DrawerCents,
		ExpectedCents:   cfg.ExpectedDrawerCents,
		VarianceCents:   grade.VarianceCents,
		Confirmed:       in.Confirmed,
		OutOfThreshold:  grade.OutOfThreshold(),
		NotifiedManager: grade.OutOfThreshold(),
		Note:            optionalText(in.Note),
		CreatedBy:       in.ActorID,
	}
	count, err = s.repo.Insert(ctx, count)
	if err != nil {
		return Count{}, fmt.Errorf("drawer: insert count: %w", err)
	}
	s.metrics.DrawerCounted(string(count.CountType), count.OutOfThreshold)
	if count.OutOfThreshold {
		s.alert(ctx, count)
	}
	return count, nil
}

func (s *Service) alert(ctx context.Context, count Count) {
	if s.alerts == nil {
		return
	}
	err := s.alerts.EnqueueDrawerVarianceAlert(ctx, jobs.DrawerVarianceAlertPayload{
		CountID:       count.ID,
		StoreID:       count.StoreID,
		ShiftID:       count.ShiftID,
		CountType:     string(count.CountType),
		VarianceCents: count.VarianceCents,
		CountedAt:     count.CountedAt,
	})
	if err != nil {
		s.logger.Warn("drawer variance alert", slog.Int64("count_id", count.ID), slog.Any("error", err))
	}
}

// ListUnreviewed returns out-of-threshold counts awaiting review, newest first.
func (s *Service) ListUnreviewed(ctx context.Context, storeIDs []int64, limit int) ([]Count, error) {
	if len(storeIDs) == 0 {
		return []Count{}, nil
	}
	return s.repo.ListUnreviewed(ctx, storeIDs, shared.ClampLimit(limit))
}

// Review signs off a count. Only the first review succeeds; later calls see ErrCountNotFound.
func (s *Service) Review(ctx context.Context, in ReviewInput) (Count, error) {
	if err := in.Validate(); err != nil {
		return Count{}, err
	}
	if len(in.StoreIDs) == 0 {
		return Count{}, ErrCountNotFound
	}
	at := s.now().UTC()
	count, err := s.repo.MarkReviewed(ctx, in, at)
	if err != nil {
		return Count{}, err
	}
	if s.audit != nil {
		auditErr := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ReviewerID,
			Action:   shared.AuditDrawerReviewed,
			Entity:   "drawer_count",
			EntityID: strconv.FormatInt(count.ID, 10),
			Meta:     map[string]any{"store_id": count.StoreID, "variance_cents": count.VarianceCents},
			At:       at,
		})
		if auditErr != nil {
			s.logger.Warn("drawer review audit", slog.Int64("count_id", count.ID), slog.Any("error", auditErr))
		}
	}
	return count, nil
}

// LatestForShift returns the most recent count of the given type for a shift.
func (s *Service) LatestForShift(ctx context.Context, shiftID int64, countType CountType) (Count, error) {
	if !countType.Valid() {
		return Count{}, ErrInvalidCountType
	}
	return s.repo.LatestForShift(ctx, shiftID, countType)
}
