package drawerhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/cashrecon/internal/drawer"
	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/internal/platform/httpx"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
)

type drawerService interface {
	RecordCount(ctx context.Context, in drawer.RecordCountInput) (drawer.Count, error)
	ListUnreviewed(ctx context.Context, storeIDs []int64, limit int) ([]drawer.Count, error)
	Review(ctx context.Context, in drawer.ReviewInput) (drawer.Count, error)
}

// Handler wires HTTP endpoints for drawer counts.
type Handler struct {
	logger    *slog.Logger
	service   drawerService
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service drawerService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers drawer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireStore("storeID")).Post("/stores/{storeID}/drawer-counts", h.recordCount)
	r.Get("/drawer-counts/unreviewed", h.listUnreviewed)
	r.Post("/drawer-counts/{id}/review", h.review)
}

type recordCountRequest struct {
	ShiftID   int64        `json:"shift_id" validate:"required,gt=0"`
	CountType string       `json:"count_type" validate:"required,oneof=start changeover end"`
	Drawer    money.Amount `json:"drawer"`
	Confirmed bool         `json:"confirmed"`
	Note      string       `json:"note" validate:"max=500"`
}

type countResponse struct {
	drawer.Count
	Drawer   string `json:"drawer"`
	Variance string `json:"variance"`
}

func toResponse(c drawer.Count) countResponse {
	return countResponse{Count: c, Drawer: money.Format(c.DrawerCents), Variance: money.Format(c.VarianceCents)}
}

func (h *Handler) recordCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	storeID, err := httpx.PathID(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req recordCountRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	count, err := h.service.RecordCount(r.Context(), drawer.RecordCountInput{
		StoreID:     storeID,
		ShiftID:     req.ShiftID,
		CountType:   drawer.CountType(req.CountType),
		DrawerCents: req.Drawer.Cents(),
		Confirmed:   req.Confirmed,
		Note:        req.Note,
		ActorID:     caller.UserID,
	})
	if err != nil {
		h.fail(w, "record drawer count", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(count))
}

func (h *Handler) listUnreviewed(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	counts, err := h.service.ListUnreviewed(r.Context(), caller.StoreIDs, httpx.QueryLimit(r))
	if err != nil {
		h.fail(w, "list unreviewed counts", err)
		return
	}
	out := make([]countResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"counts": out})
}

type reviewRequest struct {
	Note string `json:"note" validate:"max=500"`
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reviewRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	count, err := h.service.Review(r.Context(), drawer.ReviewInput{
		CountID:    id,
		ReviewerID: caller.UserID,
		Note:       req.Note,
		StoreIDs:   caller.StoreIDs,
	})
	if err != nil {
		h.fail(w, "review drawer count", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(count))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
