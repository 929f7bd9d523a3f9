package rolloverhttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/internal/platform/httpx"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
	"github.com/odyssey-erp/cashrecon/internal/rollover"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

type rolloverService interface {
	Submit(ctx context.Context, in rollover.SubmitInput) (rollover.Outcome, error)
	Day(ctx context.Context, storeID int64, businessDate time.Time) (rollover.Day, error)
}

// Handler wires HTTP endpoints for rollover submissions.
type Handler struct {
	logger    *slog.Logger
	service   rolloverService
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service rolloverService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers rollover routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stores/{storeID}/rollovers", func(r chi.Router) {
		r.Use(h.rbac.RequireStore("storeID"))
		r.Post("/", h.submit)
		r.Get("/{date}", h.day)
	})
}

type submitRequest struct {
	BusinessDate  string       `json:"business_date" validate:"required"`
	Amount        money.Amount `json:"amount"`
	Source        string       `json:"source" validate:"required,oneof=opener closer"`
	ForceMismatch bool         `json:"force_mismatch"`
}

type entryView struct {
	Source   rollover.Source `json:"source"`
	Amount   string          `json:"amount"`
	Cents    int64           `json:"amount_cents"`
	Mismatch bool            `json:"mismatch"`
}

type outcomeResponse struct {
	Outcome              rollover.OutcomeKind `json:"outcome"`
	RequiresConfirmation bool                 `json:"requires_confirmation"`
	Entry                *entryView           `json:"entry,omitempty"`
	Opposite             *entryView           `json:"opposite,omitempty"`
	Difference           string               `json:"difference"`
	DifferenceCents      int64                `json:"difference_cents"`
}

type dayResponse struct {
	StoreID      int64          `json:"store_id"`
	BusinessDate string         `json:"business_date"`
	State        rollover.State `json:"state"`
	Opener       *entryView     `json:"opener,omitempty"`
	Closer       *entryView     `json:"closer,omitempty"`
	AgreedTotal  *string        `json:"agreed_total,omitempty"`
}

func viewEntry(e *rollover.Entry) *entryView {
	if e == nil {
		return nil
	}
	return &entryView{Source: e.Source, Amount: money.Format(e.AmountCents), Cents: e.AmountCents, Mismatch: e.Mismatch}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	storeID, err := httpx.PathID(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req submitRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseBusinessDate(req.BusinessDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Submit(r.Context(), rollover.SubmitInput{
		StoreID:       storeID,
		BusinessDate:  date,
		AmountCents:   req.Amount.Cents(),
		Source:        rollover.Source(req.Source),
		ForceMismatch: req.ForceMismatch,
		ActorID:       caller.UserID,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("submit rollover", slog.Int64("store_id", storeID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if out.RequiresConfirmation() {
		status = http.StatusOK
	}
	httpx.JSON(w, status, outcomeResponse{
		Outcome:              out.Kind,
		RequiresConfirmation: out.RequiresConfirmation(),
		Entry:                viewEntry(out.Entry),
		Opposite:             viewEntry(out.Opposite),
		Difference:           money.Format(out.DifferenceCents),
		DifferenceCents:      out.DifferenceCents,
	})
}

func (h *Handler) day(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.PathID(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.PathDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.service.Day(r.Context(), storeID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := dayResponse{
		StoreID:      day.StoreID,
		BusinessDate: day.BusinessDate.Format(shared.BusinessDateLayout),
		State:        day.State,
		Opener:       viewEntry(day.Opener),
		Closer:       viewEntry(day.Closer),
	}
	if total, ok := day.AgreedTotal(); ok {
		formatted := money.Format(total)
		resp.AgreedTotal = &formatted
	}
	httpx.JSON(w, http.StatusOK, resp)
}
