package closeouthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/cashrecon/internal/closeout"
	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/internal/platform/httpx"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

type closeoutService interface {
	Submit(ctx context.Context, in closeout.SubmitInput) (closeout.Closeout, error)
	Lock(ctx context.Context, in closeout.LockInput) (closeout.Closeout, error)
	Amend(ctx context.Context, in closeout.AmendInput) (closeout.Closeout, error)
	Get(ctx context.Context, storeID int64, businessDate time.Time) (closeout.Closeout, error)
	ListPendingReview(ctx context.Context, storeIDs []int64, limit int) ([]closeout.Closeout, error)
}

// Handler wires HTTP endpoints for safe closeouts.
type Handler struct {
	logger    *slog.Logger
	service   closeoutService
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service closeoutService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers closeout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stores/{storeID}/closeouts", func(r chi.Router) {
		r.Use(h.rbac.RequireStore("storeID"))
		r.Post("/", h.submit)
		r.Get("/{date}", h.get)
	})
	r.Get("/closeouts/pending-review", h.pendingReview)
	r.Post("/closeouts/{id}/lock", h.lock)
	r.Post("/closeouts/{id}/amend", h.amend)
}

type expenseRequest struct {
	Amount   money.Amount `json:"amount"`
	Category string       `json:"category" validate:"required,max=64"`
	Note     string       `json:"note" validate:"max=500"`
}

type submitRequest struct {
	BusinessDate       string             `json:"business_date" validate:"required"`
	ShiftID            *int64             `json:"shift_id" validate:"omitempty,gt=0"`
	ProfileID          *int64             `json:"profile_id" validate:"omitempty,gt=0"`
	CashSales          *money.Amount      `json:"cash_sales"`
	CardSales          money.Amount       `json:"card_sales"`
	OtherSales         money.Amount       `json:"other_sales"`
	Expenses           []expenseRequest   `json:"expenses" validate:"dive"`
	Denominations      closeout.Breakdown `json:"denominations"`
	ActualDeposit      money.Amount       `json:"actual_deposit"`
	HistoricalBackfill bool               `json:"historical_backfill"`
}

type closeoutResponse struct {
	closeout.Closeout
	ExpectedDeposit string `json:"expected_deposit"`
	ActualDeposit   string `json:"actual_deposit"`
	Variance        string `json:"variance"`
}

func toResponse(c closeout.Closeout) closeoutResponse {
	return closeoutResponse{
		Closeout:        c,
		ExpectedDeposit: money.Format(c.ExpectedDepositCents),
		ActualDeposit:   money.Format(c.ActualDepositCents),
		Variance:        money.Format(c.VarianceCents),
	}
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
	in := closeout.SubmitInput{
		StoreID:            storeID,
		BusinessDate:       date,
		ShiftID:            req.ShiftID,
		ProfileID:          req.ProfileID,
		CardSalesCents:     req.CardSales.Cents(),
		OtherSalesCents:    req.OtherSales.Cents(),
		Denominations:      req.Denominations,
		ActualDepositCents: req.ActualDeposit.Cents(),
		HistoricalBackfill: req.HistoricalBackfill,
		ActorID:            caller.UserID,
	}
	if req.CashSales != nil {
		cash := req.CashSales.Cents()
		in.CashSalesCents = &cash
	}
	for _, e := range req.Expenses {
		in.Expenses = append(in.Expenses, closeout.ExpenseInput{AmountCents: e.Amount.Cents(), Category: e.Category, Note: e.Note})
	}
	c, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.fail(w, "submit closeout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
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
	c, err := h.service.Get(r.Context(), storeID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) pendingReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListPendingReview(r.Context(), caller.StoreIDs, httpx.QueryLimit(r))
	if err != nil {
		h.fail(w, "list pending closeouts", err)
		return
	}
	out := make([]closeoutResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"closeouts": out})
}

type lockRequest struct {
	OverrideReason string `json:"override_reason" validate:"max=500"`
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req lockRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	c, err := h.service.Lock(r.Context(), closeout.LockInput{
		CloseoutID:     id,
		ReviewerID:     caller.UserID,
		OverrideReason: req.OverrideReason,
		StoreIDs:       caller.StoreIDs,
	})
	if err != nil {
		h.fail(w, "lock closeout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

type amendRequest struct {
	Reason        string             `json:"reason" validate:"required,max=500"`
	ActualDeposit *money.Amount      `json:"actual_deposit"`
	Denominations closeout.Breakdown `json:"denominations"`
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req amendRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := closeout.AmendInput{
		CloseoutID:    id,
		EditorID:      caller.UserID,
		Reason:        req.Reason,
		Denominations: req.Denominations,
		StoreIDs:      caller.StoreIDs,
	}
	if req.ActualDeposit != nil {
		actual := req.ActualDeposit.Cents()
		in.ActualDepositCents = &actual
	}
	c, err := h.service.Amend(r.Context(), in)
	if err != nil {
		h.fail(w, "amend closeout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
