package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/cashrecon/internal/platform/httpx"
	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// UserHeader carries the identity verified by the upstream gateway.
const UserHeader = "X-User-ID"

// Middleware wires store authorization helpers for HTTP handlers.
type Middleware struct {
	Stores StoreSource
	Logger *slog.Logger
}

// Identify resolves the caller and their authorized stores, rejecting requests without identity.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUserID(r.Header.Get(UserHeader))
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		stores, err := m.Stores.AuthorizedStores(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("rbac authorized stores", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		caller := shared.Caller{UserID: userID, StoreIDs: stores}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
	})
}

// RequireStore ensures the store named by the URL parameter is in the caller's set.
func (m Middleware) RequireStore(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := shared.CallerFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			storeID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || storeID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid store id", shared.KindInvalidInput.String())
				return
			}
			if !caller.CanAccessStore(storeID) {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseUserID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
