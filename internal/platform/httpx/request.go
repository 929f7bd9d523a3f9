package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// ErrBadRequest tags malformed request bodies and parameters.
var ErrBadRequest = shared.E(shared.KindInvalidInput, "malformed request")

// Bind decodes a JSON body into target and runs struct validation.
func Bind(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		var kinded *shared.Error
		if errors.As(err, &kinded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw)
	}
	return id, nil
}

// PathDate parses a business date URL parameter.
func PathDate(r *http.Request, name string) (time.Time, error) {
	return shared.ParseBusinessDate(chi.URLParam(r, name))
}

// QueryLimit reads the optional ?limit= parameter.
func QueryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// Caller returns the identified caller or writes a 401.
func Caller(w http.ResponseWriter, r *http.Request) (shared.Caller, bool) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		RespondError(w, shared.ErrUnauthorized)
		return shared.Caller{}, false
	}
	return caller, true
}
