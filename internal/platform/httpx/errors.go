// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// StatusFor maps an engine error kind to an HTTP status code.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := StatusFor(kind)
	if kind == shared.KindInternal {
		Problem(w, status, "Internal Error", "", kind.String())
		return
	}
	Problem(w, status, http.StatusText(status), err.Error(), kind.String())
}
