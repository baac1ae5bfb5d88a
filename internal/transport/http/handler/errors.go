package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dept-site-api/internal/domain"
)

// httpError maps a service error to its HTTP status.
func httpError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrCodeMismatch), errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrCodeNotVerified), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Server-side failures
// are logged and answered with a generic message; their error text can carry
// infrastructure details such as SMTP replies.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		writeError(w, status, serverErrorMessage(status))
		return
	}
	writeError(w, status, err.Error())
}

func serverErrorMessage(status int) string {
	if status == http.StatusBadGateway {
		return "verification email could not be delivered"
	}
	return "internal error"
}
