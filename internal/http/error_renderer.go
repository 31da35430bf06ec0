package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/openmesh/meshgate/internal/errors"
	obserrors "github.com/openmesh/meshgate/internal/observability/errors"
)

// StatusForError maps the gateway's error taxonomy to HTTP statuses.
func StatusForError(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case apperrors.ErrCodeRouteNotFound, apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeSpecUnavailable, apperrors.ErrCodeBackendError:
		return http.StatusBadGateway
	case apperrors.ErrCodeBackendTimeout, apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeAuthMissing, apperrors.ErrCodeAuthInvalid:
		return http.StatusUnauthorized
	case apperrors.ErrCodeOrgRequired, apperrors.ErrCodeValidation, apperrors.ErrCodeForeignKey:
		return http.StatusBadRequest
	case apperrors.ErrCodeConflict, apperrors.ErrCodeJoinConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRelationshipMisconfigured, apperrors.ErrCodeInternal:
		return http.StatusInternalServerError
	case apperrors.ErrCodeCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RenderError writes err as the gateway's JSON error envelope, logging
// server-side failures.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"error_type", obserrors.Classify(err),
		)
	}

	code := "internal"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = string(appErr.Code)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err})
}
