package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/logger"
)

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Kind      string            `json:"kind"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

var kindStatus = map[domain.ErrKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindAuth:           http.StatusUnauthorized,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindConflict:       http.StatusConflict,
	domain.KindUnprocessable:  http.StatusUnprocessableEntity,
	domain.KindRateLimited:    http.StatusTooManyRequests,
	domain.KindInfrastructure: http.StatusServiceUnavailable,
	domain.KindInternal:       http.StatusInternalServerError,
}

// StatusFromKind maps a domain error kind to its HTTP status; unknown kinds
// are 500.
func StatusFromKind(kind domain.ErrKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteError renders err as the JSON error envelope. Errors that are not
// *domain.Error become an opaque 500. Causes are logged for 5xx and never
// sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, payload := errorPayload(err)
	payload.RequestID = RequestIDFromContext(r)

	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Str("code", payload.Code).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	switch status {
	case http.StatusTooManyRequests:
		if s, ok := payload.Meta["retry_after_seconds"]; ok {
			if _, perr := strconv.Atoi(s); perr == nil {
				w.Header().Set("Retry-After", s)
			}
		}
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="contacts-api"`)
	}

	WriteJSON(w, status, ErrorBody{Error: payload})
}

func errorPayload(err error) (int, ErrorPayload) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrorPayload{
			Kind:    string(domain.KindInternal),
			Code:    "internal_error",
			Message: "internal error",
		}
	}
	return StatusFromKind(de.Kind), ErrorPayload{
		Kind:    string(de.Kind),
		Code:    de.Code,
		Message: de.Message,
		Meta:    de.Meta,
	}
}
