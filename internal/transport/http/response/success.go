package response

import (
	"encoding/json"
	"net/http"

	"github.com/baechuer/contacts-api/internal/logger"
)

const jsonContentType = "application/json; charset=utf-8"

// fallbackBody is written when a response value cannot be encoded.
var fallbackBody = []byte(`{"error":{"kind":"internal","code":"internal_error","message":"internal error"}}` + "\n")

// Envelope wraps every success body: {"data": ...}.
type Envelope struct {
	Data any `json:"data"`
}

// WriteJSON encodes v before writing anything, so an encoding failure still
// yields a well-formed 500. Bodies carry tokens and identities and are
// marked no-store unless the caller set its own Cache-Control.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("response encode failed")
		w.Header().Set("Content-Type", jsonContentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(fallbackBody)
		return
	}

	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", jsonContentType)
	}
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
