package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
)

// Error is an API failure rendered as
//
//	{"error":{"code":"...","message":"..."},"request_id":"...","trace_id":"..."}
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    singleLine(code, codeLimit),
		Message: singleLine(message, messageLimit),
		Status:  status,
	}
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// Internal hides store and unexpected failures behind a generic 500.
func Internal() Error {
	return NewError("internal", "internal server error", http.StatusInternalServerError)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// WriteError renders err, tagging it with the chi request id and the trace id
// found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorEnvelope{
		Error:     errorBody{Code: err.Code, Message: err.Message},
		RequestID: singleLine(middleware.GetReqID(ctx), codeLimit),
		TraceID:   singleLine(requestctx.TraceID(ctx), 64),
	})
}

// WriteJSON writes payload with status. A nil payload sends headers only.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// singleLine flattens line breaks and caps the value at limit bytes.
func singleLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
