package web

// errors.go provides unified error responses: technical details are
// logged with the request ID, the client gets a short JSON message.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"invoiceflow/internal/store"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondJSON(w, statusCode, ErrorResponse{Error: userMessage(err, statusCode)})
}

// userMessage keeps internal failure detail out of 5xx responses.
func userMessage(err error, statusCode int) string {
	if statusCode >= http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func statusForStoreError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
