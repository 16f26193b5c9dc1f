package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkoziy/acat/internal/logging"
)

var errNotFound = errors.New("not found")

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// badRequest marks a client input error whose message is safe to echo.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// respondError logs err with the request id and writes a JSON error. Only
// bad request messages reach the client verbatim.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	logger := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
	)

	msg := http.StatusText(status)
	var br *badRequest
	if errors.As(err, &br) {
		msg = br.msg
	}

	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Code:      codeFor(status),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// respondLookupError maps a single-row lookup failure to 404 or 500.
func (s *Server) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
		return
	}
	s.respondError(w, r, err, http.StatusInternalServerError)
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// writeJSON encodes v as JSON with the given status. A Content-Type set by
// the caller is kept.
func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
