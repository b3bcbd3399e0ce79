package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fieldserve/internal/model"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, code int, errCode, message string, log *zap.Logger) {
	log.Error("API error", zap.String("code", errCode), zap.String("message", message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errCode, Message: message})
}

// WriteServiceError maps the core error taxonomy onto HTTP. Unauthorized
// stays a generic message; a record the actor may not see is reported the
// same as a missing one.
func WriteServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	if ve, ok := model.AsValidation(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "validation_failed",
			Message: "Some fields are missing or invalid",
			Fields:  ve.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, model.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "forbidden", "Permission denied", log)
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Record not found", log)
	case errors.Is(err, model.ErrIllegalEdge):
		WriteError(w, http.StatusConflict, "illegal_transition", "This status change is not allowed", log)
	case errors.Is(err, model.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "The record was modified concurrently, retry with fresh data", log)
	case errors.Is(err, model.ErrUpstreamUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "upstream_unavailable", "A backing service is unavailable", log)
	default:
		WriteError(w, http.StatusInternalServerError, "internal", err.Error(), log)
	}
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// RequestLogger logs HTTP requests and responses
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need direct access to the ResponseWriter.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
