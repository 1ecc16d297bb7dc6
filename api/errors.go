package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/lectern/client"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates a content or client error into a response. Remote
// envelope failures keep their status and message.
func (s *Server) mapError(w http.ResponseWriter, r *http.Request, err error) {
	if envErr, ok := errors.AsType[*client.EnvelopeError](err); ok {
		status := envErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeError(w, status, envErr.Message)
		return
	}
	switch {
	case errors.Is(err, client.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, client.ErrTransport):
		s.logger.WarnContext(r.Context(), "upstream unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream timed out")
	case errors.Is(err, context.Canceled):
		// The caller went away; nothing useful to send.
		w.WriteHeader(499)
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
