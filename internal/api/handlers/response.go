package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
)

const (
	msgInitializing    = "System is initializing. Please try again later."
	msgInternal        = "Internal server error"
	msgSessionNotFound = "Session not found"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps an error kind to a status and a fixed message.
// The error text itself is only logged.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var svcErr *core.Error
	switch {
	case errors.Is(err, core.ErrValidation):
		msg := "invalid request"
		if errors.As(err, &svcErr) && svcErr.Message != "" {
			msg = svcErr.Message
		}
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, core.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, msgSessionNotFound)
	case errors.Is(err, core.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, msgInitializing)
	default:
		log.Error("request failed",
			zap.String("kind", string(core.KindOf(err))),
			zap.String("stage", core.StageOf(err)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
