package handlers

import (
	"net/http"
	"time"

	"github.com/markdave123-py/newsdesk/internal/services"
)

type HealthHandler struct {
	health    *services.HealthService
	readiness *services.Readiness
}

func NewHealthHandler(health *services.HealthService, readiness *services.Readiness) *HealthHandler {
	return &HealthHandler{health: health, readiness: readiness}
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "News RAG chatbot API is running",
		"ragInitialized": h.readiness.Ready(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Health answers 200 while the service can take traffic and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	rep := h.health.Check(r.Context())
	status := http.StatusOK
	if rep.Status == "error" || rep.Status == services.StateFailed.String() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}
