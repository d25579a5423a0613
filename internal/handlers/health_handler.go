package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/repository"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store *repository.Store
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store *repository.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck returns agent health and the active storage backend
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Backend:   string(h.store.Backend()),
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
