package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/services"
)

// SyncHandler exposes the sync engine to the UI: manual trigger, status
// snapshot, requeue of quarantined records
type SyncHandler struct {
	sync *services.SyncService
	conn *services.ConnectivityService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sync *services.SyncService, conn *services.ConnectivityService) *SyncHandler {
	return &SyncHandler{sync: sync, conn: conn}
}

// RunSync triggers a sync cycle ("sync now" button)
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	response := models.SyncRunResponse{Started: true}

	switch {
	case h.sync.IsSyncing():
		response = models.SyncRunResponse{Started: false, Reason: "sync already running"}
	case !h.conn.CheckNow(r.Context()):
		response = models.SyncRunResponse{Started: false, Reason: "offline"}
	default:
		h.sync.RunNow()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// GetStatus returns the current sync status
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.sync.Status(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// RequeueFailed returns quarantined records to the upload queue
func (h *SyncHandler) RequeueFailed(w http.ResponseWriter, r *http.Request) {
	requeued, err := h.sync.Requeue(r.Context())
	if err != nil {
		http.Error(w, "Failed to requeue records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.RequeueResponse{Requeued: requeued})
}
