package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/observability"
	"github.com/surveysync/agent/internal/repository"
	"github.com/surveysync/agent/internal/services"
)

// PhotoHandler handles photo record API endpoints. Capture and
// compression happen in the camera layer; this surface only registers
// files that already exist on local disk.
type PhotoHandler struct {
	store    *repository.Store
	metadata *services.MetadataService
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(store *repository.Store, metadata *services.MetadataService) *PhotoHandler {
	return &PhotoHandler{store: store, metadata: metadata}
}

// ListPhotos returns the photos attached to an inspection
func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	inspectionID := chi.URLParam(r, "id")

	photos, err := h.store.Photos.GetByInspection(r.Context(), inspectionID)
	if err != nil {
		http.Error(w, "Failed to list photos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.PhotoListResponse{
		Photos:     photos,
		TotalCount: len(photos),
	})
}

// RegisterPhoto records a captured photo file against an inspection
func (h *PhotoHandler) RegisterPhoto(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	insp, err := h.store.Inspections.GetByID(r.Context(), req.AssetInspectionID)
	if err != nil {
		http.Error(w, "Failed to get inspection", http.StatusInternalServerError)
		return
	}
	if insp == nil {
		http.Error(w, "Inspection not found", http.StatusNotFound)
		return
	}

	photo, err := models.NewPhoto(req.AssetInspectionID, req.SurveyID, req.FilePath, req.Caption)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	if err := h.metadata.Enrich(photo); err != nil {
		observability.WithField("photo_id", photo.ID).Warnf("Photo file not readable: %v", err)
		http.Error(w, "Photo file not readable", http.StatusBadRequest)
		return
	}

	if err := h.store.Photos.Add(r.Context(), photo); err != nil {
		http.Error(w, "Failed to save photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(photo)
}

// GetPhoto returns a photo record by ID
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "id")

	photo, err := h.store.Photos.GetByID(r.Context(), photoID)
	if err != nil {
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}
	if photo == nil {
		http.Error(w, "Photo not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(photo)
}

// UpdatePhoto edits a photo's caption. The remote keeps whatever copy it
// already received; caption edits after upload stay local.
func (h *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "id")

	var req struct {
		Caption *string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	photo, err := h.store.Photos.GetByID(r.Context(), photoID)
	if err != nil {
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}
	if photo == nil {
		http.Error(w, "Photo not found", http.StatusNotFound)
		return
	}

	if req.Caption != nil {
		photo.Caption = *req.Caption
	}

	if err := h.store.Photos.Update(r.Context(), photo); err != nil {
		http.Error(w, "Failed to update photo", http.StatusInternalServerError)
		return
	}

	updated, err := h.store.Photos.GetByID(r.Context(), photoID)
	if err != nil || updated == nil {
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeletePhoto removes a photo record
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "id")

	deleted, err := h.store.Photos.Delete(r.Context(), photoID)
	if err != nil {
		http.Error(w, "Failed to delete photo", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Photo not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
