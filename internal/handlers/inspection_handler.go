package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/repository"
)

// InspectionHandler handles asset inspection API endpoints
type InspectionHandler struct {
	store *repository.Store
}

// NewInspectionHandler creates a new InspectionHandler
func NewInspectionHandler(store *repository.Store) *InspectionHandler {
	return &InspectionHandler{store: store}
}

// ListInspections returns the inspections belonging to a survey
func (h *InspectionHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "id")

	inspections, err := h.store.Inspections.GetBySurvey(r.Context(), surveyID)
	if err != nil {
		http.Error(w, "Failed to list inspections", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.InspectionListResponse{
		Inspections: inspections,
		TotalCount:  len(inspections),
	})
}

// CreateInspection records a new asset inspection
func (h *InspectionHandler) CreateInspection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The parent survey must exist locally; it does not need to be
	// synced, the inspection will wait for it in the upload queue
	survey, err := h.store.Surveys.GetByID(r.Context(), req.SurveyID)
	if err != nil {
		http.Error(w, "Failed to get survey", http.StatusInternalServerError)
		return
	}
	if survey == nil {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}

	insp, err := models.NewAssetInspection(req.SurveyID, req.AssetID, req.ConditionRating,
		req.OverallCondition, req.Quantity, req.Remarks, req.GPS)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	if err := h.store.Inspections.Add(r.Context(), insp); err != nil {
		http.Error(w, "Failed to save inspection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(insp)
}

// GetInspection returns an inspection by ID
func (h *InspectionHandler) GetInspection(w http.ResponseWriter, r *http.Request) {
	inspectionID := chi.URLParam(r, "id")

	insp, err := h.store.Inspections.GetByID(r.Context(), inspectionID)
	if err != nil {
		http.Error(w, "Failed to get inspection", http.StatusInternalServerError)
		return
	}
	if insp == nil {
		http.Error(w, "Inspection not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(insp)
}

// UpdateInspection edits an inspection and re-marks it for upload
func (h *InspectionHandler) UpdateInspection(w http.ResponseWriter, r *http.Request) {
	inspectionID := chi.URLParam(r, "id")

	var req models.UpdateInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	insp, err := h.store.Inspections.GetByID(r.Context(), inspectionID)
	if err != nil {
		http.Error(w, "Failed to get inspection", http.StatusInternalServerError)
		return
	}
	if insp == nil {
		http.Error(w, "Inspection not found", http.StatusNotFound)
		return
	}

	if req.ConditionRating != nil {
		if *req.ConditionRating < 1 || *req.ConditionRating > 5 {
			writeEntityError(w, models.ErrInvalidRating)
			return
		}
		insp.ConditionRating = *req.ConditionRating
	}
	if req.OverallCondition != nil {
		insp.OverallCondition = *req.OverallCondition
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			writeEntityError(w, models.ErrInvalidQuantity)
			return
		}
		insp.Quantity = *req.Quantity
	}
	if req.Remarks != nil {
		insp.Remarks = *req.Remarks
	}
	if req.GPS != nil {
		insp.GPS = req.GPS
	}

	if err := h.store.Inspections.Update(r.Context(), insp); err != nil {
		http.Error(w, "Failed to update inspection", http.StatusInternalServerError)
		return
	}

	updated, err := h.store.Inspections.GetByID(r.Context(), inspectionID)
	if err != nil || updated == nil {
		http.Error(w, "Failed to get inspection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteInspection removes an inspection together with its photo records
func (h *InspectionHandler) DeleteInspection(w http.ResponseWriter, r *http.Request) {
	inspectionID := chi.URLParam(r, "id")

	deleted, err := h.store.DeleteInspectionCascade(r.Context(), inspectionID)
	if err != nil {
		http.Error(w, "Failed to delete inspection", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Inspection not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
