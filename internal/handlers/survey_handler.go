package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/repository"
)

// SurveyHandler handles survey API endpoints. All writes are local-first:
// they succeed against the store regardless of connectivity and the sync
// engine reconciles them later.
type SurveyHandler struct {
	store *repository.Store
}

// NewSurveyHandler creates a new SurveyHandler
func NewSurveyHandler(store *repository.Store) *SurveyHandler {
	return &SurveyHandler{store: store}
}

// ListSurveys returns all surveys, optionally filtered by site
func (h *SurveyHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	var surveys []*models.Survey
	var err error

	if siteID := r.URL.Query().Get("siteId"); siteID != "" {
		surveys, err = h.store.Surveys.GetBySite(r.Context(), siteID)
	} else {
		surveys, err = h.store.Surveys.GetAll(r.Context())
	}
	if err != nil {
		http.Error(w, "Failed to list surveys", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.SurveyListResponse{
		Surveys:    surveys,
		TotalCount: len(surveys),
	})
}

// CreateSurvey creates a new survey
func (h *SurveyHandler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	survey, err := models.NewSurvey(req.SiteID, req.Trade, req.SurveyorID, req.GPS)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	// A failed local write means the surveyor's data was not captured;
	// this must surface, unlike upload failures
	if err := h.store.Surveys.Add(r.Context(), survey); err != nil {
		http.Error(w, "Failed to save survey", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(survey)
}

// GetSurvey returns a survey by ID
func (h *SurveyHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "id")

	survey, err := h.store.Surveys.GetByID(r.Context(), surveyID)
	if err != nil {
		http.Error(w, "Failed to get survey", http.StatusInternalServerError)
		return
	}
	if survey == nil {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(survey)
}

// UpdateSurvey edits a survey. Editing re-marks the record for upload;
// its server id, if already assigned, is kept so the next cycle performs
// an update instead of a duplicate create.
func (h *SurveyHandler) UpdateSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "id")

	var req models.UpdateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	survey, err := h.store.Surveys.GetByID(r.Context(), surveyID)
	if err != nil {
		http.Error(w, "Failed to get survey", http.StatusInternalServerError)
		return
	}
	if survey == nil {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}

	if req.Trade != nil {
		survey.Trade = *req.Trade
	}
	if req.Status != nil {
		if !models.IsValidSurveyStatus(*req.Status) {
			writeEntityError(w, models.ErrInvalidStatus)
			return
		}
		survey.Status = *req.Status
	}
	if req.GPS != nil {
		survey.GPS = req.GPS
	}

	if err := h.store.Surveys.Update(r.Context(), survey); err != nil {
		http.Error(w, "Failed to update survey", http.StatusInternalServerError)
		return
	}

	updated, err := h.store.Surveys.GetByID(r.Context(), surveyID)
	if err != nil || updated == nil {
		http.Error(w, "Failed to get survey", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteSurvey removes a survey with all of its inspections and photo
// records, synced or not
func (h *SurveyHandler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "id")

	deleted, err := h.store.DeleteSurveyCascade(r.Context(), surveyID)
	if err != nil {
		http.Error(w, "Failed to delete survey", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
