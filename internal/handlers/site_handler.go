package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/repository"
)

// SiteHandler handles site API endpoints
type SiteHandler struct {
	store *repository.Store
}

// NewSiteHandler creates a new SiteHandler
func NewSiteHandler(store *repository.Store) *SiteHandler {
	return &SiteHandler{store: store}
}

// ListSites returns all sites
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.store.Sites.GetAll(r.Context())
	if err != nil {
		http.Error(w, "Failed to list sites", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sites)
}

// CreateSite creates a new site
func (h *SiteHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	site, err := models.NewSite(req.Name, req.Location, req.Client)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	if err := h.store.Sites.Add(r.Context(), site); err != nil {
		http.Error(w, "Failed to save site", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(site)
}

// GetSite returns a site by ID
func (h *SiteHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")

	site, err := h.store.Sites.GetByID(r.Context(), siteID)
	if err != nil {
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(site)
}

// DeleteSite removes a site
func (h *SiteHandler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")

	deleted, err := h.store.Sites.Delete(r.Context(), siteID)
	if err != nil {
		http.Error(w, "Failed to delete site", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeEntityError maps model validation errors to 400 responses
func writeEntityError(w http.ResponseWriter, err error) {
	var entityErr models.EntityError
	if errors.As(err, &entityErr) {
		http.Error(w, entityErr.Message, http.StatusBadRequest)
		return
	}
	http.Error(w, "Invalid request", http.StatusBadRequest)
}
