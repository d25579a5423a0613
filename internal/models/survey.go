package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Survey statuses. Status progression is independent of sync state: a
// draft survey can be fully synced and a submitted one can still be
// pending upload.
const (
	SurveyStatusDraft      = "draft"
	SurveyStatusInProgress = "in_progress"
	SurveyStatusSubmitted  = "submitted"
)

// IsValidSurveyStatus reports whether s is a known survey status
func IsValidSurveyStatus(s string) bool {
	switch s {
	case SurveyStatusDraft, SurveyStatusInProgress, SurveyStatusSubmitted:
		return true
	}
	return false
}

// Survey is one inspection visit to a site for a given trade. It is the
// root of the upload dependency tree: its inspections (and their photos)
// cannot be uploaded until the survey has a server id.
type Survey struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"siteId"`
	Trade      string     `json:"trade"`
	Status     string     `json:"status"`
	SurveyorID string     `json:"surveyorId"`
	GPS        *orb.Point `json:"gps,omitempty"`
	Sync       SyncState  `json:"sync"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewSurvey creates a new draft Survey with a client-generated identifier.
// No network contact is needed; the record is immediately persistable.
func NewSurvey(siteID, trade, surveyorID string, gps *orb.Point) (*Survey, error) {
	if strings.TrimSpace(siteID) == "" {
		return nil, ErrEmptySiteID
	}
	if strings.TrimSpace(trade) == "" {
		return nil, ErrEmptyTrade
	}
	if strings.TrimSpace(surveyorID) == "" {
		return nil, ErrEmptySurveyorID
	}

	now := time.Now().UTC()
	return &Survey{
		ID:         uuid.New().String(),
		SiteID:     siteID,
		Trade:      strings.TrimSpace(trade),
		Status:     SurveyStatusDraft,
		SurveyorID: surveyorID,
		GPS:        gps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
