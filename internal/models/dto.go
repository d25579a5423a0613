package models

import (
	"time"

	"github.com/paulmach/orb"
)

// CreateSiteRequest is the request body for creating a site
type CreateSiteRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Client   string `json:"client"`
}

// CreateSurveyRequest is the request body for creating a survey
type CreateSurveyRequest struct {
	SiteID     string     `json:"siteId"`
	Trade      string     `json:"trade"`
	SurveyorID string     `json:"surveyorId"`
	GPS        *orb.Point `json:"gps,omitempty"`
}

// UpdateSurveyRequest is the request body for editing a survey.
// Nil fields are left unchanged.
type UpdateSurveyRequest struct {
	Trade  *string    `json:"trade,omitempty"`
	Status *string    `json:"status,omitempty"`
	GPS    *orb.Point `json:"gps,omitempty"`
}

// CreateInspectionRequest is the request body for creating an asset inspection
type CreateInspectionRequest struct {
	SurveyID         string     `json:"surveyId"`
	AssetID          string     `json:"assetId"`
	ConditionRating  int        `json:"conditionRating"`
	OverallCondition string     `json:"overallCondition"`
	Quantity         float64    `json:"quantity"`
	Remarks          string     `json:"remarks"`
	GPS              *orb.Point `json:"gps,omitempty"`
}

// UpdateInspectionRequest is the request body for editing an inspection.
// Nil fields are left unchanged.
type UpdateInspectionRequest struct {
	ConditionRating  *int       `json:"conditionRating,omitempty"`
	OverallCondition *string    `json:"overallCondition,omitempty"`
	Quantity         *float64   `json:"quantity,omitempty"`
	Remarks          *string    `json:"remarks,omitempty"`
	GPS              *orb.Point `json:"gps,omitempty"`
}

// RegisterPhotoRequest is the request body for registering a captured photo.
// The file must already exist on local disk; capture and compression are
// the camera layer's concern.
type RegisterPhotoRequest struct {
	AssetInspectionID string `json:"assetInspectionId"`
	SurveyID          string `json:"surveyId"`
	FilePath          string `json:"filePath"`
	Caption           string `json:"caption"`
}

// SurveyListResponse is returned when listing surveys
type SurveyListResponse struct {
	Surveys    []*Survey `json:"surveys"`
	TotalCount int       `json:"totalCount"`
}

// InspectionListResponse is returned when listing inspections
type InspectionListResponse struct {
	Inspections []*AssetInspection `json:"inspections"`
	TotalCount  int                `json:"totalCount"`
}

// PhotoListResponse is returned when listing photos
type PhotoListResponse struct {
	Photos     []*Photo `json:"photos"`
	TotalCount int      `json:"totalCount"`
}

// SyncRunResponse is returned when a manual sync is requested
type SyncRunResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// RequeueResponse is returned after re-queuing quarantined records
type RequeueResponse struct {
	Requeued int `json:"requeued"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}
