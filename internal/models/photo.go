package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Photo is an evidence image attached to an asset inspection. The file
// itself stays on local disk; only the record (and, during sync, the file
// bytes) travel to the remote backend. Child of AssetInspection.
type Photo struct {
	ID                string     `json:"id"`
	AssetInspectionID string     `json:"assetInspectionId"`
	SurveyID          string     `json:"surveyId"`
	FilePath          string     `json:"filePath"`
	Caption           string     `json:"caption"`
	FileSize          int64      `json:"fileSize"`
	TakenAt           *time.Time `json:"takenAt,omitempty"`
	GPS               *orb.Point `json:"gps,omitempty"`
	Sync              SyncState  `json:"sync"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// NewPhoto creates a new Photo with a client-generated identifier
func NewPhoto(assetInspectionID, surveyID, filePath, caption string) (*Photo, error) {
	if strings.TrimSpace(assetInspectionID) == "" {
		return nil, ErrEmptyInspectionID
	}
	if strings.TrimSpace(surveyID) == "" {
		return nil, ErrEmptySurveyID
	}
	if strings.TrimSpace(filePath) == "" {
		return nil, ErrEmptyFilePath
	}

	now := time.Now().UTC()
	return &Photo{
		ID:                uuid.New().String(),
		AssetInspectionID: assetInspectionID,
		SurveyID:          surveyID,
		FilePath:          filePath,
		Caption:           caption,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
