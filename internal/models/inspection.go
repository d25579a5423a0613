package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// AssetInspection records the observed condition of a single asset
// during a survey. Child of Survey, parent of Photo.
type AssetInspection struct {
	ID               string     `json:"id"`
	SurveyID         string     `json:"surveyId"`
	AssetID          string     `json:"assetId"`
	ConditionRating  int        `json:"conditionRating"`
	OverallCondition string     `json:"overallCondition"`
	Quantity         float64    `json:"quantity"`
	Remarks          string     `json:"remarks"`
	GPS              *orb.Point `json:"gps,omitempty"`
	Sync             SyncState  `json:"sync"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewAssetInspection creates a new AssetInspection with a client-generated
// identifier. Condition ratings run 1 (failed) to 5 (as new).
func NewAssetInspection(surveyID, assetID string, conditionRating int, overallCondition string, quantity float64, remarks string, gps *orb.Point) (*AssetInspection, error) {
	if strings.TrimSpace(surveyID) == "" {
		return nil, ErrEmptySurveyID
	}
	if strings.TrimSpace(assetID) == "" {
		return nil, ErrEmptyAssetID
	}
	if conditionRating < 1 || conditionRating > 5 {
		return nil, ErrInvalidRating
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	return &AssetInspection{
		ID:               uuid.New().String(),
		SurveyID:         surveyID,
		AssetID:          assetID,
		ConditionRating:  conditionRating,
		OverallCondition: strings.TrimSpace(overallCondition),
		Quantity:         quantity,
		Remarks:          remarks,
		GPS:              gps,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
