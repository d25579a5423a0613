package repository

import (
	"context"

	"github.com/surveysync/agent/internal/models"
)

// SiteRepo defines the interface for site persistence operations
type SiteRepo interface {
	GetByID(ctx context.Context, id string) (*models.Site, error)
	GetAll(ctx context.Context) ([]*models.Site, error)
	Add(ctx context.Context, site *models.Site) error
	Delete(ctx context.Context, id string) (bool, error)
}

// SurveyRepo defines the interface for survey persistence operations.
//
// Update persists the survey's domain fields and re-marks the record as
// pending upload; it never touches the server id. MarkSynced and
// MarkSyncFailed are reserved for the sync orchestrator.
type SurveyRepo interface {
	GetByID(ctx context.Context, id string) (*models.Survey, error)
	GetAll(ctx context.Context) ([]*models.Survey, error)
	GetBySite(ctx context.Context, siteID string) ([]*models.Survey, error)
	Add(ctx context.Context, survey *models.Survey) error
	Update(ctx context.Context, survey *models.Survey) error
	Delete(ctx context.Context, id string) (bool, error)

	GetPending(ctx context.Context, maxAttempts int) ([]*models.Survey, error)
	CountPending(ctx context.Context, maxAttempts int) (int, error)
	CountFailed(ctx context.Context, maxAttempts int) (int, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkSyncFailed(ctx context.Context, id, message string) error
	RequeueFailed(ctx context.Context, maxAttempts int) (int, error)
}

// InspectionRepo defines the interface for asset inspection persistence.
//
// The pending queries are split by parent readiness: an inspection whose
// survey has no server id yet is blocked, not failed, and must never be
// handed to the uploader.
type InspectionRepo interface {
	GetByID(ctx context.Context, id string) (*models.AssetInspection, error)
	GetBySurvey(ctx context.Context, surveyID string) ([]*models.AssetInspection, error)
	Add(ctx context.Context, inspection *models.AssetInspection) error
	Update(ctx context.Context, inspection *models.AssetInspection) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteBySurvey(ctx context.Context, surveyID string) (int, error)

	GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.AssetInspection, error)
	GetPendingBlockedOnParent(ctx context.Context) ([]*models.AssetInspection, error)
	CountPending(ctx context.Context, maxAttempts int) (int, error)
	CountFailed(ctx context.Context, maxAttempts int) (int, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkSyncFailed(ctx context.Context, id, message string) error
	RequeueFailed(ctx context.Context, maxAttempts int) (int, error)
}

// PhotoRepo defines the interface for photo record persistence
type PhotoRepo interface {
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	GetByInspection(ctx context.Context, inspectionID string) ([]*models.Photo, error)
	Add(ctx context.Context, photo *models.Photo) error
	Update(ctx context.Context, photo *models.Photo) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByInspection(ctx context.Context, inspectionID string) (int, error)
	DeleteBySurvey(ctx context.Context, surveyID string) (int, error)

	GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.Photo, error)
	GetPendingBlockedOnParent(ctx context.Context) ([]*models.Photo, error)
	CountPending(ctx context.Context, maxAttempts int) (int, error)
	CountFailed(ctx context.Context, maxAttempts int) (int, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkSyncFailed(ctx context.Context, id, message string) error
	RequeueFailed(ctx context.Context, maxAttempts int) (int, error)
}
