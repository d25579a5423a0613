package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/surveysync/agent/internal/models"
)

// BoltSurveyRepository handles survey persistence on the key-value backend
type BoltSurveyRepository struct {
	db *bolt.DB
}

// NewBoltSurveyRepository creates a new BoltSurveyRepository
func NewBoltSurveyRepository(db *bolt.DB) *BoltSurveyRepository {
	return &BoltSurveyRepository{db: db}
}

// GetByID retrieves a survey by its ID
func (r *BoltSurveyRepository) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	var survey models.Survey
	found, err := boltGet(r.db, bucketSurveys, id, &survey)
	if err != nil || !found {
		return nil, err
	}
	return &survey, nil
}

// GetAll retrieves all surveys, newest first
func (r *BoltSurveyRepository) GetAll(ctx context.Context) ([]*models.Survey, error) {
	surveys, err := r.filter(func(*models.Survey) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(surveys, func(i, j int) bool {
		return surveys[i].CreatedAt.After(surveys[j].CreatedAt)
	})
	return surveys, nil
}

// GetBySite retrieves all surveys for a site
func (r *BoltSurveyRepository) GetBySite(ctx context.Context, siteID string) ([]*models.Survey, error) {
	surveys, err := r.filter(func(s *models.Survey) bool { return s.SiteID == siteID })
	if err != nil {
		return nil, err
	}
	sort.Slice(surveys, func(i, j int) bool {
		return surveys[i].CreatedAt.After(surveys[j].CreatedAt)
	})
	return surveys, nil
}

// GetPending retrieves surveys awaiting upload, oldest first
func (r *BoltSurveyRepository) GetPending(ctx context.Context, maxAttempts int) ([]*models.Survey, error) {
	surveys, err := r.filter(func(s *models.Survey) bool {
		return !s.Sync.Synced && !s.Sync.Exhausted(maxAttempts)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(surveys, func(i, j int) bool {
		return surveys[i].CreatedAt.Before(surveys[j].CreatedAt)
	})
	return surveys, nil
}

// CountPending returns the number of surveys awaiting upload
func (r *BoltSurveyRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	surveys, err := r.filter(func(s *models.Survey) bool {
		return !s.Sync.Synced && !s.Sync.Exhausted(maxAttempts)
	})
	return len(surveys), err
}

// CountFailed returns the number of quarantined surveys
func (r *BoltSurveyRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	surveys, err := r.filter(func(s *models.Survey) bool {
		return !s.Sync.Synced && s.Sync.Exhausted(maxAttempts)
	})
	return len(surveys), err
}

// Add inserts a new survey
func (r *BoltSurveyRepository) Add(ctx context.Context, survey *models.Survey) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltPut(tx, bucketSurveys, survey.ID, survey)
	})
}

// Update persists domain fields and re-marks the survey as pending
// upload. The stored sync state is authoritative: only the orchestrator's
// MarkSynced/MarkSyncFailed may change the server id.
func (r *BoltSurveyRepository) Update(ctx context.Context, survey *models.Survey) error {
	return r.mutate(survey.ID, func(stored *models.Survey) {
		stored.Trade = survey.Trade
		stored.Status = survey.Status
		stored.SurveyorID = survey.SurveyorID
		stored.GPS = survey.GPS
		stored.Sync.MarkDirty()
		stored.Sync.SyncAttempts = 0
		stored.Sync.LastSyncError = nil
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSynced records a successful upload with the server-assigned id
func (r *BoltSurveyRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	return r.mutate(id, func(stored *models.Survey) {
		stored.Sync.MarkSynced(serverID)
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSyncFailed records one failed upload attempt
func (r *BoltSurveyRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	return r.mutate(id, func(stored *models.Survey) {
		stored.Sync.MarkFailed(message)
	})
}

// RequeueFailed resets the attempt counter on quarantined surveys
func (r *BoltSurveyRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}

	requeued := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSurveys)
		return b.ForEach(func(key, data []byte) error {
			var survey models.Survey
			if err := json.Unmarshal(data, &survey); err != nil {
				return err
			}
			if survey.Sync.Synced || !survey.Sync.Exhausted(maxAttempts) {
				return nil
			}
			survey.Sync.SyncAttempts = 0
			requeued++
			return boltPut(tx, bucketSurveys, survey.ID, &survey)
		})
	})
	return requeued, err
}

// Delete removes a survey by ID
func (r *BoltSurveyRepository) Delete(ctx context.Context, id string) (bool, error) {
	return boltDelete(r.db, bucketSurveys, id)
}

func (r *BoltSurveyRepository) filter(keep func(*models.Survey) bool) ([]*models.Survey, error) {
	surveys := []*models.Survey{}
	err := boltForEach(r.db, bucketSurveys, func(data []byte) error {
		var survey models.Survey
		if err := json.Unmarshal(data, &survey); err != nil {
			return err
		}
		if keep(&survey) {
			surveys = append(surveys, &survey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return surveys, nil
}

// mutate applies fn to the stored record inside one write transaction so
// the read-modify-write cannot interleave with another writer
func (r *BoltSurveyRepository) mutate(id string, fn func(*models.Survey)) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSurveys).Get([]byte(id))
		if data == nil {
			return nil
		}
		var survey models.Survey
		if err := json.Unmarshal(data, &survey); err != nil {
			return err
		}
		fn(&survey)
		return boltPut(tx, bucketSurveys, survey.ID, &survey)
	})
}
