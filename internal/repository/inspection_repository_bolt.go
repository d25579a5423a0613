package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/surveysync/agent/internal/models"
)

// BoltInspectionRepository handles inspection persistence on the
// key-value backend
type BoltInspectionRepository struct {
	db *bolt.DB
}

// NewBoltInspectionRepository creates a new BoltInspectionRepository
func NewBoltInspectionRepository(db *bolt.DB) *BoltInspectionRepository {
	return &BoltInspectionRepository{db: db}
}

// GetByID retrieves an inspection by its ID
func (r *BoltInspectionRepository) GetByID(ctx context.Context, id string) (*models.AssetInspection, error) {
	var insp models.AssetInspection
	found, err := boltGet(r.db, bucketInspections, id, &insp)
	if err != nil || !found {
		return nil, err
	}
	return &insp, nil
}

// GetBySurvey retrieves all inspections belonging to a survey
func (r *BoltInspectionRepository) GetBySurvey(ctx context.Context, surveyID string) ([]*models.AssetInspection, error) {
	inspections, err := r.filter(func(i *models.AssetInspection) bool { return i.SurveyID == surveyID })
	if err != nil {
		return nil, err
	}
	sortInspections(inspections)
	return inspections, nil
}

// GetPendingWithSyncedParent retrieves inspections awaiting upload whose
// parent survey already has a server id. Parent state is read in the same
// view transaction as the scan.
func (r *BoltInspectionRepository) GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.AssetInspection, error) {
	return r.pendingByParent(true, maxAttempts)
}

// GetPendingBlockedOnParent retrieves inspections whose survey has no
// server id yet
func (r *BoltInspectionRepository) GetPendingBlockedOnParent(ctx context.Context) ([]*models.AssetInspection, error) {
	return r.pendingByParent(false, 0)
}

func (r *BoltInspectionRepository) pendingByParent(parentSynced bool, maxAttempts int) ([]*models.AssetInspection, error) {
	inspections := []*models.AssetInspection{}
	err := r.db.View(func(tx *bolt.Tx) error {
		surveys := tx.Bucket(bucketSurveys)
		return tx.Bucket(bucketInspections).ForEach(func(_, data []byte) error {
			var insp models.AssetInspection
			if err := json.Unmarshal(data, &insp); err != nil {
				return err
			}
			if insp.Sync.Synced {
				return nil
			}
			if parentSynced && insp.Sync.Exhausted(maxAttempts) {
				return nil
			}

			parentData := surveys.Get([]byte(insp.SurveyID))
			if parentData == nil {
				return nil
			}
			var parent models.Survey
			if err := json.Unmarshal(parentData, &parent); err != nil {
				return err
			}

			if _, ok := parent.Sync.ServerRef(); ok == parentSynced {
				inspections = append(inspections, &insp)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortInspections(inspections)
	return inspections, nil
}

// CountPending returns the number of inspections awaiting upload
func (r *BoltInspectionRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	inspections, err := r.filter(func(i *models.AssetInspection) bool {
		return !i.Sync.Synced && !i.Sync.Exhausted(maxAttempts)
	})
	return len(inspections), err
}

// CountFailed returns the number of quarantined inspections
func (r *BoltInspectionRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	inspections, err := r.filter(func(i *models.AssetInspection) bool {
		return !i.Sync.Synced && i.Sync.Exhausted(maxAttempts)
	})
	return len(inspections), err
}

// Add inserts a new inspection
func (r *BoltInspectionRepository) Add(ctx context.Context, insp *models.AssetInspection) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltPut(tx, bucketInspections, insp.ID, insp)
	})
}

// Update persists domain fields and re-marks the inspection as pending
// upload, keeping its server id
func (r *BoltInspectionRepository) Update(ctx context.Context, insp *models.AssetInspection) error {
	return r.mutate(insp.ID, func(stored *models.AssetInspection) {
		stored.ConditionRating = insp.ConditionRating
		stored.OverallCondition = insp.OverallCondition
		stored.Quantity = insp.Quantity
		stored.Remarks = insp.Remarks
		stored.GPS = insp.GPS
		stored.Sync.MarkDirty()
		stored.Sync.SyncAttempts = 0
		stored.Sync.LastSyncError = nil
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSynced records a successful upload with the server-assigned id
func (r *BoltInspectionRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	return r.mutate(id, func(stored *models.AssetInspection) {
		stored.Sync.MarkSynced(serverID)
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSyncFailed records one failed upload attempt
func (r *BoltInspectionRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	return r.mutate(id, func(stored *models.AssetInspection) {
		stored.Sync.MarkFailed(message)
	})
}

// RequeueFailed resets the attempt counter on quarantined inspections
func (r *BoltInspectionRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}

	requeued := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInspections)
		return b.ForEach(func(_, data []byte) error {
			var insp models.AssetInspection
			if err := json.Unmarshal(data, &insp); err != nil {
				return err
			}
			if insp.Sync.Synced || !insp.Sync.Exhausted(maxAttempts) {
				return nil
			}
			insp.Sync.SyncAttempts = 0
			requeued++
			return boltPut(tx, bucketInspections, insp.ID, &insp)
		})
	})
	return requeued, err
}

// Delete removes an inspection by ID
func (r *BoltInspectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	return boltDelete(r.db, bucketInspections, id)
}

// DeleteBySurvey removes all inspections belonging to a survey
func (r *BoltInspectionRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int, error) {
	deleted := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInspections)
		var doomed [][]byte
		err := b.ForEach(func(key, data []byte) error {
			var insp models.AssetInspection
			if err := json.Unmarshal(data, &insp); err != nil {
				return err
			}
			if insp.SurveyID == surveyID {
				doomed = append(doomed, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range doomed {
			if err := b.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (r *BoltInspectionRepository) filter(keep func(*models.AssetInspection) bool) ([]*models.AssetInspection, error) {
	inspections := []*models.AssetInspection{}
	err := boltForEach(r.db, bucketInspections, func(data []byte) error {
		var insp models.AssetInspection
		if err := json.Unmarshal(data, &insp); err != nil {
			return err
		}
		if keep(&insp) {
			inspections = append(inspections, &insp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inspections, nil
}

func (r *BoltInspectionRepository) mutate(id string, fn func(*models.AssetInspection)) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketInspections).Get([]byte(id))
		if data == nil {
			return nil
		}
		var insp models.AssetInspection
		if err := json.Unmarshal(data, &insp); err != nil {
			return err
		}
		fn(&insp)
		return boltPut(tx, bucketInspections, insp.ID, &insp)
	})
}

func sortInspections(inspections []*models.AssetInspection) {
	sort.Slice(inspections, func(i, j int) bool {
		return inspections[i].CreatedAt.Before(inspections[j].CreatedAt)
	})
}
