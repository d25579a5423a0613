package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/surveysync/agent/internal/models"
)

func sortPhotos(photos []*models.Photo) {
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].CreatedAt.Before(photos[j].CreatedAt)
	})
}

// BoltPhotoRepository handles photo record persistence on the key-value
// backend
type BoltPhotoRepository struct {
	db *bolt.DB
}

// NewBoltPhotoRepository creates a new BoltPhotoRepository
func NewBoltPhotoRepository(db *bolt.DB) *BoltPhotoRepository {
	return &BoltPhotoRepository{db: db}
}

// GetByID retrieves a photo by its ID
func (r *BoltPhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	var photo models.Photo
	found, err := boltGet(r.db, bucketPhotos, id, &photo)
	if err != nil || !found {
		return nil, err
	}
	return &photo, nil
}

// GetByInspection retrieves all photos attached to an inspection
func (r *BoltPhotoRepository) GetByInspection(ctx context.Context, inspectionID string) ([]*models.Photo, error) {
	photos, err := r.filter(func(p *models.Photo) bool { return p.AssetInspectionID == inspectionID })
	if err != nil {
		return nil, err
	}
	sortPhotos(photos)
	return photos, nil
}

// GetPendingWithSyncedParent retrieves photos awaiting upload whose parent
// inspection already has a server id. Parent state is read in the same
// view transaction as the scan.
func (r *BoltPhotoRepository) GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.Photo, error) {
	return r.pendingByParent(true, maxAttempts)
}

// GetPendingBlockedOnParent retrieves photos whose parent inspection has
// no server id yet
func (r *BoltPhotoRepository) GetPendingBlockedOnParent(ctx context.Context) ([]*models.Photo, error) {
	return r.pendingByParent(false, 0)
}

func (r *BoltPhotoRepository) pendingByParent(parentSynced bool, maxAttempts int) ([]*models.Photo, error) {
	photos := []*models.Photo{}
	err := r.db.View(func(tx *bolt.Tx) error {
		inspections := tx.Bucket(bucketInspections)
		return tx.Bucket(bucketPhotos).ForEach(func(_, data []byte) error {
			var photo models.Photo
			if err := json.Unmarshal(data, &photo); err != nil {
				return err
			}
			if photo.Sync.Synced {
				return nil
			}
			if parentSynced && photo.Sync.Exhausted(maxAttempts) {
				return nil
			}

			parentData := inspections.Get([]byte(photo.AssetInspectionID))
			if parentData == nil {
				return nil
			}
			var parent models.AssetInspection
			if err := json.Unmarshal(parentData, &parent); err != nil {
				return err
			}

			if _, ok := parent.Sync.ServerRef(); ok == parentSynced {
				photos = append(photos, &photo)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortPhotos(photos)
	return photos, nil
}

// CountPending returns the number of photos awaiting upload
func (r *BoltPhotoRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	photos, err := r.filter(func(p *models.Photo) bool {
		return !p.Sync.Synced && !p.Sync.Exhausted(maxAttempts)
	})
	return len(photos), err
}

// CountFailed returns the number of quarantined photos
func (r *BoltPhotoRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	photos, err := r.filter(func(p *models.Photo) bool {
		return !p.Sync.Synced && p.Sync.Exhausted(maxAttempts)
	})
	return len(photos), err
}

// Add inserts a new photo record
func (r *BoltPhotoRepository) Add(ctx context.Context, photo *models.Photo) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltPut(tx, bucketPhotos, photo.ID, photo)
	})
}

// Update persists the photo's caption and metadata and re-marks it as
// pending upload, keeping its server id
func (r *BoltPhotoRepository) Update(ctx context.Context, photo *models.Photo) error {
	return r.mutate(photo.ID, func(stored *models.Photo) {
		stored.Caption = photo.Caption
		stored.FileSize = photo.FileSize
		stored.TakenAt = photo.TakenAt
		stored.GPS = photo.GPS
		stored.Sync.MarkDirty()
		stored.Sync.SyncAttempts = 0
		stored.Sync.LastSyncError = nil
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSynced records a successful upload with the server-assigned id
func (r *BoltPhotoRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	return r.mutate(id, func(stored *models.Photo) {
		stored.Sync.MarkSynced(serverID)
		stored.UpdatedAt = time.Now().UTC()
	})
}

// MarkSyncFailed records one failed upload attempt
func (r *BoltPhotoRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	return r.mutate(id, func(stored *models.Photo) {
		stored.Sync.MarkFailed(message)
	})
}

// RequeueFailed resets the attempt counter on quarantined photos
func (r *BoltPhotoRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}

	requeued := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPhotos)
		return b.ForEach(func(_, data []byte) error {
			var photo models.Photo
			if err := json.Unmarshal(data, &photo); err != nil {
				return err
			}
			if photo.Sync.Synced || !photo.Sync.Exhausted(maxAttempts) {
				return nil
			}
			photo.Sync.SyncAttempts = 0
			requeued++
			return boltPut(tx, bucketPhotos, photo.ID, &photo)
		})
	})
	return requeued, err
}

// Delete removes a photo record by ID
func (r *BoltPhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	return boltDelete(r.db, bucketPhotos, id)
}

// DeleteByInspection removes all photos attached to an inspection
func (r *BoltPhotoRepository) DeleteByInspection(ctx context.Context, inspectionID string) (int, error) {
	return r.deleteWhere(func(p *models.Photo) bool { return p.AssetInspectionID == inspectionID })
}

// DeleteBySurvey removes all photos belonging to a survey
func (r *BoltPhotoRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int, error) {
	return r.deleteWhere(func(p *models.Photo) bool { return p.SurveyID == surveyID })
}

func (r *BoltPhotoRepository) deleteWhere(match func(*models.Photo) bool) (int, error) {
	deleted := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPhotos)
		var doomed [][]byte
		err := b.ForEach(func(key, data []byte) error {
			var photo models.Photo
			if err := json.Unmarshal(data, &photo); err != nil {
				return err
			}
			if match(&photo) {
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

func (r *BoltPhotoRepository) filter(keep func(*models.Photo) bool) ([]*models.Photo, error) {
	photos := []*models.Photo{}
	err := boltForEach(r.db, bucketPhotos, func(data []byte) error {
		var photo models.Photo
		if err := json.Unmarshal(data, &photo); err != nil {
			return err
		}
		if keep(&photo) {
			photos = append(photos, &photo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *BoltPhotoRepository) mutate(id string, fn func(*models.Photo)) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPhotos).Get([]byte(id))
		if data == nil {
			return nil
		}
		var photo models.Photo
		if err := json.Unmarshal(data, &photo); err != nil {
			return err
		}
		fn(&photo)
		return boltPut(tx, bucketPhotos, photo.ID, &photo)
	})
}
