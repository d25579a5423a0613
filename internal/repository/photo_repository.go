package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/surveysync/agent/internal/models"
)

// PhotoRepository handles photo record persistence on SQLite
type PhotoRepository struct {
	db *sql.DB
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

const photoColumns = `
	p.id, p.asset_inspection_id, p.survey_id, p.file_path, p.caption,
	p.file_size, p.taken_at, p.gps_lng, p.gps_lat,
	p.server_id, p.synced, p.sync_attempts, p.last_sync_error, p.created_at, p.updated_at
`

func scanPhoto(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Photo, error) {
	var photo models.Photo
	var takenAt sql.NullTime
	var lng, lat sql.NullFloat64
	var serverID, lastErr sql.NullString

	err := scanner.Scan(
		&photo.ID,
		&photo.AssetInspectionID,
		&photo.SurveyID,
		&photo.FilePath,
		&photo.Caption,
		&photo.FileSize,
		&takenAt,
		&lng,
		&lat,
		&serverID,
		&photo.Sync.Synced,
		&photo.Sync.SyncAttempts,
		&lastErr,
		&photo.CreatedAt,
		&photo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if takenAt.Valid {
		t := takenAt.Time
		photo.TakenAt = &t
	}
	photo.GPS = gpsPoint(lng, lat)
	photo.Sync.ServerID = strPtr(serverID)
	photo.Sync.LastSyncError = strPtr(lastErr)

	return &photo, nil
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos p WHERE p.id = ?`

	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return photo, nil
}

// GetByInspection retrieves all photos attached to an inspection
func (r *PhotoRepository) GetByInspection(ctx context.Context, inspectionID string) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos p WHERE p.asset_inspection_id = ? ORDER BY p.created_at ASC`
	return r.queryPhotos(ctx, query, inspectionID)
}

// GetPendingWithSyncedParent retrieves photos awaiting upload whose parent
// inspection already has a server id
func (r *PhotoRepository) GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos p
		JOIN asset_inspections i ON i.id = p.asset_inspection_id
		WHERE p.synced = 0 AND i.server_id IS NOT NULL
			AND (? <= 0 OR p.sync_attempts < ?)
		ORDER BY p.created_at ASC
	`
	return r.queryPhotos(ctx, query, maxAttempts, maxAttempts)
}

// GetPendingBlockedOnParent retrieves photos whose parent inspection has
// no server id yet
func (r *PhotoRepository) GetPendingBlockedOnParent(ctx context.Context) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos p
		JOIN asset_inspections i ON i.id = p.asset_inspection_id
		WHERE p.synced = 0 AND i.server_id IS NULL
		ORDER BY p.created_at ASC
	`
	return r.queryPhotos(ctx, query)
}

// CountPending returns the number of photos awaiting upload
func (r *PhotoRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE synced = 0 AND (? <= 0 OR sync_attempts < ?)`,
		maxAttempts, maxAttempts,
	).Scan(&count)
	return count, err
}

// CountFailed returns the number of quarantined photos
func (r *PhotoRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	).Scan(&count)
	return count, err
}

// Add inserts a new photo record
func (r *PhotoRepository) Add(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, asset_inspection_id, survey_id, file_path, caption,
			file_size, taken_at, gps_lng, gps_lat,
			server_id, synced, sync_attempts, last_sync_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var takenAt interface{}
	if photo.TakenAt != nil {
		takenAt = *photo.TakenAt
	}

	lng, lat := gpsArgs(photo.GPS)
	_, err := r.db.ExecContext(ctx, query,
		photo.ID,
		photo.AssetInspectionID,
		photo.SurveyID,
		photo.FilePath,
		photo.Caption,
		photo.FileSize,
		takenAt,
		lng,
		lat,
		nullString(photo.Sync.ServerID),
		photo.Sync.Synced,
		photo.Sync.SyncAttempts,
		nullString(photo.Sync.LastSyncError),
		photo.CreatedAt,
		photo.UpdatedAt,
	)

	return err
}

// Update persists the photo's caption and metadata and re-marks it as
// pending upload, keeping its server id
func (r *PhotoRepository) Update(ctx context.Context, photo *models.Photo) error {
	query := `
		UPDATE photos
		SET caption = ?, file_size = ?, taken_at = ?, gps_lng = ?, gps_lat = ?,
			synced = 0, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`

	var takenAt interface{}
	if photo.TakenAt != nil {
		takenAt = *photo.TakenAt
	}

	lng, lat := gpsArgs(photo.GPS)
	_, err := r.db.ExecContext(ctx, query,
		photo.Caption,
		photo.FileSize,
		takenAt,
		lng,
		lat,
		time.Now().UTC(),
		photo.ID,
	)

	return err
}

// MarkSynced records a successful upload with the server-assigned id
func (r *PhotoRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	query := `
		UPDATE photos
		SET server_id = ?, synced = 1, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, serverID, time.Now().UTC(), id)
	return err
}

// MarkSyncFailed records one failed upload attempt
func (r *PhotoRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE photos
		SET sync_attempts = sync_attempts + 1, last_sync_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, message, id)
	return err
}

// RequeueFailed resets the attempt counter on quarantined photos
func (r *PhotoRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE photos SET sync_attempts = 0 WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// Delete removes a photo record by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteByInspection removes all photos attached to an inspection
func (r *PhotoRepository) DeleteByInspection(ctx context.Context, inspectionID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE asset_inspection_id = ?", inspectionID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

// DeleteBySurvey removes all photos belonging to a survey
func (r *PhotoRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE survey_id = ?", surveyID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (r *PhotoRepository) queryPhotos(ctx context.Context, query string, args ...interface{}) ([]*models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	if photos == nil {
		photos = []*models.Photo{}
	}

	return photos, rows.Err()
}
