package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/surveysync/agent/internal/models"
)

// InspectionRepository handles asset inspection persistence on SQLite
type InspectionRepository struct {
	db *sql.DB
}

// NewInspectionRepository creates a new InspectionRepository
func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `
	i.id, i.survey_id, i.asset_id, i.condition_rating, i.overall_condition,
	i.quantity, i.remarks, i.gps_lng, i.gps_lat,
	i.server_id, i.synced, i.sync_attempts, i.last_sync_error, i.created_at, i.updated_at
`

func scanInspection(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.AssetInspection, error) {
	var insp models.AssetInspection
	var lng, lat sql.NullFloat64
	var serverID, lastErr sql.NullString

	err := scanner.Scan(
		&insp.ID,
		&insp.SurveyID,
		&insp.AssetID,
		&insp.ConditionRating,
		&insp.OverallCondition,
		&insp.Quantity,
		&insp.Remarks,
		&lng,
		&lat,
		&serverID,
		&insp.Sync.Synced,
		&insp.Sync.SyncAttempts,
		&lastErr,
		&insp.CreatedAt,
		&insp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	insp.GPS = gpsPoint(lng, lat)
	insp.Sync.ServerID = strPtr(serverID)
	insp.Sync.LastSyncError = strPtr(lastErr)

	return &insp, nil
}

// GetByID retrieves an inspection by its ID
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.AssetInspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM asset_inspections i WHERE i.id = ?`

	insp, err := scanInspection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return insp, nil
}

// GetBySurvey retrieves all inspections belonging to a survey
func (r *InspectionRepository) GetBySurvey(ctx context.Context, surveyID string) ([]*models.AssetInspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM asset_inspections i WHERE i.survey_id = ? ORDER BY i.created_at ASC`
	return r.queryInspections(ctx, query, surveyID)
}

// GetPendingWithSyncedParent retrieves inspections awaiting upload whose
// parent survey already has a server id. Only these may be handed to the
// uploader.
func (r *InspectionRepository) GetPendingWithSyncedParent(ctx context.Context, maxAttempts int) ([]*models.AssetInspection, error) {
	query := `
		SELECT ` + inspectionColumns + `
		FROM asset_inspections i
		JOIN surveys s ON s.id = i.survey_id
		WHERE i.synced = 0 AND s.server_id IS NOT NULL
			AND (? <= 0 OR i.sync_attempts < ?)
		ORDER BY i.created_at ASC
	`
	return r.queryInspections(ctx, query, maxAttempts, maxAttempts)
}

// GetPendingBlockedOnParent retrieves inspections that cannot upload yet
// because their survey has no server id. This is the expected steady
// state while offline, not an error.
func (r *InspectionRepository) GetPendingBlockedOnParent(ctx context.Context) ([]*models.AssetInspection, error) {
	query := `
		SELECT ` + inspectionColumns + `
		FROM asset_inspections i
		JOIN surveys s ON s.id = i.survey_id
		WHERE i.synced = 0 AND s.server_id IS NULL
		ORDER BY i.created_at ASC
	`
	return r.queryInspections(ctx, query)
}

// CountPending returns the number of inspections awaiting upload
func (r *InspectionRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM asset_inspections WHERE synced = 0 AND (? <= 0 OR sync_attempts < ?)`,
		maxAttempts, maxAttempts,
	).Scan(&count)
	return count, err
}

// CountFailed returns the number of quarantined inspections
func (r *InspectionRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM asset_inspections WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	).Scan(&count)
	return count, err
}

// Add inserts a new inspection
func (r *InspectionRepository) Add(ctx context.Context, insp *models.AssetInspection) error {
	query := `
		INSERT INTO asset_inspections (id, survey_id, asset_id, condition_rating,
			overall_condition, quantity, remarks, gps_lng, gps_lat,
			server_id, synced, sync_attempts, last_sync_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	lng, lat := gpsArgs(insp.GPS)
	_, err := r.db.ExecContext(ctx, query,
		insp.ID,
		insp.SurveyID,
		insp.AssetID,
		insp.ConditionRating,
		insp.OverallCondition,
		insp.Quantity,
		insp.Remarks,
		lng,
		lat,
		nullString(insp.Sync.ServerID),
		insp.Sync.Synced,
		insp.Sync.SyncAttempts,
		nullString(insp.Sync.LastSyncError),
		insp.CreatedAt,
		insp.UpdatedAt,
	)

	return err
}

// Update persists domain fields and re-marks the inspection as pending
// upload, keeping its server id
func (r *InspectionRepository) Update(ctx context.Context, insp *models.AssetInspection) error {
	query := `
		UPDATE asset_inspections
		SET condition_rating = ?, overall_condition = ?, quantity = ?, remarks = ?,
			gps_lng = ?, gps_lat = ?,
			synced = 0, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`

	lng, lat := gpsArgs(insp.GPS)
	_, err := r.db.ExecContext(ctx, query,
		insp.ConditionRating,
		insp.OverallCondition,
		insp.Quantity,
		insp.Remarks,
		lng,
		lat,
		time.Now().UTC(),
		insp.ID,
	)

	return err
}

// MarkSynced records a successful upload with the server-assigned id
func (r *InspectionRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	query := `
		UPDATE asset_inspections
		SET server_id = ?, synced = 1, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, serverID, time.Now().UTC(), id)
	return err
}

// MarkSyncFailed records one failed upload attempt
func (r *InspectionRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE asset_inspections
		SET sync_attempts = sync_attempts + 1, last_sync_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, message, id)
	return err
}

// RequeueFailed resets the attempt counter on quarantined inspections
func (r *InspectionRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE asset_inspections SET sync_attempts = 0 WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// Delete removes an inspection by ID
func (r *InspectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM asset_inspections WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteBySurvey removes all inspections belonging to a survey
func (r *InspectionRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM asset_inspections WHERE survey_id = ?", surveyID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (r *InspectionRepository) queryInspections(ctx context.Context, query string, args ...interface{}) ([]*models.AssetInspection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inspections []*models.AssetInspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		inspections = append(inspections, insp)
	}

	if inspections == nil {
		inspections = []*models.AssetInspection{}
	}

	return inspections, rows.Err()
}
