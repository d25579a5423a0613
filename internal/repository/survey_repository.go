package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/surveysync/agent/internal/models"
)

// SurveyRepository handles survey persistence on SQLite
type SurveyRepository struct {
	db *sql.DB
}

// NewSurveyRepository creates a new SurveyRepository
func NewSurveyRepository(db *sql.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

const surveyColumns = `
	id, site_id, trade, status, surveyor_id, gps_lng, gps_lat,
	server_id, synced, sync_attempts, last_sync_error, created_at, updated_at
`

func scanSurvey(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Survey, error) {
	var survey models.Survey
	var lng, lat sql.NullFloat64
	var serverID, lastErr sql.NullString

	err := scanner.Scan(
		&survey.ID,
		&survey.SiteID,
		&survey.Trade,
		&survey.Status,
		&survey.SurveyorID,
		&lng,
		&lat,
		&serverID,
		&survey.Sync.Synced,
		&survey.Sync.SyncAttempts,
		&lastErr,
		&survey.CreatedAt,
		&survey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	survey.GPS = gpsPoint(lng, lat)
	survey.Sync.ServerID = strPtr(serverID)
	survey.Sync.LastSyncError = strPtr(lastErr)

	return &survey, nil
}

// GetByID retrieves a survey by its ID
func (r *SurveyRepository) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE id = ?`

	survey, err := scanSurvey(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return survey, nil
}

// GetAll retrieves all surveys, newest first
func (r *SurveyRepository) GetAll(ctx context.Context) ([]*models.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys ORDER BY created_at DESC`
	return r.querySurveys(ctx, query)
}

// GetBySite retrieves all surveys for a site
func (r *SurveyRepository) GetBySite(ctx context.Context, siteID string) ([]*models.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE site_id = ? ORDER BY created_at DESC`
	return r.querySurveys(ctx, query, siteID)
}

// GetPending retrieves surveys awaiting upload. Records that have used up
// their retry budget are excluded; they stay quarantined until re-queued.
func (r *SurveyRepository) GetPending(ctx context.Context, maxAttempts int) ([]*models.Survey, error) {
	query := `
		SELECT ` + surveyColumns + ` FROM surveys
		WHERE synced = 0 AND (? <= 0 OR sync_attempts < ?)
		ORDER BY created_at ASC
	`
	return r.querySurveys(ctx, query, maxAttempts, maxAttempts)
}

// CountPending returns the number of surveys awaiting upload
func (r *SurveyRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM surveys WHERE synced = 0 AND (? <= 0 OR sync_attempts < ?)`,
		maxAttempts, maxAttempts,
	).Scan(&count)
	return count, err
}

// CountFailed returns the number of surveys quarantined after repeated failures
func (r *SurveyRepository) CountFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM surveys WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	).Scan(&count)
	return count, err
}

// Add inserts a new survey
func (r *SurveyRepository) Add(ctx context.Context, survey *models.Survey) error {
	query := `
		INSERT INTO surveys (id, site_id, trade, status, surveyor_id, gps_lng, gps_lat,
			server_id, synced, sync_attempts, last_sync_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	lng, lat := gpsArgs(survey.GPS)
	_, err := r.db.ExecContext(ctx, query,
		survey.ID,
		survey.SiteID,
		survey.Trade,
		survey.Status,
		survey.SurveyorID,
		lng,
		lat,
		nullString(survey.Sync.ServerID),
		survey.Sync.Synced,
		survey.Sync.SyncAttempts,
		nullString(survey.Sync.LastSyncError),
		survey.CreatedAt,
		survey.UpdatedAt,
	)

	return err
}

// Update persists the survey's domain fields and re-marks it as pending
// upload. The server id column is deliberately untouched: the next sync
// cycle will perform an update call, not a duplicate create. The attempt
// counter resets because the edit may well be what fixes a rejected
// payload.
func (r *SurveyRepository) Update(ctx context.Context, survey *models.Survey) error {
	query := `
		UPDATE surveys
		SET trade = ?, status = ?, surveyor_id = ?, gps_lng = ?, gps_lat = ?,
			synced = 0, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`

	lng, lat := gpsArgs(survey.GPS)
	_, err := r.db.ExecContext(ctx, query,
		survey.Trade,
		survey.Status,
		survey.SurveyorID,
		lng,
		lat,
		time.Now().UTC(),
		survey.ID,
	)

	return err
}

// MarkSynced records a successful upload with the server-assigned id
func (r *SurveyRepository) MarkSynced(ctx context.Context, id, serverID string) error {
	query := `
		UPDATE surveys
		SET server_id = ?, synced = 1, sync_attempts = 0, last_sync_error = NULL, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, serverID, time.Now().UTC(), id)
	return err
}

// MarkSyncFailed records one failed upload attempt
func (r *SurveyRepository) MarkSyncFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE surveys
		SET sync_attempts = sync_attempts + 1, last_sync_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, message, id)
	return err
}

// RequeueFailed resets the attempt counter on quarantined surveys so the
// next cycle retries them
func (r *SurveyRepository) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE surveys SET sync_attempts = 0 WHERE synced = 0 AND sync_attempts >= ?`,
		maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// Delete removes a survey by ID. Callers that need the cascade must go
// through Store.DeleteSurveyCascade.
func (r *SurveyRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM surveys WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *SurveyRepository) querySurveys(ctx context.Context, query string, args ...interface{}) ([]*models.Survey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var surveys []*models.Survey
	for rows.Next() {
		survey, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, survey)
	}

	if surveys == nil {
		surveys = []*models.Survey{}
	}

	return surveys, rows.Err()
}
