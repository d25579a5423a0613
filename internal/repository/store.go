package repository

import (
	"context"
	"database/sql"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/surveysync/agent/internal/observability"
)

// Backend identifies which persistence engine backs the store
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
)

// Store bundles the per-entity repositories over one backend. All
// handlers and services go through the Store so the backend choice is
// invisible above this package.
type Store struct {
	Sites       SiteRepo
	Surveys     SurveyRepo
	Inspections InspectionRepo
	Photos      PhotoRepo

	backend Backend
	close   func() error
}

// NewSQLiteStore builds a store over an open SQLite database
func NewSQLiteStore(db *sql.DB) *Store {
	return &Store{
		Sites:       NewSiteRepository(db),
		Surveys:     NewSurveyRepository(db),
		Inspections: NewInspectionRepository(db),
		Photos:      NewPhotoRepository(db),
		backend:     BackendSQLite,
		close:       db.Close,
	}
}

// NewBoltStore builds a store over an open bbolt database
func NewBoltStore(db *bolt.DB) *Store {
	return &Store{
		Sites:       NewBoltSiteRepository(db),
		Surveys:     NewBoltSurveyRepository(db),
		Inspections: NewBoltInspectionRepository(db),
		Photos:      NewBoltPhotoRepository(db),
		backend:     BackendBolt,
		close:       db.Close,
	}
}

// Open initializes the preferred SQLite backend, degrading to the
// key-value backend when SQLite cannot start on this platform. backend
// may force one engine ("sqlite" or "bolt"); anything else tries SQLite
// first.
func Open(backend, sqlitePath, boltPath string) (*Store, error) {
	switch Backend(backend) {
	case BackendSQLite:
		db, err := NewSQLiteDB(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return NewSQLiteStore(db), nil
	case BackendBolt:
		db, err := NewBoltDB(boltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return NewBoltStore(db), nil
	}

	db, err := NewSQLiteDB(sqlitePath)
	if err == nil {
		return NewSQLiteStore(db), nil
	}
	observability.Warnf("SQLite unavailable, falling back to key-value store: %v", err)

	bdb, berr := NewBoltDB(boltPath)
	if berr != nil {
		return nil, fmt.Errorf("open bolt store after sqlite failure (%v): %w", err, berr)
	}
	return NewBoltStore(bdb), nil
}

// Backend reports which engine the store runs on
func (s *Store) Backend() Backend {
	return s.backend
}

// Close releases the underlying database
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// DeleteSurveyCascade removes a survey with its inspections and photo
// records, children first so both backends behave identically
func (s *Store) DeleteSurveyCascade(ctx context.Context, surveyID string) (bool, error) {
	if _, err := s.Photos.DeleteBySurvey(ctx, surveyID); err != nil {
		return false, err
	}
	if _, err := s.Inspections.DeleteBySurvey(ctx, surveyID); err != nil {
		return false, err
	}
	return s.Surveys.Delete(ctx, surveyID)
}

// DeleteInspectionCascade removes an inspection together with its photo
// records
func (s *Store) DeleteInspectionCascade(ctx context.Context, inspectionID string) (bool, error) {
	if _, err := s.Photos.DeleteByInspection(ctx, inspectionID); err != nil {
		return false, err
	}
	return s.Inspections.Delete(ctx, inspectionID)
}

// PendingUploads counts records still awaiting upload across all entity
// kinds
func (s *Store) PendingUploads(ctx context.Context, maxAttempts int) (int, error) {
	total := 0
	for _, count := range []func(context.Context, int) (int, error){
		s.Surveys.CountPending,
		s.Inspections.CountPending,
		s.Photos.CountPending,
	} {
		n, err := count(ctx, maxAttempts)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// FailedUploads counts quarantined records across all entity kinds
func (s *Store) FailedUploads(ctx context.Context, maxAttempts int) (int, error) {
	total := 0
	for _, count := range []func(context.Context, int) (int, error){
		s.Surveys.CountFailed,
		s.Inspections.CountFailed,
		s.Photos.CountFailed,
	} {
		n, err := count(ctx, maxAttempts)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// RequeueFailed returns quarantined records to the upload queue across
// all entity kinds
func (s *Store) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	total := 0
	for _, requeue := range []func(context.Context, int) (int, error){
		s.Surveys.RequeueFailed,
		s.Inspections.RequeueFailed,
		s.Photos.RequeueFailed,
	} {
		n, err := requeue(ctx, maxAttempts)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
