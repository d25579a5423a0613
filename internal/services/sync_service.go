package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/surveysync/agent/internal/gateway"
	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/observability"
	"github.com/surveysync/agent/internal/repository"
)

// SyncService reconciles locally created records with the remote backend.
// A cycle walks pending work in dependency order: surveys first, then
// inspections whose survey has a server id, then photos whose inspection
// has one. Children blocked on an unsynced parent are not an error; they
// simply wait for a later cycle (or later phase of the same cycle).
type SyncService struct {
	store       *repository.Store
	gw          gateway.Gateway
	conn        *ConnectivityService
	hub         *StatusHub
	maxAttempts int
	metrics     *observability.SyncMetrics

	mu       sync.Mutex
	syncing  bool
	lastSync *time.Time
}

// NewSyncService creates a new SyncService. maxAttempts <= 0 disables
// quarantine and retries failing records forever.
func NewSyncService(store *repository.Store, gw gateway.Gateway, conn *ConnectivityService, hub *StatusHub, maxAttempts int) *SyncService {
	metrics, err := observability.NewSyncMetrics()
	if err != nil {
		observability.Warnf("Sync metrics unavailable: %v", err)
	}

	return &SyncService{
		store:       store,
		gw:          gw,
		conn:        conn,
		hub:         hub,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// Start registers the connectivity trigger: every offline-to-online
// transition kicks a cycle
func (s *SyncService) Start() {
	s.conn.OnChange(func(online bool) {
		if online {
			s.RunNow()
			return
		}
		s.publishStatus(context.Background())
	})
}

// RunNow triggers a cycle in the background
func (s *SyncService) RunNow() {
	go func() {
		if err := s.Run(context.Background()); err != nil {
			observability.Errorf("Sync cycle failed: %v", err)
		}
	}()
}

// IsSyncing reports whether a cycle is in progress
func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Status computes the current engine status from live store counts
func (s *SyncService) Status(ctx context.Context) SyncStatus {
	pending, err := s.store.PendingUploads(ctx, s.maxAttempts)
	if err != nil {
		observability.Errorf("Counting pending uploads: %v", err)
	}
	failed, err := s.store.FailedUploads(ctx, s.maxAttempts)
	if err != nil {
		observability.Errorf("Counting failed uploads: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		IsOnline:       s.conn.IsOnline(),
		IsSyncing:      s.syncing,
		PendingUploads: pending,
		FailedUploads:  failed,
		LastSync:       s.lastSync,
	}
}

// Requeue returns quarantined records to the upload queue
func (s *SyncService) Requeue(ctx context.Context) (int, error) {
	n, err := s.store.RequeueFailed(ctx, s.maxAttempts)
	if err != nil {
		return n, err
	}
	if n > 0 {
		observability.Infof("Requeued %d quarantined records", n)
		s.publishStatus(ctx)
	}
	return n, nil
}

// Run executes one reconciliation cycle. It is single-flight: a call
// while another cycle runs returns immediately without touching the
// gateway. Offline is rechecked between items so losing connectivity
// interrupts the cycle between uploads, never mid-record.
func (s *SyncService) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		observability.Info("Sync cycle already running, skipping")
		return nil
	}
	if !s.conn.IsOnline() {
		s.mu.Unlock()
		observability.Debug("Sync requested while offline, skipping")
		return nil
	}
	s.syncing = true
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "sync", "run")
	defer span.End()

	start := time.Now()
	s.publishStatus(ctx)

	result, err := s.runPhases(ctx)

	s.mu.Lock()
	s.syncing = false
	if err == nil && !result.interrupted {
		now := time.Now().UTC()
		s.lastSync = &now
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCycle(ctx, float64(time.Since(start).Milliseconds()), result.interrupted || err != nil)
	}
	span.SetAttributes(
		attribute.Int("sync.surveys_uploaded", result.surveys),
		attribute.Int("sync.inspections_uploaded", result.inspections),
		attribute.Int("sync.photos_uploaded", result.photos),
		attribute.Bool("sync.interrupted", result.interrupted),
	)

	s.publishStatus(ctx)

	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	observability.WithFields(map[string]interface{}{
		"surveys":     result.surveys,
		"inspections": result.inspections,
		"photos":      result.photos,
		"interrupted": result.interrupted,
		"duration":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("Sync cycle finished")
	observability.SetSuccess(span)
	return nil
}

type cycleResult struct {
	surveys     int
	inspections int
	photos      int
	interrupted bool
}

func (s *SyncService) runPhases(ctx context.Context) (cycleResult, error) {
	var result cycleResult

	n, interrupted, err := s.syncSurveys(ctx)
	result.surveys = n
	if err != nil || interrupted {
		result.interrupted = true
		return result, err
	}

	// Pending inspections are re-scanned here so children of surveys
	// uploaded moments ago in this same cycle are already eligible
	n, interrupted, err = s.syncInspections(ctx)
	result.inspections = n
	if err != nil || interrupted {
		result.interrupted = true
		return result, err
	}

	n, interrupted, err = s.syncPhotos(ctx)
	result.photos = n
	result.interrupted = interrupted
	return result, err
}

func (s *SyncService) syncSurveys(ctx context.Context) (uploaded int, interrupted bool, err error) {
	surveys, err := s.store.Surveys.GetPending(ctx, s.maxAttempts)
	if err != nil {
		return 0, false, err
	}

	for _, survey := range surveys {
		if !s.conn.IsOnline() {
			return uploaded, true, nil
		}
		if err := s.uploadSurvey(ctx, survey); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return uploaded, true, err
			}
			continue
		}
		uploaded++
	}
	return uploaded, false, nil
}

func (s *SyncService) uploadSurvey(ctx context.Context, survey *models.Survey) error {
	var serverID string
	var err error

	if existing, ok := survey.Sync.ServerRef(); ok {
		serverID = existing
		err = s.gw.UpdateSurvey(ctx, serverID, survey)
	} else {
		serverID, err = s.gw.CreateSurvey(ctx, survey)
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(ctx, "survey", err)
	}
	if err != nil {
		return s.recordFailure(ctx, "survey", survey.ID, s.store.Surveys.MarkSyncFailed, err)
	}
	return s.store.Surveys.MarkSynced(ctx, survey.ID, serverID)
}

func (s *SyncService) syncInspections(ctx context.Context) (uploaded int, interrupted bool, err error) {
	inspections, err := s.store.Inspections.GetPendingWithSyncedParent(ctx, s.maxAttempts)
	if err != nil {
		return 0, false, err
	}

	for _, insp := range inspections {
		if !s.conn.IsOnline() {
			return uploaded, true, nil
		}
		if err := s.uploadInspection(ctx, insp); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return uploaded, true, err
			}
			continue
		}
		uploaded++
	}
	return uploaded, false, nil
}

func (s *SyncService) uploadInspection(ctx context.Context, insp *models.AssetInspection) error {
	parent, err := s.store.Surveys.GetByID(ctx, insp.SurveyID)
	if err != nil {
		return err
	}
	if parent == nil {
		return s.recordFailure(ctx, "inspection", insp.ID, s.store.Inspections.MarkSyncFailed,
			errors.New("parent survey missing"))
	}
	parentServerID, ok := parent.Sync.ServerRef()
	if !ok {
		// Parent lost its eligibility between scan and upload; wait
		return nil
	}

	var serverID string
	if existing, ok := insp.Sync.ServerRef(); ok {
		serverID = existing
		err = s.gw.UpdateInspection(ctx, serverID, insp)
	} else {
		serverID, err = s.gw.CreateInspection(ctx, parentServerID, insp)
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(ctx, "inspection", err)
	}
	if err != nil {
		return s.recordFailure(ctx, "inspection", insp.ID, s.store.Inspections.MarkSyncFailed, err)
	}
	return s.store.Inspections.MarkSynced(ctx, insp.ID, serverID)
}

func (s *SyncService) syncPhotos(ctx context.Context) (uploaded int, interrupted bool, err error) {
	photos, err := s.store.Photos.GetPendingWithSyncedParent(ctx, s.maxAttempts)
	if err != nil {
		return 0, false, err
	}

	for _, photo := range photos {
		if !s.conn.IsOnline() {
			return uploaded, true, nil
		}
		if err := s.uploadPhoto(ctx, photo); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return uploaded, true, err
			}
			continue
		}
		uploaded++
	}
	return uploaded, false, nil
}

func (s *SyncService) uploadPhoto(ctx context.Context, photo *models.Photo) error {
	// The remote has no photo update endpoint: a photo edited after a
	// successful upload keeps its remote copy as-is, so just settle the
	// local flag
	if serverID, ok := photo.Sync.ServerRef(); ok {
		return s.store.Photos.MarkSynced(ctx, photo.ID, serverID)
	}

	parent, err := s.store.Inspections.GetByID(ctx, photo.AssetInspectionID)
	if err != nil {
		return err
	}
	if parent == nil {
		return s.recordFailure(ctx, "photo", photo.ID, s.store.Photos.MarkSyncFailed,
			errors.New("parent inspection missing"))
	}
	inspServerID, ok := parent.Sync.ServerRef()
	if !ok {
		return nil
	}

	survey, err := s.store.Surveys.GetByID(ctx, photo.SurveyID)
	if err != nil {
		return err
	}
	surveyServerID := ""
	if survey != nil {
		surveyServerID, _ = survey.Sync.ServerRef()
	}

	serverID, err := s.gw.UploadPhoto(ctx, inspServerID, surveyServerID, photo)
	if s.metrics != nil {
		s.metrics.RecordUpload(ctx, "photo", err)
	}
	if err != nil {
		return s.recordFailure(ctx, "photo", photo.ID, s.store.Photos.MarkSyncFailed, err)
	}
	return s.store.Photos.MarkSynced(ctx, photo.ID, serverID)
}

// recordFailure logs one per-entity upload failure and bumps its attempt
// counter. Credential rejections propagate instead so the cycle aborts.
func (s *SyncService) recordFailure(ctx context.Context, kind, id string, markFailed func(context.Context, string, string) error, uploadErr error) error {
	if errors.Is(uploadErr, gateway.ErrUnauthorized) {
		return uploadErr
	}

	observability.WithFields(map[string]interface{}{
		"kind": kind,
		"id":   id,
	}).Warnf("Upload failed, will retry: %v", uploadErr)

	if err := markFailed(ctx, id, uploadErr.Error()); err != nil {
		observability.Errorf("Recording upload failure for %s %s: %v", kind, id, err)
	}
	return uploadErr
}

func (s *SyncService) publishStatus(ctx context.Context) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(s.Status(ctx))
}
