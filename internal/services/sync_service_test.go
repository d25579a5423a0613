package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveysync/agent/internal/gateway"
	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/repository"
)

// stubGateway fakes the remote backend. Hooks override per-call
// behavior; every call is recorded by local entity id.
type stubGateway struct {
	mu sync.Mutex

	createSurvey     func(survey *models.Survey) (string, error)
	createInspection func(insp *models.AssetInspection) (string, error)
	uploadPhoto      func(photo *models.Photo) (string, error)

	surveyCalls     []string
	inspectionCalls []string
	photoCalls      []string
}

func newStubGateway() *stubGateway {
	serial := 0
	next := func(prefix string) string {
		serial++
		return fmt.Sprintf("%s-%d", prefix, serial)
	}
	return &stubGateway{
		createSurvey:     func(*models.Survey) (string, error) { return next("srv"), nil },
		createInspection: func(*models.AssetInspection) (string, error) { return next("insp"), nil },
		uploadPhoto:      func(*models.Photo) (string, error) { return next("photo"), nil },
	}
}

func (g *stubGateway) CreateSurvey(ctx context.Context, survey *models.Survey) (string, error) {
	g.mu.Lock()
	g.surveyCalls = append(g.surveyCalls, survey.ID)
	fn := g.createSurvey
	g.mu.Unlock()
	return fn(survey)
}

func (g *stubGateway) UpdateSurvey(ctx context.Context, serverID string, survey *models.Survey) error {
	g.mu.Lock()
	g.surveyCalls = append(g.surveyCalls, survey.ID)
	g.mu.Unlock()
	return nil
}

func (g *stubGateway) CreateInspection(ctx context.Context, surveyServerID string, insp *models.AssetInspection) (string, error) {
	g.mu.Lock()
	g.inspectionCalls = append(g.inspectionCalls, insp.ID)
	fn := g.createInspection
	g.mu.Unlock()
	return fn(insp)
}

func (g *stubGateway) UpdateInspection(ctx context.Context, serverID string, insp *models.AssetInspection) error {
	g.mu.Lock()
	g.inspectionCalls = append(g.inspectionCalls, insp.ID)
	g.mu.Unlock()
	return nil
}

func (g *stubGateway) UploadPhoto(ctx context.Context, inspectionServerID, surveyServerID string, photo *models.Photo) (string, error) {
	g.mu.Lock()
	g.photoCalls = append(g.photoCalls, photo.ID)
	fn := g.uploadPhoto
	g.mu.Unlock()
	return fn(photo)
}

func (g *stubGateway) Ping(ctx context.Context) error {
	return nil
}

func (g *stubGateway) callCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, calls := range [][]string{g.surveyCalls, g.inspectionCalls, g.photoCalls} {
		for _, call := range calls {
			if call == id {
				count++
			}
		}
	}
	return count
}

type syncFixture struct {
	store *repository.Store
	gw    *stubGateway
	conn  *ConnectivityService
	hub   *StatusHub
	sync  *SyncService
	site  *models.Site
}

func newSyncFixture(t *testing.T, maxAttempts int) *syncFixture {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := repository.NewSQLiteStore(db)
	t.Cleanup(func() { store.Close() })

	gw := newStubGateway()
	conn := NewConnectivityService(ProberFunc(func(context.Context) bool { return true }), time.Hour)
	hub := NewStatusHub()

	site, err := models.NewSite("Acme Plant", "Leeds", "Acme Ltd")
	require.NoError(t, err)
	require.NoError(t, store.Sites.Add(context.Background(), site))

	return &syncFixture{
		store: store,
		gw:    gw,
		conn:  conn,
		hub:   hub,
		sync:  NewSyncService(store, gw, conn, hub, maxAttempts),
		site:  site,
	}
}

func (f *syncFixture) addSurvey(t *testing.T, trade string) *models.Survey {
	t.Helper()
	survey, err := models.NewSurvey(f.site.ID, trade, "surveyor-1", nil)
	require.NoError(t, err)
	require.NoError(t, f.store.Surveys.Add(context.Background(), survey))
	return survey
}

func (f *syncFixture) addInspection(t *testing.T, surveyID string) *models.AssetInspection {
	t.Helper()
	insp, err := models.NewAssetInspection(surveyID, "AHU-01", 3, "fair", 1, "", nil)
	require.NoError(t, err)
	require.NoError(t, f.store.Inspections.Add(context.Background(), insp))
	return insp
}

func (f *syncFixture) addPhoto(t *testing.T, inspectionID, surveyID string) *models.Photo {
	t.Helper()
	photo, err := models.NewPhoto(inspectionID, surveyID, "/photos/p.jpg", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Photos.Add(context.Background(), photo))
	return photo
}

func TestSyncServiceLocalFirst(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(false)

	survey := f.addSurvey(t, "HVAC")

	// Saved and retrievable while fully offline
	got, err := f.store.Surveys.GetByID(ctx, survey.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	status := f.sync.Status(ctx)
	assert.Equal(t, 1, status.PendingUploads)
	assert.False(t, status.IsOnline)

	// A cycle while offline must not touch the gateway
	require.NoError(t, f.sync.Run(ctx))
	assert.Zero(t, f.gw.callCount(survey.ID))
}

func TestSyncServiceConcreteScenario(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()

	f.conn.SetOnline(false)
	s1 := f.addSurvey(t, "HVAC")
	assert.Equal(t, 1, f.sync.Status(ctx).PendingUploads)

	f.conn.SetOnline(true)
	f.gw.createSurvey = func(*models.Survey) (string, error) { return "srv-1", nil }
	require.NoError(t, f.sync.Run(ctx))

	got, err := f.store.Surveys.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	serverID, ok := got.Sync.ServerRef()
	require.True(t, ok)
	assert.Equal(t, "srv-1", serverID)
	assert.True(t, got.Sync.Synced)

	status := f.sync.Status(ctx)
	assert.Equal(t, 0, status.PendingUploads)
	require.NotNil(t, status.LastSync)
	assert.WithinDuration(t, time.Now().UTC(), *status.LastSync, 5*time.Second)
}

func TestSyncServiceNoPrematureChildUpload(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")
	insp := f.addInspection(t, survey.ID)

	// Survey creation fails, so its inspection must stay untouched
	f.gw.createSurvey = func(*models.Survey) (string, error) {
		return "", fmt.Errorf("remote 500")
	}
	require.NoError(t, f.sync.Run(ctx))

	got, err := f.store.Inspections.GetByID(ctx, insp.ID)
	require.NoError(t, err)
	assert.False(t, got.Sync.Synced)
	assert.Zero(t, f.gw.callCount(insp.ID))
}

func TestSyncServiceSameCycleCascade(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")
	insp := f.addInspection(t, survey.ID)
	photo := f.addPhoto(t, insp.ID, survey.ID)

	require.NoError(t, f.sync.Run(ctx))

	// One cycle carries the whole dependency chain
	gotSurvey, err := f.store.Surveys.GetByID(ctx, survey.ID)
	require.NoError(t, err)
	assert.True(t, gotSurvey.Sync.Synced)

	gotInsp, err := f.store.Inspections.GetByID(ctx, insp.ID)
	require.NoError(t, err)
	assert.True(t, gotInsp.Sync.Synced)
	_, ok := gotInsp.Sync.ServerRef()
	assert.True(t, ok)

	gotPhoto, err := f.store.Photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, gotPhoto.Sync.Synced)

	assert.Equal(t, 0, f.sync.Status(ctx).PendingUploads)
}

func TestSyncServiceReentrancyGuard(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	f.gw.createSurvey = func(*models.Survey) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "srv-1", nil
	}

	done := make(chan error, 1)
	go func() { done <- f.sync.Run(ctx) }()
	<-started

	// Second trigger while the first cycle is mid-upload must no-op
	require.NoError(t, f.sync.Run(ctx))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.gw.callCount(survey.ID))
}

func TestSyncServicePartialFailureIsolation(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	first := f.addSurvey(t, "HVAC")
	time.Sleep(2 * time.Millisecond)
	second := f.addSurvey(t, "Electrical")
	time.Sleep(2 * time.Millisecond)
	third := f.addSurvey(t, "Plumbing")

	f.gw.createSurvey = func(survey *models.Survey) (string, error) {
		if survey.ID == second.ID {
			return "", fmt.Errorf("remote rejected payload")
		}
		return "srv-" + survey.ID[:8], nil
	}

	require.NoError(t, f.sync.Run(ctx))

	for _, id := range []string{first.ID, third.ID} {
		got, err := f.store.Surveys.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Sync.Synced, "survey %s should have synced", id)
	}

	got, err := f.store.Surveys.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.Sync.Synced)
	assert.Equal(t, 1, got.Sync.SyncAttempts)

	// Next cycle retries only the failed one
	f.gw.createSurvey = func(*models.Survey) (string, error) { return "srv-2", nil }
	require.NoError(t, f.sync.Run(ctx))

	got, err = f.store.Surveys.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, got.Sync.Synced)
	assert.Equal(t, 2, f.gw.callCount(second.ID))
	assert.Equal(t, 1, f.gw.callCount(first.ID))
}

func TestSyncServiceOfflineInterruptsBetweenItems(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	first := f.addSurvey(t, "HVAC")
	time.Sleep(2 * time.Millisecond)
	second := f.addSurvey(t, "Electrical")

	// Connectivity drops right after the first upload completes
	f.gw.createSurvey = func(*models.Survey) (string, error) {
		f.conn.SetOnline(false)
		return "srv-1", nil
	}

	require.NoError(t, f.sync.Run(ctx))

	gotFirst, err := f.store.Surveys.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, gotFirst.Sync.Synced)

	gotSecond, err := f.store.Surveys.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, gotSecond.Sync.Synced)
	assert.Zero(t, gotSecond.Sync.SyncAttempts, "an interrupted item is not a failed item")

	// An interrupted cycle does not count as a completed sync
	assert.Nil(t, f.sync.Status(ctx).LastSync)
}

func TestSyncServiceUnauthorizedAbortsCycle(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	first := f.addSurvey(t, "HVAC")
	time.Sleep(2 * time.Millisecond)
	second := f.addSurvey(t, "Electrical")

	f.gw.createSurvey = func(survey *models.Survey) (string, error) {
		if survey.ID == first.ID {
			return "", gateway.ErrUnauthorized
		}
		return "srv-x", nil
	}

	err := f.sync.Run(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	// Nothing after the rejection was attempted
	assert.Zero(t, f.gw.callCount(second.ID))

	// Credential failure does not burn the record's retry budget
	got, err := f.store.Surveys.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Sync.SyncAttempts)
}

func TestSyncServiceEditAfterSyncUploadsUpdate(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")
	require.NoError(t, f.sync.Run(ctx))

	// Local edit re-queues the survey
	survey.Status = models.SurveyStatusSubmitted
	require.NoError(t, f.store.Surveys.Update(ctx, survey))
	assert.Equal(t, 1, f.sync.Status(ctx).PendingUploads)

	require.NoError(t, f.sync.Run(ctx))

	got, err := f.store.Surveys.GetByID(ctx, survey.ID)
	require.NoError(t, err)
	assert.True(t, got.Sync.Synced)
	// Two gateway calls total: one create, one update; same server id
	assert.Equal(t, 2, f.gw.callCount(survey.ID))
	serverID, ok := got.Sync.ServerRef()
	require.True(t, ok)
	assert.Equal(t, "srv-1", serverID)
}

func TestSyncServicePhotoEditAfterUploadStaysLocal(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")
	insp := f.addInspection(t, survey.ID)
	photo := f.addPhoto(t, insp.ID, survey.ID)
	require.NoError(t, f.sync.Run(ctx))
	assert.Equal(t, 1, f.gw.callCount(photo.ID))

	// Caption edit re-queues the photo, but the remote has no photo
	// update endpoint; the next cycle settles it without a network call
	photo.Caption = "corrosion on casing"
	require.NoError(t, f.store.Photos.Update(ctx, photo))
	require.NoError(t, f.sync.Run(ctx))

	got, err := f.store.Photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, got.Sync.Synced)
	assert.Equal(t, 1, f.gw.callCount(photo.ID))
}

func TestSyncServiceQuarantine(t *testing.T) {
	f := newSyncFixture(t, 2)
	ctx := context.Background()
	f.conn.SetOnline(true)

	survey := f.addSurvey(t, "HVAC")
	f.gw.createSurvey = func(*models.Survey) (string, error) {
		return "", fmt.Errorf("permanent validation error")
	}

	// Two failing cycles exhaust the budget
	require.NoError(t, f.sync.Run(ctx))
	require.NoError(t, f.sync.Run(ctx))
	assert.Equal(t, 2, f.gw.callCount(survey.ID))

	// Quarantined: later cycles skip it
	require.NoError(t, f.sync.Run(ctx))
	assert.Equal(t, 2, f.gw.callCount(survey.ID))

	status := f.sync.Status(ctx)
	assert.Equal(t, 0, status.PendingUploads)
	assert.Equal(t, 1, status.FailedUploads)

	// Manual requeue puts it back in play
	n, err := f.sync.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.gw.createSurvey = func(*models.Survey) (string, error) { return "srv-1", nil }
	require.NoError(t, f.sync.Run(ctx))

	got, err := f.store.Surveys.GetByID(ctx, survey.ID)
	require.NoError(t, err)
	assert.True(t, got.Sync.Synced)
}

func TestSyncServicePublishesStatus(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.conn.SetOnline(true)
	f.addSurvey(t, "HVAC")

	updates, cancel := f.hub.Subscribe()
	defer cancel()
	<-updates // replay of initial state

	require.NoError(t, f.sync.Run(ctx))

	// Last published status reflects the completed cycle
	final := f.hub.Last()
	assert.False(t, final.IsSyncing)
	assert.Equal(t, 0, final.PendingUploads)
	require.NotNil(t, final.LastSync)
}
