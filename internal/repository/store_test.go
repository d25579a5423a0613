package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveysync/agent/internal/models"
)

func newSQLiteTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := NewSQLiteStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func newBoltTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	store := NewBoltStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSite(t *testing.T, store *Store) *models.Site {
	t.Helper()
	site, err := models.NewSite("Acme Plant", "Leeds", "Acme Ltd")
	require.NoError(t, err)
	require.NoError(t, store.Sites.Add(context.Background(), site))
	return site
}

func seedSurvey(t *testing.T, store *Store, siteID string) *models.Survey {
	t.Helper()
	survey, err := models.NewSurvey(siteID, "HVAC", "surveyor-1", nil)
	require.NoError(t, err)
	require.NoError(t, store.Surveys.Add(context.Background(), survey))
	return survey
}

func seedInspection(t *testing.T, store *Store, surveyID string) *models.AssetInspection {
	t.Helper()
	insp, err := models.NewAssetInspection(surveyID, "AHU-01", 3, "fair", 1, "worn belts", nil)
	require.NoError(t, err)
	require.NoError(t, store.Inspections.Add(context.Background(), insp))
	return insp
}

func seedPhoto(t *testing.T, store *Store, inspectionID, surveyID string) *models.Photo {
	t.Helper()
	photo, err := models.NewPhoto(inspectionID, surveyID, "/photos/p.jpg", "front panel")
	require.NoError(t, err)
	require.NoError(t, store.Photos.Add(context.Background(), photo))
	return photo
}

// Both backends must behave identically through the Store interface, so
// the whole suite runs against each.
func TestStoreBackends(t *testing.T) {
	backends := map[string]func(*testing.T) *Store{
		"sqlite": newSQLiteTestStore,
		"bolt":   newBoltTestStore,
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("survey round trip", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)

				got, err := store.Surveys.GetByID(ctx, survey.ID)
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, survey.ID, got.ID)
				assert.Equal(t, site.ID, got.SiteID)
				assert.False(t, got.Sync.Synced)
			})

			t.Run("get by id returns nil for unknown", func(t *testing.T) {
				store := newStore(t)

				got, err := store.Surveys.GetByID(context.Background(), "nope")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("pending surveys oldest first", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)

				first, err := models.NewSurvey(site.ID, "HVAC", "surveyor-1", nil)
				require.NoError(t, err)
				first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
				require.NoError(t, store.Surveys.Add(ctx, first))

				second, err := models.NewSurvey(site.ID, "Electrical", "surveyor-1", nil)
				require.NoError(t, err)
				second.CreatedAt = time.Now().UTC().Add(-time.Hour)
				require.NoError(t, store.Surveys.Add(ctx, second))

				pending, err := store.Surveys.GetPending(ctx, 0)
				require.NoError(t, err)
				require.Len(t, pending, 2)
				assert.Equal(t, first.ID, pending[0].ID)
				assert.Equal(t, second.ID, pending[1].ID)
			})

			t.Run("mark synced assigns server id once", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)

				require.NoError(t, store.Surveys.MarkSynced(ctx, survey.ID, "srv-1"))

				got, err := store.Surveys.GetByID(ctx, survey.ID)
				require.NoError(t, err)
				assert.True(t, got.Sync.Synced)
				serverID, ok := got.Sync.ServerRef()
				require.True(t, ok)
				assert.Equal(t, "srv-1", serverID)

				pending, err := store.Surveys.GetPending(ctx, 0)
				require.NoError(t, err)
				assert.Empty(t, pending)
			})

			t.Run("edit after sync requeues but keeps server id", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)
				require.NoError(t, store.Surveys.MarkSynced(ctx, survey.ID, "srv-1"))

				survey.Status = models.SurveyStatusSubmitted
				require.NoError(t, store.Surveys.Update(ctx, survey))

				got, err := store.Surveys.GetByID(ctx, survey.ID)
				require.NoError(t, err)
				assert.Equal(t, models.SurveyStatusSubmitted, got.Status)
				assert.False(t, got.Sync.Synced)
				serverID, ok := got.Sync.ServerRef()
				require.True(t, ok)
				assert.Equal(t, "srv-1", serverID)
			})

			t.Run("failed uploads quarantine and requeue", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)

				require.NoError(t, store.Surveys.MarkSyncFailed(ctx, survey.ID, "remote 500"))
				require.NoError(t, store.Surveys.MarkSyncFailed(ctx, survey.ID, "remote 500"))

				got, err := store.Surveys.GetByID(ctx, survey.ID)
				require.NoError(t, err)
				assert.Equal(t, 2, got.Sync.SyncAttempts)
				require.NotNil(t, got.Sync.LastSyncError)

				// Budget of 2 puts it in quarantine
				pending, err := store.Surveys.GetPending(ctx, 2)
				require.NoError(t, err)
				assert.Empty(t, pending)
				failed, err := store.FailedUploads(ctx, 2)
				require.NoError(t, err)
				assert.Equal(t, 1, failed)

				// Requeue restores eligibility
				n, err := store.RequeueFailed(ctx, 2)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
				pending, err = store.Surveys.GetPending(ctx, 2)
				require.NoError(t, err)
				assert.Len(t, pending, 1)
			})

			t.Run("inspections split by parent server id", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				syncedParent := seedSurvey(t, store, site.ID)
				blockedParent := seedSurvey(t, store, site.ID)
				require.NoError(t, store.Surveys.MarkSynced(ctx, syncedParent.ID, "srv-1"))

				ready := seedInspection(t, store, syncedParent.ID)
				blocked := seedInspection(t, store, blockedParent.ID)

				eligible, err := store.Inspections.GetPendingWithSyncedParent(ctx, 0)
				require.NoError(t, err)
				require.Len(t, eligible, 1)
				assert.Equal(t, ready.ID, eligible[0].ID)

				waiting, err := store.Inspections.GetPendingBlockedOnParent(ctx)
				require.NoError(t, err)
				require.Len(t, waiting, 1)
				assert.Equal(t, blocked.ID, waiting[0].ID)
			})

			t.Run("photos split by parent server id", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)
				require.NoError(t, store.Surveys.MarkSynced(ctx, survey.ID, "srv-1"))
				insp := seedInspection(t, store, survey.ID)

				photo := seedPhoto(t, store, insp.ID, survey.ID)

				blocked, err := store.Photos.GetPendingBlockedOnParent(ctx)
				require.NoError(t, err)
				require.Len(t, blocked, 1)
				assert.Equal(t, photo.ID, blocked[0].ID)

				require.NoError(t, store.Inspections.MarkSynced(ctx, insp.ID, "srv-insp-1"))

				eligible, err := store.Photos.GetPendingWithSyncedParent(ctx, 0)
				require.NoError(t, err)
				require.Len(t, eligible, 1)
				assert.Equal(t, photo.ID, eligible[0].ID)
			})

			t.Run("pending count spans all entity kinds", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)
				insp := seedInspection(t, store, survey.ID)
				seedPhoto(t, store, insp.ID, survey.ID)

				pending, err := store.PendingUploads(ctx, 0)
				require.NoError(t, err)
				assert.Equal(t, 3, pending)
			})

			t.Run("survey cascade delete removes children", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)
				insp := seedInspection(t, store, survey.ID)
				photo := seedPhoto(t, store, insp.ID, survey.ID)
				keep := seedSurvey(t, store, site.ID)

				deleted, err := store.DeleteSurveyCascade(ctx, survey.ID)
				require.NoError(t, err)
				assert.True(t, deleted)

				gotSurvey, err := store.Surveys.GetByID(ctx, survey.ID)
				require.NoError(t, err)
				assert.Nil(t, gotSurvey)
				gotInsp, err := store.Inspections.GetByID(ctx, insp.ID)
				require.NoError(t, err)
				assert.Nil(t, gotInsp)
				gotPhoto, err := store.Photos.GetByID(ctx, photo.ID)
				require.NoError(t, err)
				assert.Nil(t, gotPhoto)

				// Unrelated records survive
				gotKeep, err := store.Surveys.GetByID(ctx, keep.ID)
				require.NoError(t, err)
				assert.NotNil(t, gotKeep)
			})

			t.Run("inspection cascade delete removes its photos", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()
				site := seedSite(t, store)
				survey := seedSurvey(t, store, site.ID)
				insp := seedInspection(t, store, survey.ID)
				photo := seedPhoto(t, store, insp.ID, survey.ID)

				deleted, err := store.DeleteInspectionCascade(ctx, insp.ID)
				require.NoError(t, err)
				assert.True(t, deleted)

				gotPhoto, err := store.Photos.GetByID(ctx, photo.ID)
				require.NoError(t, err)
				assert.Nil(t, gotPhoto)
			})

			t.Run("list helpers return empty slices", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()

				surveys, err := store.Surveys.GetAll(ctx)
				require.NoError(t, err)
				assert.NotNil(t, surveys)
				assert.Empty(t, surveys)

				sites, err := store.Sites.GetAll(ctx)
				require.NoError(t, err)
				assert.NotNil(t, sites)
				assert.Empty(t, sites)
			})
		})
	}
}
