package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveysync/agent/internal/models"
)

func newTestSurvey(t *testing.T) *models.Survey {
	t.Helper()
	survey, err := models.NewSurvey("site-1", "HVAC", "surveyor-1", &orb.Point{-0.1276, 51.5074})
	require.NoError(t, err)
	return survey
}

func TestClientCreateSurvey(t *testing.T) {
	var gotAuth string
	var gotPayload surveyPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/surveys", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(serverIDResponse{ID: "srv-42"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	survey := newTestSurvey(t)

	serverID, err := client.CreateSurvey(context.Background(), survey)
	require.NoError(t, err)
	assert.Equal(t, "srv-42", serverID)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, survey.ID, gotPayload.ClientID)
	assert.Equal(t, "site-1", gotPayload.SiteID)
	assert.Equal(t, "HVAC", gotPayload.Trade)
	assert.Equal(t, models.SurveyStatusDraft, gotPayload.Status)
	require.Len(t, gotPayload.GPS, 2)
	assert.InDelta(t, -0.1276, gotPayload.GPS[0], 1e-9)
	assert.InDelta(t, 51.5074, gotPayload.GPS[1], 1e-9)
}

func TestClientUpdateSurveyAddressesServerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/surveys/srv-42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	err := client.UpdateSurvey(context.Background(), "srv-42", newTestSurvey(t))
	assert.NoError(t, err)
}

func TestClientCreateInspectionNestsUnderSurvey(t *testing.T) {
	var gotPayload inspectionPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/surveys/srv-42/inspections", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(serverIDResponse{ID: "insp-7"})
	}))
	defer srv.Close()

	insp, err := models.NewAssetInspection("local-survey-id", "AHU-01", 3, "fair", 2, "worn belts", nil)
	require.NoError(t, err)

	client := NewClient(srv.URL, "secret-token")
	serverID, err := client.CreateInspection(context.Background(), "srv-42", insp)
	require.NoError(t, err)
	assert.Equal(t, "insp-7", serverID)

	assert.Equal(t, insp.ID, gotPayload.ClientID)
	// The remote knows surveys by server id, never by the local one
	assert.Equal(t, "srv-42", gotPayload.SurveyID)
	assert.Equal(t, "AHU-01", gotPayload.AssetID)
	assert.Equal(t, 3, gotPayload.ConditionRating)
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "stale-token")
	fired := 0
	client.OnUnauthorized = func() { fired++ }

	_, err := client.CreateSurvey(context.Background(), newTestSurvey(t))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, fired)
}

func TestClientRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	_, err := client.CreateSurvey(context.Background(), newTestSurvey(t))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad payload")
}

func TestClientUploadPhoto(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "panel.jpg")
	require.NoError(t, os.WriteFile(filePath, []byte("jpeg-bytes"), 0o644))

	var gotFields map[string]string
	var gotFile []byte
	var gotFileName string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/photos", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{
			"client_id":     r.FormValue("client_id"),
			"inspection_id": r.FormValue("inspection_id"),
			"survey_id":     r.FormValue("survey_id"),
			"caption":       r.FormValue("caption"),
		}
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		gotFile, err = io.ReadAll(file)
		require.NoError(t, err)

		json.NewEncoder(w).Encode(serverIDResponse{ID: "photo-9"})
	}))
	defer srv.Close()

	photo, err := models.NewPhoto("local-insp-id", "local-survey-id", filePath, "front panel")
	require.NoError(t, err)

	client := NewClient(srv.URL, "secret-token")
	serverID, err := client.UploadPhoto(context.Background(), "insp-7", "srv-42", photo)
	require.NoError(t, err)
	assert.Equal(t, "photo-9", serverID)

	assert.Equal(t, photo.ID, gotFields["client_id"])
	assert.Equal(t, "insp-7", gotFields["inspection_id"])
	assert.Equal(t, "srv-42", gotFields["survey_id"])
	assert.Equal(t, "front panel", gotFields["caption"])
	assert.Equal(t, "panel.jpg", gotFileName)
	assert.Equal(t, []byte("jpeg-bytes"), gotFile)
}

func TestClientUploadPhotoMissingFile(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "secret-token")
	photo, err := models.NewPhoto("local-insp-id", "local-survey-id", "/nonexistent/p.jpg", "")
	require.NoError(t, err)

	_, err = client.UploadPhoto(context.Background(), "insp-7", "srv-42", photo)
	assert.Error(t, err)
}

func TestClientPing(t *testing.T) {
	t.Run("healthy remote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "secret-token")
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unreachable remote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // reachability probe against a dead listener

		client := NewClient(srv.URL, "secret-token")
		assert.Error(t, client.Ping(context.Background()))
	})
}
