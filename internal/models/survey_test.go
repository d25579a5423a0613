package models

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSurvey(t *testing.T) {
	t.Run("creates survey with valid parameters", func(t *testing.T) {
		gps := &orb.Point{-0.1276, 51.5074}

		survey, err := NewSurvey("site-1", "HVAC", "surveyor-1", gps)

		require.NoError(t, err)
		assert.NotEmpty(t, survey.ID)
		assert.Equal(t, "site-1", survey.SiteID)
		assert.Equal(t, "HVAC", survey.Trade)
		assert.Equal(t, SurveyStatusDraft, survey.Status)
		assert.Equal(t, "surveyor-1", survey.SurveyorID)
		assert.Equal(t, gps, survey.GPS)
		assert.WithinDuration(t, time.Now().UTC(), survey.CreatedAt, time.Second*5)
	})

	t.Run("starts unsynced with no server id", func(t *testing.T) {
		survey, err := NewSurvey("site-1", "HVAC", "surveyor-1", nil)

		require.NoError(t, err)
		assert.False(t, survey.Sync.Synced)
		_, ok := survey.Sync.ServerRef()
		assert.False(t, ok)
	})

	t.Run("rejects empty site id", func(t *testing.T) {
		_, err := NewSurvey("", "HVAC", "surveyor-1", nil)
		assert.ErrorIs(t, err, ErrEmptySiteID)
	})

	t.Run("rejects empty trade", func(t *testing.T) {
		_, err := NewSurvey("site-1", "  ", "surveyor-1", nil)
		assert.ErrorIs(t, err, ErrEmptyTrade)
	})

	t.Run("rejects empty surveyor id", func(t *testing.T) {
		_, err := NewSurvey("site-1", "HVAC", "", nil)
		assert.ErrorIs(t, err, ErrEmptySurveyorID)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		s1, err := NewSurvey("site-1", "HVAC", "surveyor-1", nil)
		require.NoError(t, err)
		s2, err := NewSurvey("site-1", "HVAC", "surveyor-1", nil)
		require.NoError(t, err)

		assert.NotEqual(t, s1.ID, s2.ID)
	})
}

func TestIsValidSurveyStatus(t *testing.T) {
	assert.True(t, IsValidSurveyStatus(SurveyStatusDraft))
	assert.True(t, IsValidSurveyStatus(SurveyStatusInProgress))
	assert.True(t, IsValidSurveyStatus(SurveyStatusSubmitted))
	assert.False(t, IsValidSurveyStatus("archived"))
	assert.False(t, IsValidSurveyStatus(""))
}
