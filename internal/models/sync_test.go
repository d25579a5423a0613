package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncState(t *testing.T) {
	t.Run("mark synced sets server id and clears failure state", func(t *testing.T) {
		var s SyncState
		s.MarkFailed("timeout")
		s.MarkFailed("timeout")

		s.MarkSynced("srv-1")

		assert.True(t, s.Synced)
		assert.Zero(t, s.SyncAttempts)
		assert.Nil(t, s.LastSyncError)
		serverID, ok := s.ServerRef()
		require.True(t, ok)
		assert.Equal(t, "srv-1", serverID)
	})

	t.Run("mark dirty keeps server id", func(t *testing.T) {
		var s SyncState
		s.MarkSynced("srv-1")

		s.MarkDirty()

		assert.False(t, s.Synced)
		serverID, ok := s.ServerRef()
		require.True(t, ok)
		assert.Equal(t, "srv-1", serverID)
	})

	t.Run("mark failed accumulates attempts", func(t *testing.T) {
		var s SyncState
		s.MarkFailed("boom")
		s.MarkFailed("still boom")

		assert.False(t, s.Synced)
		assert.Equal(t, 2, s.SyncAttempts)
		require.NotNil(t, s.LastSyncError)
		assert.Equal(t, "still boom", *s.LastSyncError)
	})

	t.Run("exhausted respects the attempt budget", func(t *testing.T) {
		var s SyncState
		s.MarkFailed("boom")
		s.MarkFailed("boom")
		s.MarkFailed("boom")

		assert.True(t, s.Exhausted(3))
		assert.False(t, s.Exhausted(4))
		// maxAttempts <= 0 means retry forever
		assert.False(t, s.Exhausted(0))
		assert.False(t, s.Exhausted(-1))
	})

	t.Run("server ref absent until first sync", func(t *testing.T) {
		var s SyncState
		_, ok := s.ServerRef()
		assert.False(t, ok)
	})
}
