package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHub(t *testing.T) {
	t.Run("subscribe replays the current status", func(t *testing.T) {
		hub := NewStatusHub()
		hub.Publish(SyncStatus{IsOnline: true, PendingUploads: 3})

		updates, cancel := hub.Subscribe()
		defer cancel()

		select {
		case status := <-updates:
			assert.True(t, status.IsOnline)
			assert.Equal(t, 3, status.PendingUploads)
		case <-time.After(time.Second):
			t.Fatal("expected replay of current status")
		}
	})

	t.Run("slow consumer sees the newest status", func(t *testing.T) {
		hub := NewStatusHub()
		updates, cancel := hub.Subscribe()
		defer cancel()
		<-updates // drain the replay

		// Consumer never reads between these; the stale value is dropped
		hub.Publish(SyncStatus{PendingUploads: 5})
		hub.Publish(SyncStatus{PendingUploads: 2})
		hub.Publish(SyncStatus{PendingUploads: 0, IsSyncing: false})

		select {
		case status := <-updates:
			assert.Equal(t, 0, status.PendingUploads)
		case <-time.After(time.Second):
			t.Fatal("expected a buffered status")
		}
	})

	t.Run("cancel closes the channel and stops delivery", func(t *testing.T) {
		hub := NewStatusHub()
		updates, cancel := hub.Subscribe()
		<-updates

		cancel()
		_, open := <-updates
		assert.False(t, open)

		// Publishing after cancel must not panic on the closed channel
		hub.Publish(SyncStatus{PendingUploads: 1})

		// Cancel is idempotent
		cancel()
	})

	t.Run("last tracks the most recent publish", func(t *testing.T) {
		hub := NewStatusHub()
		assert.Zero(t, hub.Last())

		now := time.Now().UTC()
		hub.Publish(SyncStatus{IsOnline: true, LastSync: &now})

		got := hub.Last()
		assert.True(t, got.IsOnline)
		require.NotNil(t, got.LastSync)
	})
}
