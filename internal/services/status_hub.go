package services

import (
	"sync"
	"time"
)

// SyncStatus is the engine state surfaced to UI indicators
type SyncStatus struct {
	IsOnline       bool       `json:"isOnline"`
	IsSyncing      bool       `json:"isSyncing"`
	PendingUploads int        `json:"pendingUploads"`
	FailedUploads  int        `json:"failedUploads"`
	LastSync       *time.Time `json:"lastSync,omitempty"`
}

// StatusHub fans sync status out to subscribers. Every subscriber channel
// is buffered with depth one and delivery is last-write-wins: a slow
// consumer sees the newest status, never a backlog.
type StatusHub struct {
	mu          sync.RWMutex
	last        SyncStatus
	subscribers map[chan SyncStatus]struct{}
}

// NewStatusHub creates a new StatusHub
func NewStatusHub() *StatusHub {
	return &StatusHub{
		subscribers: make(map[chan SyncStatus]struct{}),
	}
}

// Publish stores the status and pushes it to every subscriber
func (h *StatusHub) Publish(status SyncStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = status
	for ch := range h.subscribers {
		// Drop the stale value if the subscriber hasn't consumed it yet
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

// Subscribe registers a consumer. The current status is replayed
// immediately; the returned cancel func must be called to release the
// subscription.
func (h *StatusHub) Subscribe() (<-chan SyncStatus, func()) {
	ch := make(chan SyncStatus, 1)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	ch <- h.last
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Last returns the most recently published status
func (h *StatusHub) Last() SyncStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}
