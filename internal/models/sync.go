package models

// SyncState tracks the reconciliation state of a locally created record.
//
// ServerID is assigned exactly once, by the sync orchestrator, after the
// remote backend first acknowledges the record. A record with Synced=true
// always has a non-nil ServerID. The zero value means "created locally,
// never uploaded".
type SyncState struct {
	ServerID      *string `json:"serverId,omitempty"`
	Synced        bool    `json:"synced"`
	SyncAttempts  int     `json:"syncAttempts"`
	LastSyncError *string `json:"lastSyncError,omitempty"`
}

// ServerRef returns the server-assigned identifier and whether one exists.
// Callers that gate child uploads on a parent's remote identity must use
// this rather than reading ServerID directly.
func (s *SyncState) ServerRef() (string, bool) {
	if s.ServerID == nil || *s.ServerID == "" {
		return "", false
	}
	return *s.ServerID, true
}

// MarkSynced records a successful upload. The attempt counter and last
// error are cleared so a later local edit starts a fresh retry budget.
func (s *SyncState) MarkSynced(serverID string) {
	s.ServerID = &serverID
	s.Synced = true
	s.SyncAttempts = 0
	s.LastSyncError = nil
}

// MarkDirty re-queues the record for upload after a local edit. The
// server id is retained so the next cycle issues an update rather than a
// duplicate create.
func (s *SyncState) MarkDirty() {
	s.Synced = false
}

// MarkFailed records one failed upload attempt.
func (s *SyncState) MarkFailed(msg string) {
	s.Synced = false
	s.SyncAttempts++
	s.LastSyncError = &msg
}

// Exhausted reports whether the record has used up its retry budget.
// maxAttempts <= 0 means retry forever.
func (s *SyncState) Exhausted(maxAttempts int) bool {
	return maxAttempts > 0 && s.SyncAttempts >= maxAttempts
}
