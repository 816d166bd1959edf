package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pickframe/pickframe/internal/picker"
)

// Store is a thread-safe mapping from session id to mutable session state.
// A single mutex guards all reads and writes; snapshots deep-copy nested
// payloads so callers never alias store internals.
type Store struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]*session
}

// NewStore creates an empty session state store.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock:    clock,
		sessions: make(map[string]*session),
	}
}

// Register inserts the initial record for a freshly created session.
// The initial state is COMPLETE when the creation response already reports
// the selection finalized, PENDING otherwise. completedAt starts unset in
// either case; only an actual completion transition stamps it, since a
// finalized creation response may still be demoted to PENDING when its
// items are not yet queryable. Registering an id that already exists
// replaces the entry; the engine never does this (session ids are unique
// remote-assigned keys).
func (s *Store) Register(payload *picker.SessionPayload, requestID string, pollInterval time.Duration, deadline time.Time) {
	now := s.clock.Now()

	state := StatePending
	if payload.MediaItemsSet {
		state = StateComplete
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[payload.ID] = &session{
		raw:             payload.Clone(),
		state:           state,
		requestID:       requestID,
		createdAt:       now,
		updatedAt:       now,
		deadline:        deadline,
		pollInterval:    pollInterval,
		mediaItems:      []picker.MediaItem{},
		downloadedFiles: []string{},
	}
}

// Update describes a partial mutation of a session record. Nil fields are
// left untouched.
type Update struct {
	Raw             *picker.SessionPayload
	State           *State
	MediaItems      []picker.MediaItem
	Error           *ErrorPayload
	LastPolledAt    *time.Time
	CompletedAt     *time.Time
	DownloadedFiles []string
}

// Apply merges the update into the session for id. A missing id is a no-op:
// this is the cancellation contract. Deleting a session makes its poll
// worker's subsequent updates inert, and the worker exits on its own at the
// next loop boundary or deadline.
func (s *Store) Apply(id string, upd Update) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return
	}

	if upd.Raw != nil {
		entry.raw = upd.Raw.Clone()
	}

	if upd.State != nil {
		entry.state = *upd.State
	}

	if upd.MediaItems != nil {
		entry.mediaItems = slices.Clone(upd.MediaItems)
	}

	if upd.Error != nil {
		errCopy := *upd.Error
		entry.errPayload = &errCopy
	}

	if upd.LastPolledAt != nil {
		t := *upd.LastPolledAt
		entry.lastPolledAt = &t
	}

	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		entry.completedAt = &t
	}

	if upd.DownloadedFiles != nil {
		entry.downloadedFiles = slices.Clone(upd.DownloadedFiles)
	}

	entry.updatedAt = now
}

// Snapshot returns a deep-copied view of the session for id, or false when
// the id is absent. Pure read, no side effects.
func (s *Store) Snapshot(id string) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	snap := &Snapshot{
		SessionID:            id,
		State:                entry.state,
		Session:              entry.raw.Clone(),
		CreatedAt:            entry.createdAt,
		UpdatedAt:            entry.updatedAt,
		PollingDeadline:      entry.deadline,
		PollIntervalSeconds:  entry.pollInterval.Seconds(),
		MediaItems:           slices.Clone(entry.mediaItems),
		MediaItemsCount:      len(entry.mediaItems),
		RequestID:            entry.requestID,
		DownloadedFiles:      slices.Clone(entry.downloadedFiles),
		DownloadedFilesCount: len(entry.downloadedFiles),
	}

	if entry.lastPolledAt != nil {
		t := *entry.lastPolledAt
		snap.LastPolledAt = &t
	}

	if entry.completedAt != nil {
		t := *entry.completedAt
		snap.CompletedAt = &t
	}

	if entry.errPayload != nil {
		errCopy := *entry.errPayload
		snap.Error = &errCopy
	}

	return snap, true
}

// Remove deletes the record for id. A removed session is never re-inserted.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
