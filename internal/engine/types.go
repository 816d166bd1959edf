// Package engine implements the picking session lifecycle: a thread-safe
// session state store, one poll worker per pending session, terminal state
// transitions, and completion handling that downloads selected media and
// triggers the slideshow.
package engine

import (
	"time"

	"github.com/pickframe/pickframe/internal/picker"
)

// State is the lifecycle tag of a session. PENDING is the only non-terminal
// state; a session transitions away from it exactly once.
type State string

const (
	StatePending  State = "PENDING"
	StateComplete State = "COMPLETE"
	StateError    State = "ERROR"
	StateTimeout  State = "TIMEOUT"
)

// ErrorPayload is the structured error recorded on a session that
// transitioned to ERROR.
type ErrorPayload struct {
	Message    string `json:"message"`
	Status     string `json:"status,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// session is the store-internal mutable record for one picking session.
// All access goes through the store's mutex.
type session struct {
	raw          *picker.SessionPayload
	state        State
	requestID    string
	createdAt    time.Time
	updatedAt    time.Time
	lastPolledAt *time.Time
	completedAt  *time.Time
	deadline     time.Time
	pollInterval time.Duration
	mediaItems   []picker.MediaItem
	errPayload   *ErrorPayload

	// downloadedFiles is stamped on completion with the full cache pool
	// listing, not just this session's own downloads; the slideshow draws
	// from the shared pool.
	downloadedFiles []string
}

// Snapshot is a deep-copied, serializable view of one session record.
type Snapshot struct {
	SessionID            string                 `json:"sessionId"`
	State                State                  `json:"state"`
	Session              *picker.SessionPayload `json:"session"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
	LastPolledAt         *time.Time             `json:"lastPolledAt"`
	CompletedAt          *time.Time             `json:"completedAt"`
	PollingDeadline      time.Time              `json:"pollingDeadline"`
	PollIntervalSeconds  float64                `json:"pollIntervalSeconds"`
	MediaItems           []picker.MediaItem     `json:"mediaItems"`
	MediaItemsCount      int                    `json:"mediaItemsCount"`
	Error                *ErrorPayload          `json:"error"`
	RequestID            string                 `json:"requestId"`
	DownloadedFiles      []string               `json:"downloadedFiles"`
	DownloadedFilesCount int                    `json:"downloadedFilesCount"`
}

// CreateResult is what CreateSession returns to the routing layer: the raw
// remote payload plus the registration metadata the engine derived from it.
type CreateResult struct {
	Session             *picker.SessionPayload `json:"session"`
	State               State                  `json:"state"`
	RequestID           string                 `json:"requestId"`
	PollingDeadline     time.Time              `json:"pollingDeadline"`
	PollIntervalSeconds float64                `json:"pollIntervalSeconds"`
}
