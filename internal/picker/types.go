package picker

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SessionPayload mirrors the Picker API session resource JSON.
type SessionPayload struct {
	ID            string         `json:"id"`
	PickerURI     string         `json:"pickerUri,omitempty"`
	ExpireTime    string         `json:"expireTime,omitempty"`
	MediaItemsSet bool           `json:"mediaItemsSet"`
	PollingConfig *PollingConfig `json:"pollingConfig,omitempty"`
}

// Clone returns a deep copy of the payload. Snapshots hand these to callers,
// so store internals must never be aliased.
func (p *SessionPayload) Clone() *SessionPayload {
	if p == nil {
		return nil
	}

	cp := *p
	if p.PollingConfig != nil {
		pc := *p.PollingConfig
		cp.PollingConfig = &pc
	}

	return &cp
}

// PollingConfig carries the service's suggested poll cadence. Both fields
// are duration strings of the form "<seconds>s".
type PollingConfig struct {
	PollInterval string `json:"pollInterval,omitempty"`
	TimeoutIn    string `json:"timeoutIn,omitempty"`
}

// MediaItem is one photo or video the user selected.
type MediaItem struct {
	ID       string `json:"id"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// listMediaItemsResponse is one page of the /mediaItems collection.
type listMediaItemsResponse struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// errorResponse is the google.rpc error envelope on non-2xx responses.
type errorResponse struct {
	Error struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// ParseSeconds parses a Picker API duration string of the form "<seconds>s"
// (e.g. "5s", "1.5s"). Returns ok=false for a missing, malformed, or
// differently-suffixed value. Negative durations clamp to zero.
func ParseSeconds(value string) (time.Duration, bool) {
	if !strings.HasSuffix(value, "s") {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(strings.TrimSuffix(value, "s"), 64)
	if err != nil {
		return 0, false
	}

	if seconds < 0 {
		seconds = 0
	}

	return time.Duration(seconds * float64(time.Second)), true
}
