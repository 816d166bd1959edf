package picker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	var gotRequestID string

	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		gotRequestID = r.URL.Query().Get("requestId")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{
			"id": "s1",
			"pickerUri": "https://photos.example/picker/s1",
			"mediaItemsSet": false,
			"pollingConfig": {"pollInterval": "2s", "timeoutIn": "30s"}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	payload, err := c.CreateSession(context.Background(), json.RawMessage(`{"maxItemCount":"5"}`), "req-1")
	require.NoError(t, err)

	assert.Equal(t, "req-1", gotRequestID)
	assert.JSONEq(t, `{"maxItemCount":"5"}`, string(gotBody["pickingConfig"]))
	assert.Equal(t, "s1", payload.ID)
	assert.Equal(t, "https://photos.example/picker/s1", payload.PickerURI)
	assert.False(t, payload.MediaItemsSet)
	require.NotNil(t, payload.PollingConfig)
	assert.Equal(t, "2s", payload.PollingConfig.PollInterval)
}

func TestCreateSession_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"pickerUri": "https://photos.example/picker"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateSession(context.Background(), nil, "req-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceFailure)
}

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions/s1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "s1", "mediaItemsSet": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	payload, err := c.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, payload.MediaItemsSet)
}

func TestDeleteSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/sessions/s1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	require.NoError(t, c.DeleteSession(context.Background(), "s1"))
}

func TestListMediaItems_Pagination(t *testing.T) {
	// Three pages, each with a continuation token except the last. The
	// accumulated result must equal the concatenation in order.
	pages := map[string]string{
		"":   `{"mediaItems":[{"id":"m1"},{"id":"m2"}],"nextPageToken":"p2"}`,
		"p2": `{"mediaItems":[{"id":"m3"}],"nextPageToken":"p3"}`,
		"p3": `{"mediaItems":[{"id":"m4"},{"id":"m5"}]}`,
	}

	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		require.Equal(t, "/mediaItems", r.URL.Path)
		require.Equal(t, "s1", r.URL.Query().Get("sessionId"))
		require.Equal(t, "100", r.URL.Query().Get("pageSize"))

		body, ok := pages[r.URL.Query().Get("pageToken")]
		require.True(t, ok, "unexpected page token %q", r.URL.Query().Get("pageToken"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	items, ready, err := c.ListMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 3, requests)

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids)
}

func TestListMediaItems_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"not ready","status":"FAILED_PRECONDITION"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	items, ready, err := c.ListMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Nil(t, items)
}

func TestListMediaItems_EmptySelectionIsReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	items, ready, err := c.ListMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestListMediaItems_OtherErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, _, err := c.ListMediaItems(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The full-resolution suffix lands in the request path.
		require.Equal(t, "/media/base=d", r.URL.Path)
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	n, err := c.FetchMedia(context.Background(), srv.URL+"/media/base", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("image-bytes")), n)
	assert.Equal(t, "image-bytes", buf.String())
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"5s", 5 * time.Second, true},
		{"1.5s", 1500 * time.Millisecond, true},
		{"0s", 0, true},
		{"-3s", 0, true},
		{"", 0, false},
		{"5", 0, false},
		{"5m", 0, false},
		{"xs", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseSeconds(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
