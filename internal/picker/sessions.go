package picker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// listPageSize is the pageSize value for /mediaItems requests.
// 100 is the maximum the Picker API allows.
const listPageSize = 100

// CreateSession opens a new picking session. pickingConfig is forwarded
// opaquely as the "pickingConfig" body field when non-nil; requestID is the
// caller's idempotency token.
func (c *Client) CreateSession(ctx context.Context, pickingConfig json.RawMessage, requestID string) (*SessionPayload, error) {
	body := map[string]json.RawMessage{}
	if len(pickingConfig) > 0 {
		body["pickingConfig"] = pickingConfig
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding session request: %v", ErrServiceFailure, err)
	}

	path := "/sessions?requestId=" + url.QueryEscape(requestID)

	var payload SessionPayload
	if err := c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(data), &payload); err != nil {
		return nil, err
	}

	if payload.ID == "" {
		return nil, fmt.Errorf("%w: session creation response did not include an id", ErrServiceFailure)
	}

	return &payload, nil
}

// GetSession fetches the current state of a picking session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionPayload, error) {
	var payload SessionPayload
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

// DeleteSession deletes a picking session on the remote service.
// A not-found response is returned as ErrNotFound for the caller to decide;
// the engine treats it as already-deleted.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// ListMediaItems fetches every media item the session's user selected,
// following continuation tokens until the service returns none. Pages are
// accumulated in order.
//
// ready=false with a nil error means the service reported the selection is
// not yet queryable (FAILED_PRECONDITION). That is distinct from an empty
// selection, which is ready=true with an empty slice.
func (c *Client) ListMediaItems(ctx context.Context, sessionID string) (items []MediaItem, ready bool, err error) {
	items = []MediaItem{}

	pageToken := ""
	for {
		query := url.Values{
			"sessionId": {sessionID},
			"pageSize":  {strconv.Itoa(listPageSize)},
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page listMediaItemsResponse
		if err := c.doJSON(ctx, http.MethodGet, "/mediaItems?"+query.Encode(), nil, &page); err != nil {
			if notReady(err) {
				return nil, false, nil
			}

			return nil, false, err
		}

		items = append(items, page.MediaItems...)

		pageToken = page.NextPageToken
		if pageToken == "" {
			return items, true, nil
		}
	}
}

// FetchMedia streams the full-resolution bytes of a media item to w.
// The "=d" suffix requests the original bytes rather than a preview render.
// Returns the number of bytes written.
func (c *Client) FetchMedia(ctx context.Context, baseURL string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	resp, err := c.doOnce(ctx, http.MethodGet, baseURL+"=d", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching media: %v", ErrServiceFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, c.classifyError(http.MethodGet, "(media)", resp.StatusCode, errBody)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: streaming media: %v", ErrServiceFailure, err)
	}

	return n, nil
}
