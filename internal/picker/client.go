package picker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the production Picker API endpoint.
	DefaultBaseURL = "https://photospicker.googleapis.com/v1"

	// requestTimeout bounds every API round trip. Failures are terminal for
	// the calling operation; the client never retries.
	requestTimeout = 30 * time.Second

	// downloadTimeout bounds a single media byte fetch, which can be much
	// larger than an API response.
	downloadTimeout = 120 * time.Second

	userAgent = "pickframe/0.1"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per Go
// convention "accept interfaces, return structs". The auth package provides
// the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the Photos Picker API. It handles request
// construction, authentication, bounded timeouts, and error classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a Picker API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// do executes a single HTTP request against the Picker API and classifies
// the outcome. Non-2xx responses with a parseable error envelope become
// *APIError; transport failures and unreadable bodies wrap ErrServiceFailure.
// The caller is responsible for closing the response body on success.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)

	resp, err := c.doOnce(ctx, method, c.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s %s: %v", ErrServiceFailure, method, path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		// The cancel func is tied to the response body lifetime; the body is
		// fully read by the json decode helpers before the deadline matters.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}

		return resp, nil
	}

	defer cancel()

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		return nil, fmt.Errorf("%w: %s %s: reading error body: %v", ErrServiceFailure, method, path, readErr)
	}

	return nil, c.classifyError(method, path, resp.StatusCode, errBody)
}

// classifyError builds an *APIError from a non-2xx response. A body without
// the google.rpc error envelope still yields a structured error, with the
// raw text as the message.
func (c *Client) classifyError(method, path string, statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Err:        classifyStatus(statusCode),
	}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
		apiErr.Details = envelope.Error.Details
	} else {
		apiErr.Message = string(body)
		if apiErr.Message == "" {
			apiErr.Message = "unknown error"
		}
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", statusCode),
		slog.String("rpc_status", apiErr.Status),
	)

	return apiErr
}

// doOnce executes a single HTTP request with auth headers attached.
func (c *Client) doOnce(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// doJSON executes a request and decodes the response body into out.
// An empty body with a nil out is a success (DELETE returns no content).
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: reading response: %v", ErrServiceFailure, method, path, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: decoding response: %v", ErrServiceFailure, method, path, err)
	}

	return nil
}

// cancelOnClose releases the request's timeout context when the response
// body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()

	return err
}
