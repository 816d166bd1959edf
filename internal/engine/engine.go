package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pickframe/pickframe/internal/metrics"
	"github.com/pickframe/pickframe/internal/picker"
)

const (
	// DefaultPollInterval is used when the creation response suggests none.
	DefaultPollInterval = 5 * time.Second

	// MinPollInterval floors whatever the service suggests.
	MinPollInterval = 1 * time.Second

	// MaxPollDuration caps how long a session may stay PENDING regardless of
	// the timeout the service declares.
	MaxPollDuration = 15 * time.Minute
)

// API is the subset of the picker client the engine drives.
type API interface {
	CreateSession(ctx context.Context, pickingConfig json.RawMessage, requestID string) (*picker.SessionPayload, error)
	GetSession(ctx context.Context, sessionID string) (*picker.SessionPayload, error)
	ListMediaItems(ctx context.Context, sessionID string) (items []picker.MediaItem, ready bool, err error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Downloader caches selected media locally. DownloadAll tolerates per-item
// failures; ListAll reports the whole cache pool.
type Downloader interface {
	DownloadAll(ctx context.Context, sessionID string, items []picker.MediaItem) []string
	ListAll() []string
}

// Slideshow wakes the display loop, starting it on first use. Wake signals
// coalesce; at-least-once.
type Slideshow interface {
	Start()
}

// Engine orchestrates the session lifecycle: creation, one poll worker per
// pending session, terminal transitions, and completion handling. Safe for
// concurrent use by multiple callers with multiple in-flight sessions.
type Engine struct {
	api       API
	store     *Store
	downloads Downloader
	slideshow Slideshow
	clock     clockwork.Clock
	logger    *slog.Logger

	// baseCtx spans the engine's lifetime. Poll workers run on it rather
	// than the creating request's context: a session must keep polling after
	// the HTTP request that created it returns.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	workers map[string]struct{}

	wg sync.WaitGroup
}

// New creates an Engine.
func New(api API, downloads Downloader, slideshow Slideshow, clock clockwork.Clock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		api:       api,
		store:     NewStore(clock),
		downloads: downloads,
		slideshow: slideshow,
		clock:     clock,
		logger:    logger,
		baseCtx:   ctx,
		cancel:    cancel,
		workers:   make(map[string]struct{}),
	}
}

// CreateSession creates a remote picking session, registers it, and either
// resolves it immediately (when the response already reports the selection
// finalized and the items are queryable) or spawns a poll worker.
//
// Failures from the remote create call propagate synchronously and leave no
// state behind. The call is never retried.
func (e *Engine) CreateSession(ctx context.Context, pickingConfig json.RawMessage, requestID string) (*CreateResult, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	payload, err := e.api.CreateSession(ctx, pickingConfig, requestID)
	if err != nil {
		return nil, err
	}

	metrics.SessionsCreated.Inc()

	pollInterval := DefaultPollInterval
	declaredTimeout := time.Duration(0)

	if pc := payload.PollingConfig; pc != nil {
		if d, ok := picker.ParseSeconds(pc.PollInterval); ok {
			pollInterval = d
		}

		if d, ok := picker.ParseSeconds(pc.TimeoutIn); ok {
			declaredTimeout = d
		}
	}

	// A declared "0s" parses successfully and is floored here rather than
	// treated as unset, so it never falls back to the default interval.
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}

	// Deadline is fixed here and never extended.
	pollWindow := MaxPollDuration
	if declaredTimeout > 0 && declaredTimeout < MaxPollDuration {
		pollWindow = declaredTimeout
	}

	deadline := e.clock.Now().Add(pollWindow)

	e.store.Register(payload, requestID, pollInterval, deadline)

	e.logger.Info("session registered",
		slog.String("session_id", payload.ID),
		slog.String("request_id", requestID),
		slog.Duration("poll_interval", pollInterval),
		slog.Time("deadline", deadline),
	)

	if payload.MediaItemsSet {
		if err := e.resolveImmediate(ctx, payload.ID, pollInterval, deadline); err != nil {
			return nil, err
		}
	} else {
		e.spawnWorker(payload.ID, pollInterval, deadline)
	}

	result := &CreateResult{
		Session:             payload,
		RequestID:           requestID,
		PollingDeadline:     deadline,
		PollIntervalSeconds: pollInterval.Seconds(),
	}

	if snap, ok := e.store.Snapshot(payload.ID); ok {
		result.State = snap.State
	}

	return result, nil
}

// resolveImmediate handles a creation response that already reports the
// selection finalized. When the items are queryable the session completes
// synchronously; when the service says not-yet-ready (it may briefly report
// finalization before items are queryable) the session is demoted to
// PENDING and a poll worker resolves it.
func (e *Engine) resolveImmediate(ctx context.Context, sessionID string, pollInterval time.Duration, deadline time.Time) error {
	items, ready, err := e.api.ListMediaItems(ctx, sessionID)
	if err != nil {
		return err
	}

	if !ready {
		pending := StatePending
		e.store.Apply(sessionID, Update{State: &pending})
		e.spawnWorker(sessionID, pollInterval, deadline)

		return nil
	}

	now := e.clock.Now()
	complete := StateComplete
	e.store.Apply(sessionID, Update{
		State:       &complete,
		MediaItems:  items,
		CompletedAt: &now,
	})
	metrics.SessionOutcomes.WithLabelValues(strings.ToLower(string(StateComplete))).Inc()

	e.handleCompletion(ctx, sessionID, items)

	return nil
}

// GetStatus returns a deep-copied snapshot of the session, or false when
// the id is unknown. Pure read, no side effects.
func (e *Engine) GetStatus(sessionID string) (*Snapshot, bool) {
	return e.store.Snapshot(sessionID)
}

// DeleteSession deletes the remote session and removes the local record.
// A remote not-found is treated as already-deleted. The record is removed
// regardless of the remote call's outcome; an in-flight poll worker is not
// interrupted; its next store update becomes a no-op and it exits at its
// own next loop boundary or deadline.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	defer e.store.Remove(sessionID)

	if err := e.api.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, picker.ErrNotFound) {
			e.logger.Debug("session already deleted remotely",
				slog.String("session_id", sessionID),
			)

			return nil
		}

		return err
	}

	return nil
}

// Close stops the engine: in-flight poll workers are woken from their
// sleeps and exit without a state transition. Blocks until all workers
// have deregistered.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// spawnWorker starts the poll worker for a session unless one is already
// registered for that id. At most one worker exists per session id.
func (e *Engine) spawnWorker(sessionID string, pollInterval time.Duration, deadline time.Time) {
	e.mu.Lock()

	if _, running := e.workers[sessionID]; running {
		e.mu.Unlock()
		return
	}

	e.workers[sessionID] = struct{}{}
	e.mu.Unlock()

	metrics.ActiveWorkers.Inc()
	e.wg.Add(1)

	go e.pollSession(sessionID, pollInterval, deadline)
}

// pollSession is the per-session worker loop. It runs until the session
// resolves, errors, or the deadline passes, then deregisters itself.
func (e *Engine) pollSession(sessionID string, pollInterval time.Duration, deadline time.Time) {
	defer func() {
		e.mu.Lock()
		delete(e.workers, sessionID)
		e.mu.Unlock()

		metrics.ActiveWorkers.Dec()
		e.wg.Done()
	}()

	e.logger.Info("poll worker started",
		slog.String("session_id", sessionID),
	)

	for e.clock.Now().Before(deadline) {
		payload, err := e.api.GetSession(e.baseCtx, sessionID)

		metrics.PollsTotal.Inc()

		if err != nil {
			// Engine shutdown, not a session failure.
			if e.baseCtx.Err() != nil {
				return
			}

			e.failSession(sessionID, err)

			return
		}

		now := e.clock.Now()
		e.store.Apply(sessionID, Update{Raw: payload, LastPolledAt: &now})

		if payload.MediaItemsSet {
			items, ready, err := e.api.ListMediaItems(e.baseCtx, sessionID)
			if err != nil {
				if e.baseCtx.Err() != nil {
					return
				}

				e.failSession(sessionID, err)

				return
			}

			// Not ready means the service reported finalization before the
			// items became queryable. Keep polling.
			if ready {
				completedAt := e.clock.Now()
				complete := StateComplete
				e.store.Apply(sessionID, Update{
					State:       &complete,
					MediaItems:  items,
					CompletedAt: &completedAt,
				})
				metrics.SessionOutcomes.WithLabelValues(strings.ToLower(string(StateComplete))).Inc()

				e.logger.Info("session complete",
					slog.String("session_id", sessionID),
					slog.Int("media_items", len(items)),
				)

				e.handleCompletion(e.baseCtx, sessionID, items)

				return
			}
		}

		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			break
		}

		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-e.clock.After(sleep):
		case <-e.baseCtx.Done():
			return
		}
	}

	timeout := StateTimeout
	e.store.Apply(sessionID, Update{State: &timeout})
	metrics.SessionOutcomes.WithLabelValues(strings.ToLower(string(StateTimeout))).Inc()

	e.logger.Warn("session polling deadline reached",
		slog.String("session_id", sessionID),
	)
}

// failSession records a terminal ERROR transition with the structured
// error payload. Poll errors are never raised; they are captured here for
// GetStatus to report.
func (e *Engine) failSession(sessionID string, err error) {
	errState := StateError
	e.store.Apply(sessionID, Update{
		State: &errState,
		Error: errorPayloadFrom(err),
	})
	metrics.SessionOutcomes.WithLabelValues(strings.ToLower(string(StateError))).Inc()

	e.logger.Warn("session polling failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// errorPayloadFrom extracts the structured fields from a picker API error;
// transport failures carry only a message.
func errorPayloadFrom(err error) *ErrorPayload {
	var apiErr *picker.APIError
	if errors.As(err, &apiErr) {
		return &ErrorPayload{
			Message:    err.Error(),
			Status:     apiErr.Status,
			StatusCode: apiErr.StatusCode,
		}
	}

	return &ErrorPayload{Message: err.Error()}
}

// handleCompletion downloads the session's media into the shared cache and,
// when the cache pool is non-empty, stamps the session's downloadedFiles
// with the full pool listing and wakes the slideshow. The listing is a
// best-effort point-in-time snapshot; other sessions may be downloading
// concurrently.
func (e *Engine) handleCompletion(ctx context.Context, sessionID string, items []picker.MediaItem) {
	e.downloads.DownloadAll(ctx, sessionID, items)

	pool := e.downloads.ListAll()
	if len(pool) == 0 {
		return
	}

	e.store.Apply(sessionID, Update{DownloadedFiles: pool})
	e.slideshow.Start()
}

// ActiveWorkerCount reports how many poll workers are currently registered.
func (e *Engine) ActiveWorkerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.workers)
}
