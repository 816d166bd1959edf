// Package slideshow runs the background display loop: on trigger (or on an
// idle interval) it picks a random photo from the cache pool and hands it
// to the external full-screen viewer.
package slideshow

import (
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pickframe/pickframe/internal/metrics"
)

// Viewer is the external full-screen image viewer capability. Display kills
// any prior viewer instance before launching a new one; Stop kills the
// viewer without replacing it.
type Viewer interface {
	Display(path string) error
	Stop() error
}

const (
	// idleInterval bounds the trigger wait; on an idle wake with photos
	// present a new one is displayed, so the interval doubles as the
	// rotation period.
	idleInterval = 120 * time.Second

	// emptyRetryDelay is the pause after a trigger that found no photos.
	emptyRetryDelay = 5 * time.Second
)

// Controller owns the single long-lived slideshow loop. Triggers coalesce:
// multiple signals before a wake produce one wake. Exactly one loop runs at
// a time; Start on a running controller just re-signals the trigger.
type Controller struct {
	dir    string
	viewer Viewer
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewController creates a Controller over the given cache directory.
// The loop does not run until Start.
func NewController(dir string, viewer Viewer, clock clockwork.Clock, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		dir:     dir,
		viewer:  viewer,
		clock:   clock,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Start launches the loop, or re-signals the trigger when one is already
// running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.signal()
		return
	}

	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.signal()

	go c.loop(c.stop, c.done)
}

// Trigger wakes the loop to display a fresh photo. Idempotent; signals
// before a wake coalesce. A no-op when the loop is not running.
func (c *Controller) Trigger() {
	c.signal()
}

// signal performs the non-blocking coalescing send.
func (c *Controller) signal() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Stop requests the loop to exit and waits for it. Provided for graceful
// shutdown; nothing invokes it during normal operation.
func (c *Controller) Stop() {
	c.mu.Lock()

	if !c.running {
		c.mu.Unlock()
		return
	}

	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

// loop waits for a trigger or the idle interval, then displays one random
// photo from the pool. The stop request is checked once per wake cycle.
func (c *Controller) loop(stop <-chan struct{}, done chan<- struct{}) {
	c.logger.Info("slideshow loop started", slog.String("dir", c.dir))

	defer func() {
		c.logger.Info("slideshow loop terminated")
		close(done)
	}()

	for {
		triggered := false

		select {
		case <-stop:
			return
		case <-c.trigger:
			triggered = true
		case <-c.clock.After(idleInterval):
		}

		select {
		case <-stop:
			return
		default:
		}

		path := c.randomPhoto()
		if path == "" {
			if !triggered {
				// No photos yet; try again on the next interval.
				continue
			}

			select {
			case <-stop:
				return
			case <-c.clock.After(emptyRetryDelay):
			}

			continue
		}

		if err := c.viewer.Display(path); err != nil {
			c.logger.Warn("failed to display photo",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			continue
		}

		metrics.SlideshowDisplays.Inc()
		c.logger.Debug("displaying photo", slog.String("path", path))
	}
}

// randomPhoto picks one regular file uniformly at random from the cache
// directory, or "" when none is available. Dot-prefixed entries are the
// downloader's in-flight temp files and are never displayed.
func (c *Controller) randomPhoto() string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return ""
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		files = append(files, filepath.Join(c.dir, entry.Name()))
	}

	if len(files) == 0 {
		return ""
	}

	return files[rand.IntN(len(files))]
}
