// Package metrics defines Prometheus metrics for the picking session
// lifecycle, media downloads, and the slideshow loop. All metrics are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle metrics
var (
	// SessionsCreated tracks picking sessions successfully created on the
	// remote service.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickframe_sessions_created_total",
			Help: "Total picking sessions created",
		},
	)

	// SessionOutcomes tracks terminal session transitions by resulting state
	// (complete/error/timeout).
	SessionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickframe_session_outcomes_total",
			Help: "Terminal session state transitions by state",
		},
		[]string{"state"},
	)

	// PollsTotal tracks individual poll round trips against the remote service.
	PollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickframe_session_polls_total",
			Help: "Total session poll requests",
		},
	)

	// ActiveWorkers tracks currently running poll workers.
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickframe_poll_workers_active",
			Help: "Poll workers currently running",
		},
	)
)

// Download metrics
var (
	// DownloadsTotal tracks media item download attempts by outcome
	// (downloaded/cached/failed).
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickframe_downloads_total",
			Help: "Media item download attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Slideshow metrics
var (
	// SlideshowDisplays tracks photos handed to the external viewer.
	SlideshowDisplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickframe_slideshow_displays_total",
			Help: "Photos handed to the external viewer",
		},
	)
)
