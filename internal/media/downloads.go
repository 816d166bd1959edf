// Package media manages the shared local cache of downloaded photos.
// Downloads are idempotent per filename and tolerant of partial failure;
// the cache directory is append-mostly shared storage drawn from by the
// slideshow regardless of which session produced each file.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pickframe/pickframe/internal/metrics"
	"github.com/pickframe/pickframe/internal/picker"
)

// PhotosSubdir is the cache directory name within the storage root.
// Returned paths are relative to the storage root, so they carry this prefix.
const PhotosSubdir = "photos"

const dirPerms = 0o755

// unsafeChars matches every byte not allowed in a cached filename.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Fetcher streams full-resolution media bytes. The picker client provides
// the real implementation.
type Fetcher interface {
	FetchMedia(ctx context.Context, baseURL string, w io.Writer) (int64, error)
}

// Manager downloads selected media items into the shared cache directory.
type Manager struct {
	root    string // storage root; the cache lives at root/photos
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
}

// NewManager creates a Manager rooted at storageDir/photos, creating the
// directory if needed.
func NewManager(storageDir string, fetcher Fetcher, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Join(storageDir, PhotosSubdir)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("media: creating cache directory %s: %w", dir, err)
	}

	return &Manager{
		root:    storageDir,
		dir:     dir,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// Dir returns the absolute cache directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// DownloadAll fetches every item with a usable source URL into the cache.
// A file that already exists under the derived name is recorded without
// re-fetching; a fetch or write failure for one item is logged and skipped.
// Returns the relative paths (from the storage root) of every item that is
// available on disk after the call.
func (m *Manager) DownloadAll(ctx context.Context, sessionID string, items []picker.MediaItem) []string {
	available := []string{}

	for i, item := range items {
		if item.BaseURL == "" {
			continue
		}

		name := m.fileName(sessionID, i+1, item)
		path := filepath.Join(m.dir, name)
		rel := filepath.Join(PhotosSubdir, name)

		if _, err := os.Stat(path); err == nil {
			metrics.DownloadsTotal.WithLabelValues("cached").Inc()
			available = append(available, rel)

			continue
		}

		if err := m.fetchToFile(ctx, item.BaseURL, path); err != nil {
			metrics.DownloadsTotal.WithLabelValues("failed").Inc()
			m.logger.Warn("failed to download media item",
				slog.String("item_id", item.ID),
				slog.String("file", name),
				slog.String("error", err.Error()),
			)

			continue
		}

		metrics.DownloadsTotal.WithLabelValues("downloaded").Inc()
		m.logger.Debug("downloaded media item",
			slog.String("item_id", item.ID),
			slog.String("file", name),
		)

		available = append(available, rel)
	}

	return available
}

// ListAll lists every regular file currently in the cache directory as
// paths relative to the storage root, sorted for determinism. Dot-prefixed
// entries are excluded: in-flight downloads live in dotfile temps until
// renamed into place, and must never enter the pool listing.
func (m *Manager) ListAll() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return []string{}
	}

	files := []string{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		files = append(files, filepath.Join(PhotosSubdir, entry.Name()))
	}

	sort.Strings(files)

	return files
}

// fetchToFile streams one media item to a temp file and renames it into
// place, so a failed fetch never leaves a partial file for the idempotence
// check to mistake for a completed download.
func (m *Manager) fetchToFile(ctx context.Context, baseURL, path string) error {
	tmp, err := os.CreateTemp(m.dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := m.fetcher.FetchMedia(ctx, baseURL, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}

	return nil
}

// fileName derives the cache filename for an item: the sanitized declared
// filename, or a session-qualified fallback when none is present, with an
// extension inferred from the MIME type when the name lacks one.
func (m *Manager) fileName(sessionID string, index int, item picker.MediaItem) string {
	name := item.Filename
	if name == "" {
		name = fmt.Sprintf("%s_%d", sessionID, index)
	}

	name = sanitizeFilename(name)

	if filepath.Ext(name) == "" {
		name += extensionForMIME(item.MimeType)
	}

	return name
}

// sanitizeFilename replaces every unsafe byte with an underscore. Leading
// dots are stripped so a cached file is never hidden from the listers.
func sanitizeFilename(name string) string {
	sanitized := unsafeChars.ReplaceAllString(name, "_")
	sanitized = strings.TrimLeft(sanitized, ".")

	if sanitized == "" {
		return "photo"
	}

	return sanitized
}

// extensionForMIME maps declared MIME types to file extensions. Unknown
// types get no extension.
func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic", "image/heif":
		return ".heic"
	}

	if strings.HasPrefix(mimeType, "video/") {
		return ".mp4"
	}

	return ""
}
