package slideshow

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// FehViewer drives the feh image viewer on an X display. Display follows
// the kill-then-launch contract: any prior feh instance is terminated
// before the new one starts.
type FehViewer struct {
	display string // X display, e.g. ":0"
	logger  *slog.Logger
}

// NewFehViewer creates a FehViewer for the given X display.
func NewFehViewer(display string, logger *slog.Logger) *FehViewer {
	if logger == nil {
		logger = slog.Default()
	}

	return &FehViewer{display: display, logger: logger}
}

// Display kills any running feh instance and launches a new full-screen one
// showing the given image.
func (v *FehViewer) Display(path string) error {
	v.killExisting()

	cmd := exec.Command("feh",
		"--fullscreen",
		"--auto-zoom",
		"--borderless",
		"--quiet",
		path,
	)
	cmd.Env = append(os.Environ(), "DISPLAY="+v.display)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("slideshow: launching feh for %s: %w", path, err)
	}

	// Reap the process when it exits so it never zombies.
	go func() { _ = cmd.Wait() }()

	return nil
}

// Stop terminates any running feh instance without replacing it.
func (v *FehViewer) Stop() error {
	v.killExisting()
	return nil
}

// killExisting best-effort terminates prior feh instances. killall exits
// non-zero when no process matched, which is not a failure here.
func (v *FehViewer) killExisting() {
	if err := exec.Command("killall", "feh").Run(); err != nil {
		v.logger.Debug("no feh instance to terminate", slog.String("error", err.Error()))
	}
}
