package slideshow

import (
	"fmt"
	"os"
	"os/exec"
)

// X11Display controls the physical display's power state through DPMS.
type X11Display struct {
	display string
}

// NewX11Display creates a display controller for the given X display.
func NewX11Display(display string) *X11Display {
	return &X11Display{display: display}
}

// Power forces the display on or off via xset.
func (d *X11Display) Power(on bool) error {
	state := "off"
	if on {
		state = "on"
	}

	cmd := exec.Command("xset", "dpms", "force", state)
	cmd.Env = append(os.Environ(), "DISPLAY="+d.display)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("slideshow: forcing display %s: %w", state, err)
	}

	return nil
}
