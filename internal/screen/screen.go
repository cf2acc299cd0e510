// Package screen queries the desktop the overlay is drawn on.
package screen

import (
	"errors"
	"os"
	"runtime"

	"github.com/dooshek/nicoverlay/internal/overlay"
	"github.com/go-vgo/robotgo"
)

// ErrNoDisplay is returned when no screen size can be determined
var ErrNoDisplay = errors.New("no display available")

// Primary returns the size of the primary screen in pixels
func Primary() (overlay.Geometry, error) {
	return primary(robotgo.GetScreenSize)
}

func primary(size func() (int, int)) (overlay.Geometry, error) {
	w, h := size()
	if w <= 0 || h <= 0 {
		return overlay.Geometry{}, ErrNoDisplay
	}
	return overlay.Geometry{Width: w, Height: h}, nil
}

// PrimaryOr returns the primary screen size, or fallback when there is no display
func PrimaryOr(fallback overlay.Geometry) overlay.Geometry {
	if !hasDisplay() {
		return fallback
	}
	geo, err := Primary()
	if err != nil {
		return fallback
	}
	return geo
}

// hasDisplay avoids calling into X11 on a linux box without a session.
func hasDisplay() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
