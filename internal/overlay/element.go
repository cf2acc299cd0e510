package overlay

import (
	"time"

	"github.com/mattn/go-runewidth"
)

// State is the lifecycle stage of an Element
type State int

const (
	StateSpawned State = iota
	StateAnimating
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateAnimating:
		return "animating"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Geometry is the size of the drawing surface. Cells is set for character
// grids, where text is measured in cells instead of font units.
type Geometry struct {
	Width  int
	Height int
	Cells  bool
}

// Element is one comment crossing the screen from StartX to EndX at a
// constant speed on row Y.
type Element struct {
	ID       string
	Text     string
	FontSize int
	Y        int
	StartX   int
	EndX     int
	Duration time.Duration
	Burst    bool
	State    State
}

// Position returns the element's x coordinate after elapsed time and whether
// the traversal is finished.
func (e Element) Position(elapsed time.Duration) (x int, finished bool) {
	if elapsed <= 0 {
		return e.StartX, false
	}
	if e.Duration <= 0 || elapsed >= e.Duration {
		return e.EndX, true
	}
	progress := float64(elapsed) / float64(e.Duration)
	return e.StartX + int(float64(e.EndX-e.StartX)*progress), false
}

// textExtent estimates how wide text is drawn. A half-width glyph is about
// half the font size wide, a full-width glyph about the whole font size.
func textExtent(text string, fontSize int, geo Geometry) int {
	cells := runewidth.StringWidth(text)
	if geo.Cells {
		return cells
	}
	return (cells*fontSize + 1) / 2
}
