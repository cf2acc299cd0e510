// Package headless renders comments into the log instead of onto a screen.
// Each element finishes after its duration elapses.
package headless

import (
	"sync"
	"time"

	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/dooshek/nicoverlay/internal/overlay"
)

type Renderer struct {
	geo overlay.Geometry

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(geo overlay.Geometry) *Renderer {
	return &Renderer{
		geo:    geo,
		timers: make(map[string]*time.Timer),
	}
}

func (r *Renderer) Geometry() overlay.Geometry {
	return r.geo
}

func (r *Renderer) Add(el overlay.Element, done func(id string)) {
	logger.Component("headless").Debug().
		Str("id", el.ID).
		Str("text", el.Text).
		Int("font_size", el.FontSize).
		Int("y", el.Y).
		Int("start_x", el.StartX).
		Int("end_x", el.EndX).
		Dur("duration", el.Duration).
		Bool("burst", el.Burst).
		Msg("comment added")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[el.ID] = time.AfterFunc(el.Duration, func() {
		r.mu.Lock()
		delete(r.timers, el.ID)
		r.mu.Unlock()
		done(el.ID)
	})
}

// Remove cancels the element's timer if it has not fired yet
func (r *Renderer) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	logger.Component("headless").Debug().Str("id", id).Msg("comment removed")
}

// Active returns the number of elements still travelling
func (r *Renderer) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
