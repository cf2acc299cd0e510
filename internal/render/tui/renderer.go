// Package tui draws the comment overlay in a full-screen terminal.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dooshek/nicoverlay/internal/overlay"
	"github.com/dooshek/nicoverlay/internal/stats"
)

// Renderer implements overlay.Renderer on top of a bubbletea program. The
// scheduler's Add and Remove calls are delivered to the program as messages,
// so all drawing state lives on the program goroutine.
type Renderer struct {
	program *tea.Program

	mu  sync.Mutex
	geo overlay.Geometry

	onResize func(overlay.Geometry)
	onBurst  func()
	levels   func() (volume, average float64)
	meter    func() float64
	counters *stats.Counters
}

// Option customises a Renderer
type Option func(*Renderer)

// WithResizeHandler is called with the new drawing area on every terminal resize
func WithResizeHandler(fn func(overlay.Geometry)) Option {
	return func(r *Renderer) {
		r.onResize = fn
	}
}

// WithBurstKey is called when the user presses the manual burst key
func WithBurstKey(fn func()) Option {
	return func(r *Renderer) {
		r.onBurst = fn
	}
}

// WithLevels feeds the status line volume meter
func WithLevels(fn func() (volume, average float64)) Option {
	return func(r *Renderer) {
		r.levels = fn
	}
}

// WithMeter draws an input level bar in the status line
func WithMeter(fn func() float64) Option {
	return func(r *Renderer) {
		r.meter = fn
	}
}

// WithStats shows the overlay counters in the status line
func WithStats(c *stats.Counters) Option {
	return func(r *Renderer) {
		r.counters = c
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	r.program = tea.NewProgram(newModel(r), tea.WithAltScreen())
	return r
}

// Run blocks until the user quits or ctx is cancelled
func (r *Renderer) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, r.program.Quit)
	defer stop()

	_, err := r.program.Run()
	return err
}

// Geometry is zero until the terminal reports its size
func (r *Renderer) Geometry() overlay.Geometry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.geo
}

func (r *Renderer) Add(el overlay.Element, done func(id string)) {
	r.program.Send(addMsg{el: el, done: done})
}

func (r *Renderer) Remove(id string) {
	r.program.Send(removeMsg{id: id})
}

func (r *Renderer) setGeometry(geo overlay.Geometry) {
	r.mu.Lock()
	r.geo = geo
	r.mu.Unlock()

	if r.onResize != nil {
		r.onResize(geo)
	}
}
