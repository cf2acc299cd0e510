// Package overlay schedules the comments that drift across the screen.
//
// A Scheduler owns the set of live elements and is the only goroutine that
// touches it. Spike notifications from the audio thread, completion reports
// from the renderer and resizes are handed over through channels and applied
// inside Run.
package overlay

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dooshek/nicoverlay/internal/corpus"
	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/dooshek/nicoverlay/internal/stats"
	"github.com/dooshek/nicoverlay/internal/types"
	"github.com/google/uuid"
)

const completionBuffer = 64

type Scheduler struct {
	renderer Renderer
	cfg      types.OverlayConfig
	regular  *corpus.Corpus
	burst    *corpus.Corpus
	rng      *rand.Rand
	counters *stats.Counters
	onBurst  func(n int)
	newID    func() string

	// owned by the Run goroutine
	geo      Geometry
	active   map[string]*Element
	interval time.Duration

	spikes      chan struct{}
	completions chan string
	resized     chan struct{}
	done        chan struct{}
	doneOnce    sync.Once

	mu         sync.Mutex
	pendingGeo *Geometry
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithRand sets the random source, for reproducible runs
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = r
	}
}

// WithStats records spawns, drops and completions into c
func WithStats(c *stats.Counters) Option {
	return func(s *Scheduler) {
		s.counters = c
	}
}

// WithBurstHook is called on the scheduler goroutine after each burst with
// the number of comments spawned. It must not block.
func WithBurstHook(fn func(n int)) Option {
	return func(s *Scheduler) {
		s.onBurst = fn
	}
}

// WithIDs replaces the element ID generator
func WithIDs(fn func() string) Option {
	return func(s *Scheduler) {
		s.newID = fn
	}
}

func NewScheduler(renderer Renderer, cfg types.OverlayConfig, regular, burst *corpus.Corpus, opts ...Option) *Scheduler {
	s := &Scheduler{
		renderer:    renderer,
		cfg:         cfg,
		regular:     regular,
		burst:       burst,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		counters:    stats.New(),
		newID:       uuid.NewString,
		active:      make(map[string]*Element),
		spikes:      make(chan struct{}, 1),
		completions: make(chan string, completionBuffer),
		resized:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.geo = renderer.Geometry()
	s.interval = s.randomInterval()
	return s
}

// Run drives spawning until ctx is cancelled, then discards every live
// element. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	spawn := time.NewTicker(s.interval)
	defer spawn.Stop()
	refresh := time.NewTicker(s.cfg.IntervalRefresh)
	defer refresh.Stop()
	defer s.shutdown()

	logger.Infof("💬 Comment scheduler running (%dx%d, cap %d, interval %v)",
		s.geo.Width, s.geo.Height, s.cfg.Cap, s.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-spawn.C:
			s.spawnPeriodic()
		case <-refresh.C:
			s.randomizeInterval()
			spawn.Reset(s.interval)
		case <-s.spikes:
			s.onSpikeEvent()
		case id := <-s.completions:
			s.onAnimationComplete(id)
		case <-s.resized:
			s.applyResize()
		}
	}
}

// NotifySpike asks for a burst. It never blocks; a spike arriving while
// another is still pending is merged into it, and spikes after shutdown are
// ignored. Only spikes that were queued are counted.
func (s *Scheduler) NotifySpike() {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.spikes <- struct{}{}:
		s.counters.AddSpike()
	default:
	}
}

// AnimationComplete reports that the element has reached the end of its
// traversal. It is safe to call from any goroutine, more than once, and after
// the scheduler has stopped.
func (s *Scheduler) AnimationComplete(id string) {
	select {
	case s.completions <- id:
	case <-s.done:
	}
}

// Resize updates the screen geometry used for new elements. It never blocks;
// only the latest geometry is applied.
func (s *Scheduler) Resize(geo Geometry) {
	s.mu.Lock()
	s.pendingGeo = &geo
	s.mu.Unlock()

	select {
	case s.resized <- struct{}{}:
	default:
	}
}

// Stats returns the shared counters
func (s *Scheduler) Stats() *stats.Counters {
	return s.counters
}

// Done is closed once the scheduler has shut down
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) applyResize() {
	s.mu.Lock()
	geo := s.pendingGeo
	s.pendingGeo = nil
	s.mu.Unlock()

	if geo != nil && *geo != s.geo {
		logger.Debugf("Overlay resized to %dx%d", geo.Width, geo.Height)
		s.geo = *geo
	}
}

func (s *Scheduler) spawnPeriodic() {
	if len(s.active) >= s.cfg.Cap {
		s.counters.AddDropped()
		return
	}
	if !s.ready() {
		return
	}

	el := s.newElement(s.regular.Pick(s.rng), s.cfg.DurationMin, s.cfg.DurationMax, false)
	s.start(el)
	s.counters.AddPeriodic()
}

// onSpikeEvent spawns a burst. Bursts ignore the cap, so the set can grow
// past it until the burst comments leave the screen.
func (s *Scheduler) onSpikeEvent() {
	if !s.ready() {
		return
	}

	n := randInt(s.rng, s.cfg.BurstCountMin, s.cfg.BurstCountMax)
	for i := 0; i < n; i++ {
		el := s.newElement(s.burst.Pick(s.rng), s.cfg.BurstDurationMin, s.cfg.BurstDurationMax, true)
		s.start(el)
	}
	s.counters.AddBurst(n)
	logger.Debugf("Burst of %d comments, %d on screen", n, len(s.active))

	if s.onBurst != nil {
		s.onBurst(n)
	}
}

func (s *Scheduler) onAnimationComplete(id string) {
	el, ok := s.active[id]
	if !ok {
		return
	}
	delete(s.active, id)
	el.State = StateCompleted
	s.renderer.Remove(id)
	s.counters.AddCompleted(1)
}

func (s *Scheduler) randomizeInterval() {
	s.interval = s.randomInterval()
}

func (s *Scheduler) randomInterval() time.Duration {
	return randDuration(s.rng, s.cfg.IntervalMin, s.cfg.IntervalMax)
}

func (s *Scheduler) ready() bool {
	return s.geo.Width > 0 && s.geo.Height > 0
}

func (s *Scheduler) newElement(text string, minDur, maxDur time.Duration, burst bool) Element {
	fontSize := randInt(s.rng, s.cfg.FontSizeMin, s.cfg.FontSizeMax)
	h := float64(s.geo.Height)
	top := int(h * s.cfg.VerticalMarginFrac)
	bottom := int(h * (1 - s.cfg.VerticalMarginFrac))

	return Element{
		ID:       s.newID(),
		Text:     text,
		FontSize: fontSize,
		Y:        randInt(s.rng, top, bottom),
		StartX:   s.geo.Width,
		EndX:     -textExtent(text, fontSize, s.geo),
		Duration: randDuration(s.rng, minDur, maxDur),
		Burst:    burst,
		State:    StateSpawned,
	}
}

func (s *Scheduler) start(el Element) {
	el.State = StateAnimating
	s.active[el.ID] = &el
	s.renderer.Add(el, s.AnimationComplete)
}

// shutdown discards every live element. Completions reported afterwards are
// dropped by AnimationComplete.
func (s *Scheduler) shutdown() {
	s.doneOnce.Do(func() { close(s.done) })

	n := len(s.active)
	for id, el := range s.active {
		s.renderer.Remove(id)
		el.State = StateCompleted
		delete(s.active, id)
	}
	s.counters.AddDiscarded(n)
	logger.Infof("💬 Comment scheduler stopped, discarded %d comment(s)", n)
}

// randInt returns a uniform integer in [lo, hi]
func randInt(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// randDuration returns a uniform whole-millisecond duration in [lo, hi]
func randDuration(r *rand.Rand, lo, hi time.Duration) time.Duration {
	ms := randInt(r, int(lo/time.Millisecond), int(hi/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}
