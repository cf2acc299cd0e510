package overlay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/nicoverlay/internal/corpus"
	"github.com/dooshek/nicoverlay/internal/stats"
	"github.com/dooshek/nicoverlay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	geo Geometry

	// when set, every added element is completed after this delay
	completeAfter time.Duration

	mu      sync.Mutex
	added   map[string]Element
	removed map[string]int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		geo:     Geometry{Width: 1920, Height: 1080},
		added:   make(map[string]Element),
		removed: make(map[string]int),
	}
}

func (r *fakeRenderer) Geometry() Geometry { return r.geo }

func (r *fakeRenderer) Add(el Element, done func(id string)) {
	r.mu.Lock()
	r.added[el.ID] = el
	r.mu.Unlock()

	if r.completeAfter > 0 {
		time.AfterFunc(r.completeAfter, func() { done(el.ID) })
	}
}

func (r *fakeRenderer) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed[id]++
}

func (r *fakeRenderer) counts() (added, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.added), len(r.removed)
}

func testCorpora(t *testing.T) (*corpus.Corpus, *corpus.Corpus) {
	t.Helper()
	regular, err := corpus.Regular()
	require.NoError(t, err)
	burst, err := corpus.Burst()
	require.NoError(t, err)
	return regular, burst
}

func newTestScheduler(t *testing.T, r *fakeRenderer, cfg types.OverlayConfig, opts ...Option) *Scheduler {
	t.Helper()
	regular, burst := testCorpora(t)
	seq := 0
	opts = append([]Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithIDs(func() string { seq++; return fmt.Sprintf("el-%d", seq) }),
	}, opts...)
	return NewScheduler(r, cfg, regular, burst, opts...)
}

func TestSpawnPeriodicRespectsCap(t *testing.T) {
	r := newFakeRenderer()
	counters := stats.New()
	s := newTestScheduler(t, r, types.DefaultConfig().Overlay, WithStats(counters))

	for i := 0; i < 25; i++ {
		s.spawnPeriodic()
		assert.LessOrEqual(t, len(s.active), 20)
	}

	assert.Len(t, s.active, 20)
	added, _ := r.counts()
	assert.Equal(t, 20, added)

	st := counters.GetStats()
	assert.Equal(t, 20, st.PeriodicSpawned)
	assert.Equal(t, 5, st.Dropped)
	assert.Equal(t, 20, st.Active)
}

func TestSpawnPeriodicElementBounds(t *testing.T) {
	r := newFakeRenderer()
	regular, _ := testCorpora(t)
	s := newTestScheduler(t, r, types.DefaultConfig().Overlay)

	for i := 0; i < 500; i++ {
		s.spawnPeriodic()
		require.Len(t, s.active, 1)

		var el *Element
		for _, e := range s.active {
			el = e
		}
		assert.True(t, regular.Contains(el.Text))
		assert.False(t, el.Burst)
		assert.Equal(t, StateAnimating, el.State)
		assert.GreaterOrEqual(t, el.FontSize, 12)
		assert.LessOrEqual(t, el.FontSize, 32)
		assert.GreaterOrEqual(t, el.Y, 108)
		assert.LessOrEqual(t, el.Y, 972)
		assert.Equal(t, 1920, el.StartX)
		assert.Less(t, el.EndX, 0)
		assert.GreaterOrEqual(t, el.Duration, 8000*time.Millisecond)
		assert.LessOrEqual(t, el.Duration, 12000*time.Millisecond)

		s.onAnimationComplete(el.ID)
		assert.Equal(t, StateCompleted, el.State)
	}
	assert.Empty(t, s.active)
}

func TestSpikeBurstBypassesCap(t *testing.T) {
	r := newFakeRenderer()
	_, burst := testCorpora(t)
	var hooked []int
	s := newTestScheduler(t, r, types.DefaultConfig().Overlay, WithBurstHook(func(n int) { hooked = append(hooked, n) }))

	for i := 0; i < 20; i++ {
		s.spawnPeriodic()
	}
	before := make(map[string]bool, len(s.active))
	for id := range s.active {
		before[id] = true
	}

	s.onSpikeEvent()

	n := len(s.active) - 20
	assert.GreaterOrEqual(t, n, 3)
	assert.LessOrEqual(t, n, 7)
	require.Len(t, hooked, 1)
	assert.Equal(t, n, hooked[0])

	for id, el := range s.active {
		if before[id] {
			continue
		}
		assert.True(t, el.Burst)
		assert.True(t, burst.Contains(el.Text))
		assert.GreaterOrEqual(t, el.Duration, 4000*time.Millisecond)
		assert.LessOrEqual(t, el.Duration, 8000*time.Millisecond)
	}

	// periodic spawns stay blocked while the burst is on screen
	s.spawnPeriodic()
	assert.Len(t, s.active, 20+n)
}

func TestBurstCountRange(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		r := newFakeRenderer()
		regular, burst := testCorpora(t)
		s := NewScheduler(r, types.DefaultConfig().Overlay, regular, burst,
			WithRand(rand.New(rand.NewPCG(uint64(i), 99))))
		s.onSpikeEvent()
		n := len(s.active)
		require.GreaterOrEqual(t, n, 3)
		require.LessOrEqual(t, n, 7)
		seen[n] = true
	}
	assert.Len(t, seen, 5)
}

func TestAnimationCompleteIsIdempotent(t *testing.T) {
	r := newFakeRenderer()
	s := newTestScheduler(t, r, types.DefaultConfig().Overlay)

	s.spawnPeriodic()
	require.Len(t, s.active, 1)
	var id string
	for k := range s.active {
		id = k
	}

	s.onAnimationComplete(id)
	s.onAnimationComplete(id)
	s.onAnimationComplete("never-spawned")

	assert.Empty(t, s.active)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 1, r.removed[id])
	assert.NotContains(t, r.removed, "never-spawned")
}

func TestRandomizeIntervalRange(t *testing.T) {
	s := newTestScheduler(t, newFakeRenderer(), types.DefaultConfig().Overlay)
	for i := 0; i < 1000; i++ {
		s.randomizeInterval()
		require.GreaterOrEqual(t, s.interval, 500*time.Millisecond)
		require.LessOrEqual(t, s.interval, 1500*time.Millisecond)
	}
}

func TestNotifySpikeCoalesces(t *testing.T) {
	counters := stats.New()
	s := newTestScheduler(t, newFakeRenderer(), types.DefaultConfig().Overlay, WithStats(counters))

	s.NotifySpike()
	s.NotifySpike()

	assert.Len(t, s.spikes, 1)
	assert.Equal(t, 1, counters.GetStats().Spikes, "a merged spike is not counted twice")
}

func TestNotifySpikeIgnoredAfterShutdown(t *testing.T) {
	counters := stats.New()
	s := newTestScheduler(t, newFakeRenderer(), types.DefaultConfig().Overlay, WithStats(counters))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	s.NotifySpike()
	assert.Empty(t, s.spikes)
	assert.Zero(t, counters.GetStats().Spikes)
}

func TestResizeKeepsLatestGeometry(t *testing.T) {
	s := newTestScheduler(t, newFakeRenderer(), types.DefaultConfig().Overlay)

	s.Resize(Geometry{Width: 800, Height: 600})
	s.Resize(Geometry{Width: 100, Height: 40, Cells: true})
	s.applyResize()

	assert.Equal(t, Geometry{Width: 100, Height: 40, Cells: true}, s.geo)

	s.spawnPeriodic()
	for _, el := range s.active {
		assert.Equal(t, 100, el.StartX)
		assert.GreaterOrEqual(t, el.Y, 4)
		assert.LessOrEqual(t, el.Y, 36)
	}
}

func TestNoSpawnWithoutGeometry(t *testing.T) {
	r := newFakeRenderer()
	r.geo = Geometry{}
	s := newTestScheduler(t, r, types.DefaultConfig().Overlay)

	s.spawnPeriodic()
	s.onSpikeEvent()
	assert.Empty(t, s.active)
}

func fastConfig() types.OverlayConfig {
	cfg := types.DefaultConfig().Overlay
	cfg.IntervalMin = 2 * time.Millisecond
	cfg.IntervalMax = 5 * time.Millisecond
	cfg.IntervalRefresh = 20 * time.Millisecond
	return cfg
}

func TestRunCompletesEveryElement(t *testing.T) {
	r := newFakeRenderer()
	r.completeAfter = 15 * time.Millisecond
	counters := stats.New()
	s := newTestScheduler(t, r, fastConfig(), WithStats(counters))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	s.NotifySpike()
	require.Eventually(t, func() bool {
		st := counters.GetStats()
		return st.Completed >= 30 && st.Bursts == 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	select {
	case <-s.Done():
	default:
		t.Fatal("scheduler should be done after Run returns")
	}
	assert.Empty(t, s.active)

	added, removed := r.counts()
	assert.Equal(t, added, removed, "every element handed to the renderer is released")

	st := counters.GetStats()
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, st.PeriodicSpawned+st.BurstSpawned, st.Completed+st.Discarded)

	// late completions after shutdown must not block
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 2*completionBuffer; i++ {
			s.AnimationComplete("late")
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("AnimationComplete blocked after shutdown")
	}
}

func TestRunDiscardsInFlightOnShutdown(t *testing.T) {
	r := newFakeRenderer()
	counters := stats.New()
	s := newTestScheduler(t, r, fastConfig(), WithStats(counters))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return counters.GetStats().Dropped > 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	assert.Empty(t, s.active)
	added, removed := r.counts()
	assert.Equal(t, 20, added)
	assert.Equal(t, 20, removed)

	st := counters.GetStats()
	assert.Equal(t, 20, st.Discarded)
	assert.Equal(t, 0, st.Active)
}
