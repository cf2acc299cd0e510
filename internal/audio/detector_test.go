package audio

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDetector(onSpike func()) (*Detector, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := NewDetector(&fakeStream{}, DefaultDetectorConfig(), onSpike, WithClock(clock.Now))
	return d, clock
}

type fakeStream struct {
	mu       sync.Mutex
	openErr  error
	closeErr error
	onFrame  func([]float32)
	opened   int
	closed   int
}

func (s *fakeStream) Open(onFrame func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened++
	s.onFrame = onFrame
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func (s *fakeStream) push(frame []float32) {
	s.mu.Lock()
	fn := s.onFrame
	s.mu.Unlock()
	fn(frame)
}

func TestQuietHistoryThenLoudSamples(t *testing.T) {
	spikes := 0
	d, clock := newTestDetector(func() { spikes++ })

	for i := 0; i < 30; i++ {
		assert.False(t, d.ProcessVolume(0.001))
	}
	assert.Equal(t, 0, spikes)

	// One 0.2 sample against 29 quiet ones averages below the floor; the
	// second lifts the average over 0.01 and fires.
	firedAt := -1
	for i := 0; i < 40; i++ {
		if d.ProcessVolume(0.2) {
			if firedAt < 0 {
				firedAt = i
			}
		}
	}
	assert.Equal(t, 1, firedAt)
	assert.Equal(t, 1, spikes)

	clock.Advance(499 * time.Millisecond)
	assert.False(t, d.ProcessVolume(0.2))
	assert.Equal(t, 1, spikes)

	clock.Advance(time.Millisecond)
	assert.True(t, d.ProcessVolume(0.2))
	assert.Equal(t, 2, spikes)
}

func TestNoSpikeBelowNoiseFloor(t *testing.T) {
	spikes := 0
	d, clock := newTestDetector(func() { spikes++ })

	for i := 0; i < 100; i++ {
		clock.Advance(time.Second)
		d.ProcessVolume(0)
	}
	// a single loud frame is averaged against silence: 0.25/30 < 0.01
	clock.Advance(time.Second)
	assert.False(t, d.ProcessVolume(0.25))
	assert.Equal(t, 0, spikes)

	volume, avg := d.Levels()
	assert.InDelta(t, 0.25, volume, 1e-12)
	assert.Less(t, avg, 0.01)
}

func TestNoSpikeBelowThreshold(t *testing.T) {
	spikes := 0
	d, clock := newTestDetector(func() { spikes++ })

	for i := 0; i < 60; i++ {
		clock.Advance(time.Second)
		d.ProcessVolume(0.05)
	}
	assert.Equal(t, 0, spikes, "threshold comparison is strict")
}

func TestSpikesRespectCooldown(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))

	var times []time.Time
	var d *Detector
	var clock *fakeClock
	d, clock = newTestDetector(func() { times = append(times, clock.Now()) })

	for i := 0; i < 5000; i++ {
		clock.Advance(time.Duration(r.IntN(60)) * time.Millisecond)
		d.ProcessVolume(r.Float64() * 0.3)
	}

	require.NotEmpty(t, times)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 500*time.Millisecond)
	}
	assert.Equal(t, int64(len(times)), d.Spikes())
	assert.Equal(t, int64(5000), d.Frames())
}

func TestProcessFrameComputesRMS(t *testing.T) {
	spikes := 0
	d, _ := newTestDetector(func() { spikes++ })

	loud := []float32{0.5, -0.5, 0.5, -0.5}
	assert.True(t, d.ProcessFrame(loud))
	assert.Equal(t, 1, spikes)

	volume, avg := d.Levels()
	assert.InDelta(t, 0.5, volume, 1e-6)
	assert.InDelta(t, 0.5, avg, 1e-6)
}

func TestStartDeviceUnavailable(t *testing.T) {
	stream := &fakeStream{openErr: errors.New("no such device")}
	d := NewDetector(stream, DefaultDetectorConfig(), nil)

	err := d.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "no such device")

	assert.NoError(t, d.Stop())
	assert.Equal(t, 0, stream.closed)
}

func TestStartStopReleasesStream(t *testing.T) {
	stream := &fakeStream{}
	spikes := make(chan struct{}, 4)
	d := NewDetector(stream, DefaultDetectorConfig(), func() { spikes <- struct{}{} })

	require.NoError(t, d.Start())
	assert.Equal(t, 1, stream.opened)

	stream.push([]float32{0.5, -0.5})
	select {
	case <-spikes:
	case <-time.After(time.Second):
		t.Fatal("expected spike from loud frame")
	}

	start := time.Now()
	require.NoError(t, d.Stop())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 1, stream.closed)

	// frames arriving after stop are ignored
	stream.push([]float32{0.5, -0.5})
	assert.Equal(t, int64(1), d.Frames())

	assert.NoError(t, d.Stop())
	assert.Equal(t, 1, stream.closed)
}

func TestStopReportsCloseError(t *testing.T) {
	stream := &fakeStream{closeErr: errors.New("device lost")}
	d := NewDetector(stream, DefaultDetectorConfig(), nil)

	require.NoError(t, d.Start())
	err := d.Stop()
	assert.ErrorIs(t, err, ErrStream)
	assert.NoError(t, d.Stop())
}

func TestListenerPanicIsContained(t *testing.T) {
	stream := &fakeStream{}
	d := NewDetector(stream, DefaultDetectorConfig(), func() { panic("listener exploded") })

	require.NoError(t, d.Start())
	defer d.Stop()

	assert.NotPanics(t, func() {
		stream.push([]float32{0.5, -0.5})
	})
	assert.Equal(t, int64(1), d.Spikes())
}

func TestMeterFollowsInput(t *testing.T) {
	d, _ := newTestDetector(nil)
	assert.Zero(t, d.Meter())

	for range 10 {
		d.ProcessVolume(0.3)
	}
	assert.Greater(t, d.Meter(), 0.9)
}
