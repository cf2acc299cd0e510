package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/dooshek/nicoverlay/internal/types"
)

var (
	// ErrDeviceUnavailable is returned by Start when the input cannot be opened
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrStream wraps failures of an already opened stream
	ErrStream = errors.New("audio stream error")
)

// sleepSlice bounds how long Stop waits for the capture loop to notice
const sleepSlice = 50 * time.Millisecond

// Stream delivers fixed-size mono frames to a callback until closed.
type Stream interface {
	Open(onFrame func(frame []float32)) error
	Close() error
}

type DetectorConfig struct {
	Threshold float64
	MinVolume float64
	Window    int
	Cooldown  time.Duration
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfigFrom(types.DefaultConfig().Audio)
}

func DetectorConfigFrom(a types.AudioConfig) DetectorConfig {
	return DetectorConfig{
		Threshold: a.Threshold,
		MinVolume: a.MinVolume,
		Window:    a.Window,
		Cooldown:  a.Cooldown,
	}
}

// Detector watches an audio stream and calls onSpike, at most once per
// cooldown, when the rolling average is above the noise floor and the
// current frame is louder than the threshold.
//
// Frames are processed on the stream's own goroutine. onSpike must not block;
// consumers hand the event over to their own goroutine.
type Detector struct {
	stream  Stream
	cfg     DetectorConfig
	onSpike func()
	now     func() time.Time

	window    *RollingWindow
	meter     *LevelMeter
	lastSpike time.Time
	hasSpiked bool

	volume atomic.Uint64 // float64 bits
	avg    atomic.Uint64
	frames atomic.Int64
	spikes atomic.Int64

	running  atomic.Bool
	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// DetectorOption customises a Detector
type DetectorOption func(*Detector)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

func NewDetector(stream Stream, cfg DetectorConfig, onSpike func(), opts ...DetectorOption) *Detector {
	if onSpike == nil {
		onSpike = func() {}
	}
	d := &Detector{
		stream:  stream,
		cfg:     cfg,
		onSpike: onSpike,
		now:     time.Now,
		window:  NewRollingWindow(cfg.Window),
		meter:   NewLevelMeter(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start opens the stream and begins sampling in the background. A failure to
// open is reported as ErrDeviceUnavailable; there is no retry.
func (d *Detector) Start() error {
	d.running.Store(true)
	if err := d.stream.Open(d.handleFrame); err != nil {
		d.running.Store(false)
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	d.started.Store(true)

	go d.run()

	logger.Infof("🎙️  Listening for volume spikes (threshold %.3f, floor %.3f, cooldown %v)",
		d.cfg.Threshold, d.cfg.MinVolume, d.cfg.Cooldown)
	return nil
}

func (d *Detector) run() {
	defer close(d.done)
	for d.running.Load() {
		time.Sleep(sleepSlice)
	}
}

// Stop ends sampling and releases the stream. It waits at most one sleep
// slice for the capture loop and is safe to call repeatedly or before Start.
func (d *Detector) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.running.Store(false)
		if !d.started.Load() {
			return
		}
		<-d.done
		if cerr := d.stream.Close(); cerr != nil {
			err = fmt.Errorf("%w: %w", ErrStream, cerr)
			logger.Error("Failed to close audio stream", err)
			return
		}
		logger.Debugf("Audio stream closed after %d frames, %d spikes", d.frames.Load(), d.spikes.Load())
	})
	return err
}

func (d *Detector) handleFrame(frame []float32) {
	if !d.running.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in audio callback", fmt.Errorf("%v", r))
		}
	}()
	d.ProcessFrame(frame)
}

// ProcessFrame folds one frame into the detector and reports whether a spike
// was emitted. Calls must not overlap.
func (d *Detector) ProcessFrame(frame []float32) bool {
	return d.ProcessVolume(RMS(frame))
}

// ProcessVolume is ProcessFrame for an already computed RMS value.
func (d *Detector) ProcessVolume(volume float64) bool {
	d.frames.Add(1)
	d.window.Push(volume)
	avg := d.window.Average()

	d.volume.Store(math.Float64bits(volume))
	d.avg.Store(math.Float64bits(avg))
	d.meter.Observe(volume)

	if avg < d.cfg.MinVolume {
		return false
	}

	now := d.now()
	if volume > d.cfg.Threshold && (!d.hasSpiked || now.Sub(d.lastSpike) >= d.cfg.Cooldown) {
		d.lastSpike = now
		d.hasSpiked = true
		d.spikes.Add(1)
		d.onSpike()
		return true
	}
	return false
}

// Levels returns the last frame volume and rolling average
func (d *Detector) Levels() (volume, average float64) {
	return math.Float64frombits(d.volume.Load()), math.Float64frombits(d.avg.Load())
}

// Meter returns the auto-ranged input level in [0,1]
func (d *Detector) Meter() float64 { return d.meter.Level() }

func (d *Detector) Spikes() int64 { return d.spikes.Load() }

func (d *Detector) Frames() int64 { return d.frames.Load() }
