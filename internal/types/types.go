package types

import (
	"fmt"
	"time"
)

// AudioConfig holds the spike detector settings
type AudioConfig struct {
	Threshold float64       // instantaneous RMS that counts as a spike
	MinVolume float64       // rolling average below this is treated as silence
	Window    int           // rolling window capacity in frames
	Cooldown  time.Duration // minimum gap between two spikes
	InputFile string        // replay a WAV file instead of the capture device
	Loop      bool          // loop the WAV file
}

// OverlayConfig holds the comment scheduler settings
type OverlayConfig struct {
	Cap                int           // concurrent periodic comments
	IntervalMin        time.Duration // spawn interval lower bound
	IntervalMax        time.Duration // spawn interval upper bound
	IntervalRefresh    time.Duration // how often the spawn interval is redrawn
	DurationMin        time.Duration // periodic traversal time bounds
	DurationMax        time.Duration
	BurstDurationMin   time.Duration // burst traversal time bounds
	BurstDurationMax   time.Duration
	BurstCountMin      int
	BurstCountMax      int
	FontSizeMin        int
	FontSizeMax        int
	VerticalMarginFrac float64 // fraction of the screen height kept free at top and bottom
}

type Config struct {
	Audio    AudioConfig
	Overlay  OverlayConfig
	Headless bool
	DBus     bool
	Quiet    bool
	Hotkey   string // global burst key such as "ctrl+alt+b", empty to disable
}

// DefaultConfig returns the stock overlay behaviour
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			Threshold: 0.05,
			MinVolume: 0.01,
			Window:    30,
			Cooldown:  500 * time.Millisecond,
		},
		Overlay: OverlayConfig{
			Cap:                20,
			IntervalMin:        500 * time.Millisecond,
			IntervalMax:        1500 * time.Millisecond,
			IntervalRefresh:    5000 * time.Millisecond,
			DurationMin:        8000 * time.Millisecond,
			DurationMax:        12000 * time.Millisecond,
			BurstDurationMin:   4000 * time.Millisecond,
			BurstDurationMax:   8000 * time.Millisecond,
			BurstCountMin:      3,
			BurstCountMax:      7,
			FontSizeMin:        12,
			FontSizeMax:        32,
			VerticalMarginFrac: 0.1,
		},
		DBus: true,
	}
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	a, o := c.Audio, c.Overlay
	switch {
	case a.Threshold <= 0:
		return fmt.Errorf("threshold must be positive, got %v", a.Threshold)
	case a.MinVolume < 0:
		return fmt.Errorf("min volume must not be negative, got %v", a.MinVolume)
	case a.Window < 1:
		return fmt.Errorf("window must hold at least one frame, got %d", a.Window)
	case a.Cooldown < 0:
		return fmt.Errorf("cooldown must not be negative, got %v", a.Cooldown)
	case o.Cap < 0:
		return fmt.Errorf("cap must not be negative, got %d", o.Cap)
	case o.IntervalMin <= 0 || o.IntervalMax < o.IntervalMin:
		return fmt.Errorf("invalid spawn interval range [%v, %v]", o.IntervalMin, o.IntervalMax)
	case o.IntervalRefresh <= 0:
		return fmt.Errorf("interval refresh must be positive, got %v", o.IntervalRefresh)
	case o.DurationMin <= 0 || o.DurationMax < o.DurationMin:
		return fmt.Errorf("invalid duration range [%v, %v]", o.DurationMin, o.DurationMax)
	case o.BurstDurationMin <= 0 || o.BurstDurationMax < o.BurstDurationMin:
		return fmt.Errorf("invalid burst duration range [%v, %v]", o.BurstDurationMin, o.BurstDurationMax)
	case o.BurstCountMin < 0 || o.BurstCountMax < o.BurstCountMin:
		return fmt.Errorf("invalid burst count range [%d, %d]", o.BurstCountMin, o.BurstCountMax)
	case o.FontSizeMin <= 0 || o.FontSizeMax < o.FontSizeMin:
		return fmt.Errorf("invalid font size range [%d, %d]", o.FontSizeMin, o.FontSizeMax)
	case o.VerticalMarginFrac < 0 || o.VerticalMarginFrac >= 0.5:
		return fmt.Errorf("vertical margin must be in [0, 0.5), got %v", o.VerticalMarginFrac)
	}
	return nil
}
