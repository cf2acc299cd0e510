package audio

import "sync"

const (
	// Auto-range: recentMax decay per frame (~43 frames/s at 1024 samples)
	// 0.993^43 ≈ 0.74 per second
	levelDecay      = 0.993
	levelNoiseFloor = 0.01 // absolute noise floor (below = silence)
	levelSmoothing  = 0.4  // EMA alpha (higher = more responsive)
)

// LevelMeter turns frame volumes into a normalized [0,1] level for display.
// It auto-scales to the microphone by tracking the recent maximum.
type LevelMeter struct {
	mu        sync.Mutex
	recentMax float64
	smoothed  float64
}

func NewLevelMeter() *LevelMeter {
	return &LevelMeter{recentMax: levelNoiseFloor}
}

// Observe feeds one frame volume
func (lm *LevelMeter) Observe(volume float64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if volume > lm.recentMax {
		lm.recentMax = volume // instant attack
	} else {
		lm.recentMax *= levelDecay // slow release
	}
	if lm.recentMax < levelNoiseFloor {
		lm.recentMax = levelNoiseFloor
	}

	level := 0.0
	if volume > levelNoiseFloor {
		level = min(volume/lm.recentMax, 1.0)
	}

	lm.smoothed = levelSmoothing*level + (1-levelSmoothing)*lm.smoothed
}

// Level returns the smoothed level
func (lm *LevelMeter) Level() float64 {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.smoothed
}
