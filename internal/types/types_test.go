package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.DBus)
	assert.Equal(t, 20, cfg.Overlay.Cap)
	assert.Equal(t, 500*time.Millisecond, cfg.Audio.Cooldown)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Audio.Threshold = 0 }},
		{"negative floor", func(c *Config) { c.Audio.MinVolume = -0.1 }},
		{"empty window", func(c *Config) { c.Audio.Window = 0 }},
		{"negative cooldown", func(c *Config) { c.Audio.Cooldown = -time.Second }},
		{"negative cap", func(c *Config) { c.Overlay.Cap = -1 }},
		{"inverted interval", func(c *Config) { c.Overlay.IntervalMax = c.Overlay.IntervalMin - time.Millisecond }},
		{"zero refresh", func(c *Config) { c.Overlay.IntervalRefresh = 0 }},
		{"inverted duration", func(c *Config) { c.Overlay.DurationMin = c.Overlay.DurationMax + time.Second }},
		{"zero burst duration", func(c *Config) { c.Overlay.BurstDurationMin = 0 }},
		{"inverted burst count", func(c *Config) { c.Overlay.BurstCountMin = 9 }},
		{"zero font", func(c *Config) { c.Overlay.FontSizeMin = 0 }},
		{"margin too large", func(c *Config) { c.Overlay.VerticalMarginFrac = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsZeroCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overlay.Cap = 0
	assert.NoError(t, cfg.Validate(), "cap 0 leaves only bursts")
}
