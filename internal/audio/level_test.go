package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelMeterSilence(t *testing.T) {
	lm := NewLevelMeter()
	for range 100 {
		lm.Observe(0.005)
	}
	assert.Zero(t, lm.Level())
}

func TestLevelMeterSustainedTone(t *testing.T) {
	lm := NewLevelMeter()
	for range 20 {
		lm.Observe(0.5)
	}
	assert.Greater(t, lm.Level(), 0.99)
	assert.LessOrEqual(t, lm.Level(), 1.0)
}

func TestLevelMeterAutoRange(t *testing.T) {
	lm := NewLevelMeter()
	lm.Observe(0.8)
	for range 20 {
		lm.Observe(0.2)
	}
	// relative to the recent 0.8 peak, not the absolute scale
	assert.Greater(t, lm.Level(), 0.2)
	assert.Less(t, lm.Level(), 0.4)

	for range 20 {
		lm.Observe(0)
	}
	assert.Less(t, lm.Level(), 0.01)
}
