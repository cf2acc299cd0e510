package stats

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Stats is a point-in-time view of the overlay counters
type Stats struct {
	PeriodicSpawned int `json:"periodic_spawned"`
	BurstSpawned    int `json:"burst_spawned"`
	Dropped         int `json:"dropped"`
	Completed       int `json:"completed"`
	Discarded       int `json:"discarded"`
	Spikes          int `json:"spikes"`
	Bursts          int `json:"bursts"`
	Active          int `json:"active"`
}

// Counters accumulates overlay statistics for the lifetime of the process.
// The scheduler writes, D-Bus and the UI read, so access is serialised.
type Counters struct {
	stats Stats
	mu    sync.Mutex
}

func New() *Counters {
	return &Counters{}
}

func (c *Counters) AddPeriodic() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.PeriodicSpawned++
	c.stats.Active++
}

// AddBurst records one burst of n comments
func (c *Counters) AddBurst(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Bursts++
	c.stats.BurstSpawned += n
	c.stats.Active += n
}

func (c *Counters) AddDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Dropped++
}

func (c *Counters) AddSpike() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Spikes++
}

// AddCompleted records n comments leaving the screen
func (c *Counters) AddCompleted(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Completed += n
	c.stats.Active -= n
	if c.stats.Active < 0 {
		c.stats.Active = 0
	}
}

// AddDiscarded records n comments dropped at shutdown before finishing
func (c *Counters) AddDiscarded(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Discarded += n
	c.stats.Active -= n
	if c.stats.Active < 0 {
		c.stats.Active = 0
	}
}

// GetStats returns a copy of the current counters
func (c *Counters) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// GetStatsJSON returns statistics as a JSON string (for D-Bus)
func (c *Counters) GetStatsJSON() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(c.stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}

	return string(data), nil
}

// Reset clears all counters. Active is a gauge of what is on screen and
// survives the reset.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{Active: c.stats.Active}
}
