package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/daysim/internal/timecode"
)

// TickMinutes is how far one tick advances the simulated clock.
const TickMinutes = 15

// ErrOutOfRange is returned for a start or scrub minute outside [0, 1440].
var ErrOutOfRange = errors.New("minute out of range")

// Reading is a consistent view of the clock at one instant.
type Reading struct {
	Minute  int    `json:"minute"`
	Running bool   `json:"running"`
	Epoch   uint64 `json:"epoch"`
}

// Time renders the reading's minute as HH:MM.
func (r Reading) Time() string {
	return timecode.Format(r.Minute)
}

// Terminal reports whether the day has ended.
func (r Reading) Terminal() bool {
	return r.Minute >= timecode.MinutesPerDay
}

// Clock is the simulated minute-of-day with a Running/Stopped state.
//
// Every Start and Scrub bumps the epoch. A tick scheduled under an older
// epoch is discarded by TickEpoch, so a cancelled run can never advance the
// clock or resume auto-run.
type Clock struct {
	mu      sync.Mutex
	minute  int
	running bool
	epoch   uint64
}

// NewClock returns a stopped clock at 00:00.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current reading.
func (c *Clock) Now() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reading()
}

func (c *Clock) reading() Reading {
	return Reading{Minute: c.minute, Running: c.running, Epoch: c.epoch}
}

// Start enters Running(minute) and returns the new epoch. Starting at the
// end-of-day marker lands directly in the terminal Stopped(1440).
func (c *Clock) Start(minute int) (uint64, error) {
	if !timecode.Valid(minute) {
		return 0, fmt.Errorf("start %d: %w", minute, ErrOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.minute = minute
	c.running = minute < timecode.MinutesPerDay
	return c.epoch, nil
}

// Scrub moves to Stopped(minute) regardless of the prior state.
func (c *Clock) Scrub(minute int) error {
	if !timecode.Valid(minute) {
		return fmt.Errorf("scrub %d: %w", minute, ErrOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.minute = minute
	c.running = false
	return nil
}

// Stop halts auto-run at the current minute.
func (c *Clock) Stop() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.epoch++
		c.running = false
	}
	return c.reading()
}

// Tick advances a running clock by TickMinutes, clamping to 1440 and
// stopping at the day boundary. It reports whether the tick applied.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick()
}

// TickEpoch applies a tick only if the clock is still running under epoch.
func (c *Clock) TickEpoch(epoch uint64) (Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return c.reading(), false
	}
	applied := c.tick()
	return c.reading(), applied
}

func (c *Clock) tick() bool {
	if !c.running {
		return false
	}
	c.minute += TickMinutes
	if c.minute >= timecode.MinutesPerDay {
		c.minute = timecode.MinutesPerDay
		c.running = false
	}
	return true
}
