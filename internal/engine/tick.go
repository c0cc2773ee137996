// Package engine provides the simulation clock, the ticker that drives it,
// and the session that ties a clock to a population.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/daysim/internal/timecode"
)

// DefaultInterval is the wall-clock time between ticks at speed 1.
const DefaultInterval = time.Second

// MaxSpeed bounds the speed multiplier.
const MaxSpeed = 1000

// Engine is the single controller of a Clock. It schedules ticks on a
// goroutine while the clock runs and cancels them synchronously: once
// Start, Scrub or Stop returns, no tick from an earlier run can fire.
type Engine struct {
	Clock    *Clock
	Interval time.Duration // Base tick interval (default 1 second)

	// Callbacks run on the tick goroutine. They must not call back into
	// the Engine's control methods.
	OnTick   func(r Reading) // Every applied tick
	OnDayEnd func(r Reading) // Once when auto-run reaches 24:00

	ctl   sync.Mutex // Serializes Start/Scrub/Stop/SetSpeed
	speed float64    // Multiplier: 1.0 = one tick per Interval

	mu     sync.Mutex // Guards the active run
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine driving clock with default settings.
func NewEngine(clock *Clock) *Engine {
	return &Engine{
		Clock:    clock,
		Interval: DefaultInterval,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. A running clock keeps its minute
// and continues at the new rate.
func (e *Engine) SetSpeed(speed float64) error {
	if speed <= 0 || speed > MaxSpeed {
		return fmt.Errorf("speed must be in (0, %d], got %g", MaxSpeed, speed)
	}

	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.speed = speed
	e.halt()
	if r := e.Clock.Now(); r.Running {
		return e.launch(r.Minute)
	}
	return nil
}

// Start (re)enters auto-run at minute, cancelling any run in flight.
func (e *Engine) Start(minute int) error {
	if !timecode.Valid(minute) {
		return fmt.Errorf("start %d: %w", minute, ErrOutOfRange)
	}

	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.halt()
	return e.launch(minute)
}

// Scrub cancels auto-run and sets the clock to minute.
// An out-of-range minute is rejected and nothing changes.
func (e *Engine) Scrub(minute int) error {
	if !timecode.Valid(minute) {
		return fmt.Errorf("scrub %d: %w", minute, ErrOutOfRange)
	}

	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.halt()
	if err := e.Clock.Scrub(minute); err != nil {
		return err
	}
	slog.Debug("clock scrubbed", "time", timecode.Format(minute))
	return nil
}

// Stop cancels auto-run at the current minute.
func (e *Engine) Stop() Reading {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.halt()
	return e.Clock.Stop()
}

// Wait blocks until the current run, if any, has ended.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// launch starts the clock and its tick goroutine. Caller holds ctl.
func (e *Engine) launch(minute int) error {
	epoch, err := e.Clock.Start(minute)
	if err != nil {
		return err
	}
	if !e.Clock.Now().Running {
		return nil
	}

	period := e.Interval
	if period <= 0 {
		period = DefaultInterval
	}
	period = time.Duration(float64(period) / e.speed)
	if period <= 0 {
		period = time.Nanosecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	e.cancel, e.done = cancel, done
	e.mu.Unlock()

	slog.Info("clock started", "time", timecode.Format(minute), "epoch", epoch, "period", period)
	go e.run(ctx, epoch, period, done)
	return nil
}

// halt cancels the active run and waits for its goroutine to exit.
func (e *Engine) halt() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (e *Engine) run(ctx context.Context, epoch uint64, period time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Both cases may be ready; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			r, ok := e.Clock.TickEpoch(epoch)
			if !ok {
				return
			}
			if e.OnTick != nil {
				e.OnTick(r)
			}
			if !r.Running {
				slog.Info("day complete", "time", r.Time(), "epoch", epoch)
				if e.OnDayEnd != nil {
					e.OnDayEnd(r)
				}
				return
			}
		}
	}
}
