// Simulation ties the clock engine to the population of the current day.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/population"
	"github.com/talgya/daysim/internal/timecode"
)

// ErrNoDay is returned by operations that need a started day.
var ErrNoDay = errors.New("no day started")

const (
	maxEvents     = 1000
	frameBuffer   = 16
	CategoryDay   = "day"
	CategoryClock = "clock"
	CategoryAct   = "activity"
)

// Day is one "start day" action: a population plus where the clock began.
type Day struct {
	ID          uuid.UUID         `json:"id"`
	StartMinute int               `json:"start_minute"`
	Source      string            `json:"source"` // "local" or "remote"
	CreatedAt   time.Time         `json:"created_at"`
	Population  *population.Store `json:"-"`
}

// Event is a notable change in the simulated day.
type Event struct {
	Minute      int            `json:"minute"`
	Time        string         `json:"time"`
	AgentID     agents.AgentID `json:"agent_id,omitempty"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "day", "clock", "activity"
}

// Frame is pushed to subscribers whenever the clock or visibility changes.
type Frame struct {
	DayID    string   `json:"day_id"`
	Clock    Reading  `json:"clock"`
	Snapshot Snapshot `json:"snapshot"`
}

// Simulation holds the current day and wires the engine's ticks into
// events and subscriber frames.
type Simulation struct {
	Engine *Engine
	Clock  *Clock

	// Hooks run outside the simulation lock, on the caller's goroutine
	// (the tick goroutine for tick events).
	OnDayStart func(day *Day)
	OnEvents   func(day *Day, events []Event)

	ctl sync.Mutex // Serializes StartDay/Scrub/Stop

	mu      sync.RWMutex
	day     *Day
	events  []Event
	current map[agents.AgentID]string // Last resolved activity name per agent

	subMu   sync.Mutex
	subs    map[int]chan Frame
	nextSub int
}

// NewSimulation creates an idle simulation whose engine ticks every interval.
func NewSimulation(interval time.Duration) *Simulation {
	clock := NewClock()
	eng := NewEngine(clock)
	if interval > 0 {
		eng.Interval = interval
	}

	s := &Simulation{
		Engine: eng,
		Clock:  clock,
		subs:   make(map[int]chan Frame),
	}
	eng.OnTick = s.handleTick
	eng.OnDayEnd = s.handleDayEnd
	return s
}

// StartDay installs a new population and starts the clock at startTime.
// Validation happens first; on error nothing changes.
func (s *Simulation) StartDay(startTime string, list []*agents.Agent, source string) (*Day, error) {
	minute, err := timecode.Parse(startTime)
	if err != nil {
		return nil, err
	}
	store, err := population.New(list)
	if err != nil {
		return nil, fmt.Errorf("build population: %w", err)
	}

	gaps := 0
	for _, a := range list {
		if c := agents.CheckCoverage(a.Activities); !c.Partitions() {
			gaps++
			slog.Debug("schedule does not partition the day",
				"agent", a.ID, "uncovered", c.Uncovered, "overlapping", c.Overlapping)
		}
	}
	if gaps > 0 {
		slog.Warn("agents with incomplete schedules", "count", gaps, "of", len(list))
	}

	day := &Day{
		ID:          uuid.New(),
		StartMinute: minute,
		Source:      source,
		CreatedAt:   time.Now().UTC(),
		Population:  store,
	}

	s.ctl.Lock()
	defer s.ctl.Unlock()

	// Halt the old day's ticks before swapping populations.
	s.Engine.Stop()

	start := Event{
		Minute:      minute,
		Time:        timecode.Format(minute),
		Description: fmt.Sprintf("day started at %s with %d agents", timecode.Format(minute), store.Len()),
		Category:    CategoryDay,
	}

	s.mu.Lock()
	s.day = day
	s.events = nil
	s.current = resolveAll(store, minute)
	s.events = append(s.events, start)
	s.mu.Unlock()

	if s.OnDayStart != nil {
		s.OnDayStart(day)
	}
	s.emit(day, []Event{start})

	if err := s.Engine.Start(minute); err != nil {
		return nil, err
	}
	slog.Info("day started", "day", day.ID, "time", timecode.Format(minute), "agents", store.Len(), "source", source)
	s.publish()
	return day, nil
}

// Scrub jumps the clock to minute and cancels auto-run.
func (s *Simulation) Scrub(minute int) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if err := s.Engine.Scrub(minute); err != nil {
		return err
	}

	ev := Event{
		Minute:      minute,
		Time:        timecode.Format(minute),
		Description: fmt.Sprintf("clock set to %s", timecode.Format(minute)),
		Category:    CategoryClock,
	}

	s.mu.Lock()
	day := s.day
	if day != nil {
		s.current = resolveAll(day.Population, minute)
		s.appendEvents([]Event{ev})
	}
	s.mu.Unlock()

	if day != nil {
		s.emit(day, []Event{ev})
	}
	s.publish()
	return nil
}

// Stop cancels auto-run at the current minute.
func (s *Simulation) Stop() Reading {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	r := s.Engine.Stop()
	s.publish()
	return r
}

// Day returns the current day, or nil before the first StartDay.
func (s *Simulation) Day() *Day {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// Snapshot resolves the current day at minute. Before any day is
// started it returns an empty snapshot.
func (s *Simulation) Snapshot(minute int) Snapshot {
	day := s.Day()
	if day == nil {
		return BuildSnapshot(nil, minute)
	}
	return BuildSnapshot(day.Population, minute)
}

// CurrentFrame returns the clock reading with a snapshot at its minute.
func (s *Simulation) CurrentFrame() Frame {
	r := s.Clock.Now()
	f := Frame{Clock: r, Snapshot: s.Snapshot(r.Minute)}
	if day := s.Day(); day != nil {
		f.DayID = day.ID.String()
	}
	return f
}

// ToggleVisibility flips an agent's visibility in the current day.
func (s *Simulation) ToggleVisibility(id agents.AgentID) (bool, error) {
	day := s.Day()
	if day == nil {
		return false, ErrNoDay
	}
	v, err := day.Population.ToggleVisibility(id)
	if err != nil {
		return false, err
	}
	s.publish()
	return v, nil
}

// Events returns up to limit of the most recent events, oldest first.
func (s *Simulation) Events(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// Subscribe registers for frames. Slow subscribers miss frames rather
// than block the clock.
func (s *Simulation) Subscribe() (int, <-chan Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	ch := make(chan Frame, frameBuffer)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) handleTick(r Reading) {
	s.mu.Lock()
	day := s.day
	var events []Event
	if day != nil {
		events = s.transitions(day.Population, r.Minute)
		s.appendEvents(events)
	}
	s.mu.Unlock()

	if day != nil {
		s.emit(day, events)
	}
	s.publish()
}

func (s *Simulation) handleDayEnd(r Reading) {
	ev := Event{
		Minute:      r.Minute,
		Time:        r.Time(),
		Description: "day ended",
		Category:    CategoryDay,
	}

	s.mu.Lock()
	day := s.day
	counts := make(map[string]int)
	for _, e := range s.events {
		counts[e.Category]++
	}
	s.appendEvents([]Event{ev})
	s.mu.Unlock()

	slog.Info("daily report",
		"time", r.Time(),
		"events_activity", counts[CategoryAct],
		"events_clock", counts[CategoryClock],
	)
	if day != nil {
		s.emit(day, []Event{ev})
	}
}

// transitions diffs each agent's activity at minute against the last
// resolved one. Caller holds mu.
func (s *Simulation) transitions(store *population.Store, minute int) []Event {
	var events []Event
	for _, a := range store.ListAgents() {
		name := ""
		act, ok := a.Current(minute)
		if ok {
			name = act.Name()
		}
		if s.current[a.ID] == name {
			continue
		}
		s.current[a.ID] = name

		desc := fmt.Sprintf("%s has no scheduled activity", a.Name)
		if ok {
			desc = fmt.Sprintf("%s began %s at %s", a.Name, name, act.Location)
		}
		events = append(events, Event{
			Minute:      minute,
			Time:        timecode.Format(minute),
			AgentID:     a.ID,
			Description: desc,
			Category:    CategoryAct,
		})
	}
	return events
}

// appendEvents records events, keeping the most recent maxEvents. Caller holds mu.
func (s *Simulation) appendEvents(events []Event) {
	s.events = append(s.events, events...)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

func (s *Simulation) emit(day *Day, events []Event) {
	if len(events) > 0 && s.OnEvents != nil {
		s.OnEvents(day, events)
	}
}

func (s *Simulation) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if len(s.subs) == 0 {
		return
	}
	frame := s.CurrentFrame()
	for _, ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func resolveAll(store *population.Store, minute int) map[agents.AgentID]string {
	current := make(map[agents.AgentID]string, store.Len())
	for _, a := range store.ListAgents() {
		if act, ok := a.Current(minute); ok {
			current[a.ID] = act.Name()
		}
	}
	return current
}
