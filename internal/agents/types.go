// Package agents provides the agent data model and the pure timeline functions
// that resolve an agent's current activity and traveled trajectory.
package agents

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talgya/daysim/internal/timecode"
)

// AgentID is an opaque identifier, unique within a population.
type AgentID string

// ActivityKind is the closed set of things an agent can be doing.
type ActivityKind uint8

const (
	ActivityOther ActivityKind = iota // Unrecognised upstream label
	ActivityEducation
	ActivityLeisure
	ActivitySleep
	ActivityWork
	ActivityShopping
)

// Wire names used by the remote simulation service.
var kindNames = map[ActivityKind]string{
	ActivityOther:     "other",
	ActivityEducation: "education",
	ActivityLeisure:   "leisure activities",
	ActivitySleep:     "sleep",
	ActivityWork:      "work",
	ActivityShopping:  "shopping",
}

// ParseActivityKind maps a wire name to a kind. Unknown names return ActivityOther.
func ParseActivityKind(name string) ActivityKind {
	for k, n := range kindNames {
		if n == name && k != ActivityOther {
			return k
		}
	}
	return ActivityOther
}

func (k ActivityKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ActivityKind(%d)", k)
}

// ErrInvalidActivity is returned by Activity.Validate.
var ErrInvalidActivity = errors.New("invalid activity")

// Coord is a fixed geographic position.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Activity is a time window spent at a fixed location.
// Start and End are minutes of day in [0, 1440). End <= Start means the
// window wraps past midnight.
type Activity struct {
	Kind     ActivityKind
	Label    string // Raw wire label, kept when Kind is ActivityOther
	Location string
	Start    int
	End      int
	Coord    Coord
}

// Wraps reports whether the window crosses midnight.
func (a Activity) Wraps() bool {
	return a.End <= a.Start
}

// Contains reports whether minute falls inside the half-open window [Start, End).
func (a Activity) Contains(minute int) bool {
	if a.Wraps() {
		return minute >= a.Start || minute < a.End
	}
	return minute >= a.Start && minute < a.End
}

// Name returns the display name of the activity type.
func (a Activity) Name() string {
	if a.Kind == ActivityOther && a.Label != "" {
		return a.Label
	}
	return a.Kind.String()
}

// Validate checks the range and start != end invariants.
func (a Activity) Validate() error {
	if a.Start < 0 || a.Start >= timecode.MinutesPerDay {
		return fmt.Errorf("%w: start %d out of range", ErrInvalidActivity, a.Start)
	}
	if a.End < 0 || a.End >= timecode.MinutesPerDay {
		return fmt.Errorf("%w: end %d out of range", ErrInvalidActivity, a.End)
	}
	if a.Start == a.End {
		return fmt.Errorf("%w: empty window at %s", ErrInvalidActivity, timecode.Format(a.Start))
	}
	return nil
}

// activityJSON is the wire shape shared with the remote service.
type activityJSON struct {
	ActivityType string  `json:"activityType"`
	LocationType string  `json:"locationType"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
}

// MarshalJSON implements json.Marshaler.
func (a Activity) MarshalJSON() ([]byte, error) {
	return json.Marshal(activityJSON{
		ActivityType: a.Name(),
		LocationType: a.Location,
		StartTime:    timecode.Format(a.Start),
		EndTime:      timecode.Format(a.End),
		Lat:          a.Coord.Lat,
		Lng:          a.Coord.Lng,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Times must be strict HH:MM.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw activityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := timecode.Parse(raw.StartTime)
	if err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	end, err := timecode.Parse(raw.EndTime)
	if err != nil {
		return fmt.Errorf("endTime: %w", err)
	}

	kind := ParseActivityKind(raw.ActivityType)
	*a = Activity{
		Kind:     kind,
		Location: raw.LocationType,
		Start:    start,
		End:      end,
		Coord:    Coord{Lat: raw.Lat, Lng: raw.Lng},
	}
	if kind == ActivityOther {
		a.Label = raw.ActivityType
	}
	return nil
}

// Agent is a synthetic person following a fixed daily schedule.
type Agent struct {
	ID         AgentID    `json:"id"`
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Gender     string     `json:"gender"`
	Occupation string     `json:"occupation"`
	Activities []Activity `json:"activities"`
}

// Current returns the activity the agent is engaged in at minute.
func (a *Agent) Current(minute int) (Activity, bool) {
	return ResolveCurrent(a.Activities, minute)
}

// Trajectory returns the waypoints the agent has reached by minute.
func (a *Agent) Trajectory(minute int) []Coord {
	return BuildTrajectory(a.Activities, minute)
}
