package engine

import (
	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/population"
	"github.com/talgya/daysim/internal/timecode"
)

// ActivityView is the display shape of a resolved activity.
type ActivityView struct {
	Type     string              `json:"type"`
	Location string              `json:"location"`
	Start    string              `json:"start"`
	End      string              `json:"end"`
	Position agents.Coord        `json:"position"`
	Kind     agents.ActivityKind `json:"-"`
}

// AgentView is one agent's row in a snapshot.
type AgentView struct {
	AgentID    agents.AgentID `json:"agent_id"`
	Name       string         `json:"name"`
	Age        int            `json:"age"`
	Gender     string         `json:"gender"`
	Occupation string         `json:"occupation"`
	Current    *ActivityView  `json:"current_activity"` // nil when no window covers the minute
	Trajectory []agents.Coord `json:"trajectory"`
	Visible    bool           `json:"visible"`
}

// Snapshot is everything a renderer needs to draw one instant.
type Snapshot struct {
	Minute int         `json:"minute"`
	Time   string      `json:"time"`
	Agents []AgentView `json:"agents"`
}

// BuildSnapshot resolves every agent at minute. It reads visibility flags
// but computes activity and trajectory independently of them.
func BuildSnapshot(store *population.Store, minute int) Snapshot {
	snap := Snapshot{
		Minute: minute,
		Time:   timecode.Format(minute),
		Agents: []AgentView{},
	}
	if store == nil {
		return snap
	}

	for _, a := range store.ListAgents() {
		view := AgentView{
			AgentID:    a.ID,
			Name:       a.Name,
			Age:        a.Age,
			Gender:     a.Gender,
			Occupation: a.Occupation,
			Trajectory: a.Trajectory(minute),
			Visible:    store.IsVisible(a.ID),
		}
		if act, ok := a.Current(minute); ok {
			view.Current = newActivityView(act)
		}
		snap.Agents = append(snap.Agents, view)
	}
	return snap
}

func newActivityView(a agents.Activity) *ActivityView {
	return &ActivityView{
		Type:     a.Name(),
		Location: a.Location,
		Start:    timecode.Format(a.Start),
		End:      timecode.Format(a.End),
		Position: a.Coord,
		Kind:     a.Kind,
	}
}
