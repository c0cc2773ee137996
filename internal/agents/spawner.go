// Agent spawning: seeds a population with the standard three-activity day.
package agents

import (
	"fmt"
	"strconv"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Spacing between consecutive agents' locations, in degrees.
const agentSpacing = 0.01

var occupations = []string{"Engineer", "Teacher", "Student", "Doctor"}

// scheduleTemplate is one slot of the seeded day.
type scheduleTemplate struct {
	kind     ActivityKind
	location string
	start    int
	end      int
	base     Coord
}

// The default day: work, leisure, a gap from 20:00 to 22:00, then sleep
// wrapping past midnight.
var defaultDay = []scheduleTemplate{
	{ActivityWork, "Office", 9 * 60, 17 * 60, Coord{Lat: 31.23, Lng: 121.47}},
	{ActivityLeisure, "Park", 17 * 60, 20 * 60, Coord{Lat: 31.22, Lng: 121.46}},
	{ActivitySleep, "Home", 22 * 60, 8 * 60, Coord{Lat: 31.21, Lng: 121.45}},
}

// Spawner creates agents for a simulated day.
type Spawner struct {
	jitter   float64
	latNoise opensimplex.Noise
	lngNoise opensimplex.Noise
	nextID   int
}

// NewSpawner creates an agent spawner. jitter is the maximum coordinate
// offset in degrees added from noise; 0 places agents on the exact grid.
func NewSpawner(seed int64, jitter float64) *Spawner {
	return &Spawner{
		jitter:   jitter,
		latNoise: opensimplex.New(seed),
		lngNoise: opensimplex.New(seed + 1),
	}
}

// SetNextID sets the index of the next agent to be issued.
func (s *Spawner) SetNextID(id int) {
	s.nextID = id
}

// Spawn creates count agents with deterministic demographics and schedules.
func (s *Spawner) Spawn(count int) []*Agent {
	agents := make([]*Agent, 0, max(count, 0))
	for i := 0; i < count; i++ {
		agents = append(agents, s.spawnOne())
	}
	return agents
}

func (s *Spawner) spawnOne() *Agent {
	i := s.nextID
	s.nextID++

	gender := "Male"
	if i%2 == 1 {
		gender = "Female"
	}

	activities := make([]Activity, 0, len(defaultDay))
	for slot, tmpl := range defaultDay {
		activities = append(activities, Activity{
			Kind:     tmpl.kind,
			Location: tmpl.location,
			Start:    tmpl.start,
			End:      tmpl.end,
			Coord:    s.place(tmpl.base, i, slot),
		})
	}

	return &Agent{
		ID:         AgentID(strconv.Itoa(i)),
		Name:       fmt.Sprintf("Agent%d", i+1),
		Age:        20 + i%30,
		Gender:     gender,
		Occupation: occupations[i%len(occupations)],
		Activities: activities,
	}
}

// place offsets a base location along the agent diagonal, plus noise jitter.
func (s *Spawner) place(base Coord, index, slot int) Coord {
	c := Coord{
		Lat: base.Lat + float64(index)*agentSpacing,
		Lng: base.Lng + float64(index)*agentSpacing,
	}
	if s.jitter <= 0 {
		return c
	}
	x, y := float64(index)*0.37, float64(slot)*1.91
	c.Lat += s.latNoise.Eval2(x, y) * s.jitter
	c.Lng += s.lngNoise.Eval2(x, y) * s.jitter
	return c
}
