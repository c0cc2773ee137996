package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DecodePopulation parses the remote service's population body: a JSON
// object keyed by agent id. Agents are returned sorted by id, numerically
// when both ids are integers. Ids in the body override any "id" field.
func DecodePopulation(data []byte) ([]*Agent, error) {
	var raw map[string]*Agent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode population: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	result := make([]*Agent, 0, len(ids))
	for _, id := range ids {
		a := raw[id]
		if a == nil {
			return nil, fmt.Errorf("decode population: agent %q is null", id)
		}
		a.ID = AgentID(id)
		for i, act := range a.Activities {
			if err := act.Validate(); err != nil {
				return nil, fmt.Errorf("agent %q activity %d: %w", id, i, err)
			}
		}
		result = append(result, a)
	}
	return result, nil
}

func idLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// EncodePopulation renders agents in the same id-keyed shape DecodePopulation reads.
func EncodePopulation(list []*Agent) ([]byte, error) {
	out := make(map[string]*Agent, len(list))
	for _, a := range list {
		out[string(a.ID)] = a
	}
	return json.MarshalIndent(out, "", "  ")
}
