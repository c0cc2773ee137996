package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/engine"
)

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DAYSIM_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "serve", "snapshot", "seed"}
	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			if err != nil || cmd.Name() != name {
				t.Errorf("subcommand %q not registered", name)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("version --json output %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestSnapshotCmd_JSON(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		time    string
		current string
		pathLen int
	}{
		{"at start", []string{"--start", "09:00"}, "09:00", "work", 1},
		{"scrubbed to night", []string{"--start", "08:00", "--at", "22:30"}, "22:30", "sleep", 3},
		{"evening gap", []string{"--start", "08:00", "--at", "21:00"}, "21:00", "", 2},
		{"end of day", []string{"--start", "00:00", "--at", "23:45"}, "23:45", "sleep", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"snapshot", "--json", "--agents", "2"}, tt.args...)
			out, err := runCmd(t, args...)
			if err != nil {
				t.Fatalf("snapshot error: %v", err)
			}

			var snap engine.Snapshot
			if err := json.Unmarshal([]byte(out), &snap); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			if snap.Time != tt.time || len(snap.Agents) != 2 {
				t.Fatalf("snapshot = %s with %d agents", snap.Time, len(snap.Agents))
			}
			view := snap.Agents[0]
			if tt.current == "" {
				if view.Current != nil {
					t.Errorf("current = %+v, want none", view.Current)
				}
			} else if view.Current == nil || view.Current.Type != tt.current {
				t.Errorf("current = %+v, want %s", view.Current, tt.current)
			}
			if len(view.Trajectory) != tt.pathLen {
				t.Errorf("trajectory len = %d, want %d", len(view.Trajectory), tt.pathLen)
			}
		})
	}
}

func TestSnapshotCmd_Table(t *testing.T) {
	out, err := runCmd(t, "snapshot", "--start", "10:00", "--agents", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "10:00  3 agents") {
		t.Errorf("header = %q", strings.SplitN(out, "\n", 2)[0])
	}
	for _, want := range []string{"Agent1", "Agent3", "Office", "09:00-17:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestSnapshotCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad start", []string{"snapshot", "--start", "8:00"}},
		{"bad at", []string{"snapshot", "--at", "25:00"}},
		{"too many agents", []string{"snapshot", "--agents", "51"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSeedCmd(t *testing.T) {
	out, err := runCmd(t, "seed", "--agents", "4")
	if err != nil {
		t.Fatal(err)
	}

	list, err := agents.DecodePopulation([]byte(out))
	if err != nil {
		t.Fatalf("seed output does not decode: %v", err)
	}
	if len(list) != 4 || list[3].ID != "3" || list[3].Name != "Agent4" {
		t.Errorf("seeded population = %+v", list)
	}
}
