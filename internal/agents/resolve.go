package agents

import "github.com/talgya/daysim/internal/timecode"

// ResolveCurrent returns the first activity, in list order, whose window
// contains minute. Windows with End <= Start wrap past midnight.
//
// A well-formed schedule partitions the day, so at most one window matches.
// When windows overlap the earliest entry in the list wins. A schedule with
// gaps yields false for minutes no window covers; that means "no current
// activity", not an error.
func ResolveCurrent(activities []Activity, minute int) (Activity, bool) {
	for _, a := range activities {
		if a.Contains(minute) {
			return a, true
		}
	}
	return Activity{}, false
}

// Coverage summarises how a schedule covers the 1440 minutes of a day.
type Coverage struct {
	Uncovered   int // Minutes no window contains
	Overlapping int // Minutes more than one window contains
}

// Partitions reports whether every minute is covered exactly once.
func (c Coverage) Partitions() bool {
	return c.Uncovered == 0 && c.Overlapping == 0
}

// CheckCoverage counts gaps and overlaps in a schedule.
func CheckCoverage(activities []Activity) Coverage {
	var c Coverage
	for minute := 0; minute < timecode.MinutesPerDay; minute++ {
		hits := 0
		for _, a := range activities {
			if a.Contains(minute) {
				hits++
			}
		}
		switch {
		case hits == 0:
			c.Uncovered++
		case hits > 1:
			c.Overlapping++
		}
	}
	return c
}
