package agents

// BuildTrajectory returns the coordinates of every activity the agent has
// entered by minute, in schedule order.
//
// An activity counts as entered once minute >= Start, compared raw. A window
// that wraps past midnight is therefore not entered during its post-midnight
// tail; the path shows progression through the listed day, not containment.
func BuildTrajectory(activities []Activity, minute int) []Coord {
	points := make([]Coord, 0, len(activities))
	for _, a := range activities {
		if a.Start <= minute {
			points = append(points, a.Coord)
		}
	}
	return points
}
