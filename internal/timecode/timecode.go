// Package timecode converts between "HH:MM" clock strings and minute-of-day integers.
package timecode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// MinutesPerDay is the length of a simulated day. A minute value equal to
// MinutesPerDay marks the terminal end of the day.
const MinutesPerDay = 1440

// ErrInvalidFormat is returned when a time string is not strict 24-hour HH:MM.
var ErrInvalidFormat = errors.New("invalid time format")

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Parse converts a strict 24-hour "HH:MM" string (00:00-23:59) into minutes since midnight.
func Parse(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q (want HH:MM, 00:00-23:59)", ErrInvalidFormat, s)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// MustParse is Parse for literals known to be valid. Panics otherwise.
func MustParse(s string) int {
	minute, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return minute
}

// Format renders a minute-of-day as zero-padded "HH:MM".
// The end-of-day marker 1440 renders as "24:00". Values outside
// [0, 1440] are clamped into that range first.
func Format(minute int) string {
	if minute < 0 {
		minute = 0
	}
	if minute > MinutesPerDay {
		minute = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Valid reports whether minute lies in [0, 1440].
func Valid(minute int) bool {
	return minute >= 0 && minute <= MinutesPerDay
}
