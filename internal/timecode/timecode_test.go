package timecode

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"00:00", 0},
		{"00:01", 1},
		{"08:00", 480},
		{"09:00", 540},
		{"12:30", 750},
		{"22:00", 1320},
		{"23:59", 1439},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	inputs := []string{
		"", "8:00", "24:00", "23:60", "12:5", "1200", "12-00",
		" 12:00", "12:00 ", "ab:cd", "99:99", "-1:00", "12:00:00",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", in)
			}
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidFormat", in, err)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		minute int
		want   string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{540, "09:00"},
		{1439, "23:59"},
		{1440, "24:00"},
		{-30, "00:00"},
		{2000, "24:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.minute); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.minute, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for minute := 0; minute < MinutesPerDay; minute++ {
		s := Format(minute)
		parsed, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(Format(%d)) error: %v", minute, err)
		}
		again, err := Parse(Format(parsed))
		if err != nil {
			t.Fatalf("second round trip for %d failed: %v", minute, err)
		}
		if parsed != minute || again != parsed {
			t.Fatalf("round trip for %d gave %d then %d", minute, parsed, again)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid(0) || !Valid(1440) {
		t.Error("0 and 1440 should be valid")
	}
	if Valid(-1) || Valid(1441) {
		t.Error("-1 and 1441 should be invalid")
	}
}
