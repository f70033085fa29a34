package royale

import (
	"strconv"
	"strings"
)

const maxTimerSeconds = 360

// ReadOutcome tells whether an OCR reading produced a new value or the
// previous one must be kept.
type ReadOutcome int

const (
	Unchanged ReadOutcome = iota
	Parsed
)

func (r ReadOutcome) String() string {
	if r == Parsed {
		return "parsed"
	}
	return "unchanged"
}

// ParseTimer reads an "m:ss" clock into seconds. Anything malformed or
// outside [0,360] is OCR noise and yields Unchanged.
func ParseTimer(text string) (int, ReadOutcome) {
	text = strings.Join(strings.Fields(text), "")
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return 0, Unchanged
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, Unchanged
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, Unchanged
	}
	total := minutes*60 + seconds
	if total < 0 || total > maxTimerSeconds {
		return 0, Unchanged
	}
	return total, Parsed
}
