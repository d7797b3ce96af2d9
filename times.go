package headway

import (
	"fmt"
	"strconv"
	"strings"
)

// DayInSeconds is one service day. Stop times may exceed it: GTFS expresses
// trips that run past midnight with hour values of 24 and above, and those
// values are kept as-is until a time is rendered for output.
const DayInSeconds uint32 = 24 * 60 * 60

// ArrivalNotReached is the +inf sentinel for arrival tables.
const ArrivalNotReached uint32 = 0xffffffff

// ParseHMS parses a GTFS "HH:MM:SS" time into seconds since service
// midnight. Hours of 24 and above are valid. "HH:MM" is tolerated, as some
// feeds omit the seconds field.
func ParseHMS(s string) (uint32, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid hours in %q", s)
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}

	seconds := 0
	if len(parts) == 3 {
		seconds, err = strconv.Atoi(parts[2])
		if err != nil || seconds < 0 || seconds > 59 {
			return 0, fmt.Errorf("invalid seconds in %q", s)
		}
	}

	return uint32((hours*60+minutes)*60 + seconds), nil
}

// FormatHMS renders seconds since service midnight as a canonical 24h
// wall-clock "HH:MM:SS", wrapping via modulo one day.
func FormatHMS(seconds uint32) string {
	seconds = seconds % DayInSeconds

	hours := seconds / (60 * 60)
	seconds -= hours * 60 * 60
	minutes := seconds / 60
	seconds -= minutes * 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// DurationS computes end - start in seconds on wall-clock values that may
// have wrapped past midnight.
func DurationS(start, end uint32) uint32 {
	start = start % DayInSeconds
	end = end % DayInSeconds
	if end < start {
		end += DayInSeconds
	}
	return end - start
}
