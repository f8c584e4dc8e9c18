package prefgate

import (
	"strconv"
	"strings"
	"time"
)

// QuietHoursWindow is a daily time-of-day window, "HH:MM" bounds.
type QuietHoursWindow struct {
	Enabled bool
	Start   string
	End     string
}

// InQuietHours reports whether 'now' falls inside the window. A window whose
// start is later-than-or-equal its end wraps midnight (e.g. 22:00-07:00).
// A disabled window is never active.
func InQuietHours(window QuietHoursWindow, now time.Time) bool {
	if !window.Enabled {
		return false
	}

	start, startOk := minuteOfDay(window.Start)
	end, endOk := minuteOfDay(window.End)
	if !startOk || !endOk {
		return false
	}

	current := now.Hour()*60 + now.Minute()

	if start >= end {
		return current >= start || current < end
	}

	return current >= start && current < end
}

// minuteOfDay parses "HH:MM" into minutes since midnight.
func minuteOfDay(timeOfDay string) (int, bool) {
	segments := strings.Split(timeOfDay, ":")
	if len(segments) < 2 {
		return 0, false
	}

	hour, err := strconv.Atoi(segments[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}

	minute, err := strconv.Atoi(segments[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}

	return hour*60 + minute, true
}
