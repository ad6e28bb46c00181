package ranking

import (
	"strings"
	"time"
)

// TimeWindow bounds how far back the ranking looks.
type TimeWindow string

const (
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
	WindowAll   TimeWindow = "all"
)

// ParseTimeWindow maps s to a window. Unknown values fall back to WindowAll
// with ok set to false; an empty string is a valid WindowAll.
func ParseTimeWindow(s string) (w TimeWindow, ok bool) {
	switch TimeWindow(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowAll:
		return WindowAll, true
	case WindowDay:
		return WindowDay, true
	case WindowWeek:
		return WindowWeek, true
	case WindowMonth:
		return WindowMonth, true
	default:
		return WindowAll, false
	}
}

// Cutoff returns the earliest creation time included in the window. The zero
// time means no lower bound.
func (w TimeWindow) Cutoff(now time.Time) time.Time {
	switch w {
	case WindowDay:
		return now.AddDate(0, 0, -1)
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}
