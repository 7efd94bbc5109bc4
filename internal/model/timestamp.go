package model

import (
	"strconv"
	"strings"
	"time"
)

var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp reads an upstream timestamp. Values without an offset are
// taken to be wall-clock time in loc; values with one are converted to loc.
// Unparseable or empty values report false.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range offsetLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.In(loc), true
		}
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, true
		}
	}

	// epoch milliseconds
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).In(loc), true
	}
	return time.Time{}, false
}

var accessDurations = map[string]int{
	"ONE_MONTH":    30,
	"TWO_MONTHS":   60,
	"THREE_MONTHS": 90,
	"SIX_MONTHS":   180,
	"ONE_YEAR":     365,
}

// AccessDays resolves a course duration value to a number of days. Known
// enum names and plain day counts are accepted.
func AccessDays(duration string) (int, bool) {
	key := strings.ToUpper(strings.TrimSpace(duration))
	if days, ok := accessDurations[key]; ok {
		return days, true
	}
	if days, err := strconv.Atoi(key); err == nil && days > 0 {
		return days, true
	}
	return 0, false
}
