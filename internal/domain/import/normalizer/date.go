package normalizer

import (
	"fmt"
	"strings"
	"time"
)

// Day-first layouts come before month-first ones: most supported banks are
// European. Month-first only wins when the day-first reading is impossible.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006.01.02",
	"2.1.2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.06",
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"20060102",
}

// ParseFlexibleDate parses dates in the formats banks commonly export.
// preferred is tried first when set. loc applies to values without zone; nil
// means UTC.
func ParseFlexibleDate(value, preferred string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}

	if preferred != "" {
		if t, err := time.ParseInLocation(preferred, value, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// DetectDateFormat returns the first layout that parses every recognizable
// sample, so a column of "03/04/2025, 25/04/2025" resolves to day-first and
// "04/25/2025" forces month-first. Empty and unrecognizable samples are
// ignored; they are rejected row by row later. Empty when nothing fits all
// the rest.
func DetectDateFormat(samples []string) string {
	var dates []string
	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s != "" && parsesWithAny(s) {
			dates = append(dates, s)
		}
	}
	if len(dates) == 0 {
		return ""
	}

	for _, layout := range dateLayouts {
		ok := true
		for _, s := range dates {
			if _, err := time.Parse(layout, s); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return layout
		}
	}
	return ""
}

// AnyDate reports whether at least one value parses as a date.
func AnyDate(values []string) bool {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && parsesWithAny(v) {
			return true
		}
	}
	return false
}

func parsesWithAny(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
