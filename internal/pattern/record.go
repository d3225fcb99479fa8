// Package pattern classifies gas waste alarms per meter as genuine waste or
// warm-water usage.
package pattern

import (
	"strconv"
	"strings"
	"time"
)

// NoHour marks an AlarmRecord whose hour has not been derived yet.
const NoHour = -1

// AlarmRecord is one hourly interval where gas was consumed while the outdoor
// temperature was above the heating threshold.
type AlarmRecord struct {
	ID          int64   `json:"id,omitempty"`
	UploadID    string  `json:"upload_id,omitempty"`
	Meter       string  `json:"meter"`
	Date        string  `json:"date,omitempty"`
	Time        string  `json:"time,omitempty"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Day         int     `json:"day"`
	Hour        int     `json:"hour"`
	Consumption float64 `json:"consumption"`
	Temperature float64 `json:"temperature"`
}

// dayFirstLayouts are tried in order when a record carries only its raw date.
var dayFirstLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02-01-2006 15:04",
	"20060102",
}

// Normalize fills in the hour and calendar date from the raw time and date
// strings when they are missing. Fields that are already set are kept.
func (r AlarmRecord) Normalize() AlarmRecord {
	if r.Hour == NoHour {
		r.Hour = hourFromClock(r.Time)
	}
	if r.Year == 0 {
		if y, m, d, ok := dateFromString(r.Date); ok {
			r.Year, r.Month, r.Day = y, m, d
		}
	}
	return r
}

// NormalizeAll returns a normalized copy of records.
func NormalizeAll(records []AlarmRecord) []AlarmRecord {
	out := make([]AlarmRecord, len(records))
	for i, r := range records {
		out[i] = r.Normalize()
	}
	return out
}

// dayKey identifies the calendar day of a record.
type dayKey struct {
	year, month, day int
}

func (r AlarmRecord) dayKey() dayKey {
	return dayKey{r.Year, r.Month, r.Day}
}

// hourFromClock takes the integer before the first ':' of a clock string.
// Anything unparseable yields hour 0.
func hourFromClock(clock string) int {
	head, _, _ := strings.Cut(clock, ":")
	h, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0
	}
	return h
}

// dateFromString parses a day-first date. ok is false when no layout
// matches, in which case the caller leaves the date components at zero.
func dateFromString(s string) (year, month, day int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, 0, false
	}
	for _, layout := range dayFirstLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Year(), int(t.Month()), t.Day(), true
	}
	return 0, 0, 0, false
}
