package pattern

import (
	"slices"
)

// Streaks returns the lengths of all maximal runs of consecutive alarm hours
// that are at least two hours long. The input is not modified.
//
// Two records are consecutive when they share day and month and the hour
// advances by one, or when the first is at 23:00 and the second at 00:00.
// The 23 -> 0 rollover does not check that the days are adjacent.
func Streaks(records []AlarmRecord) []int {
	if len(records) < 2 {
		return nil
	}

	sorted := slices.Clone(records)
	SortChronological(sorted)

	var streaks []int
	run := 1
	for i := 1; i < len(sorted); i++ {
		if continues(sorted[i-1], sorted[i]) {
			run++
			continue
		}
		if run >= 2 {
			streaks = append(streaks, run)
		}
		run = 1
	}
	if run >= 2 {
		streaks = append(streaks, run)
	}

	return streaks
}

// SortChronological orders records by year, month, day and hour. Records with
// equal timestamps keep their relative order.
func SortChronological(records []AlarmRecord) {
	slices.SortStableFunc(records, func(a, b AlarmRecord) int {
		switch {
		case a.Year != b.Year:
			return a.Year - b.Year
		case a.Month != b.Month:
			return a.Month - b.Month
		case a.Day != b.Day:
			return a.Day - b.Day
		default:
			return a.Hour - b.Hour
		}
	})
}

func continues(prev, cur AlarmRecord) bool {
	if prev.Day == cur.Day && prev.Month == cur.Month && cur.Hour == prev.Hour+1 {
		return true
	}
	return prev.Hour == 23 && cur.Hour == 0
}

// MaxStreak returns the longest streak, or 1 when there is none.
func MaxStreak(streaks []int) int {
	if len(streaks) == 0 {
		return 1
	}
	return slices.Max(streaks)
}

// CountLongStreaks returns how many streaks reach threshold hours.
func CountLongStreaks(streaks []int, threshold int) int {
	n := 0
	for _, s := range streaks {
		if s >= threshold {
			n++
		}
	}
	return n
}
