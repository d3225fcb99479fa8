package pattern

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreaks(t *testing.T) {
	tests := []struct {
		name     string
		records  []AlarmRecord
		expected []int
	}{
		{
			name:     "empty",
			records:  nil,
			expected: nil,
		},
		{
			name:     "single record",
			records:  []AlarmRecord{alarm("m", 2024, 1, 1, 4, 1)},
			expected: nil,
		},
		{
			name: "five consecutive hours",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 1, 10, 1),
				alarm("m", 2024, 1, 1, 11, 1),
				alarm("m", 2024, 1, 1, 12, 1),
				alarm("m", 2024, 1, 1, 13, 1),
				alarm("m", 2024, 1, 1, 14, 1),
			},
			expected: []int{5},
		},
		{
			name: "one missed hour splits the run",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 1, 1, 1),
				alarm("m", 2024, 1, 1, 2, 1),
				alarm("m", 2024, 1, 1, 3, 1),
				alarm("m", 2024, 1, 1, 5, 1),
				alarm("m", 2024, 1, 1, 6, 1),
				alarm("m", 2024, 1, 1, 7, 1),
			},
			expected: []int{3, 3},
		},
		{
			name: "midnight rollover continues",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 5, 22, 1),
				alarm("m", 2024, 1, 5, 23, 1),
				alarm("m", 2024, 1, 6, 0, 1),
				alarm("m", 2024, 1, 6, 1, 1),
			},
			expected: []int{4},
		},
		{
			name: "rollover bridges non-adjacent days",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 5, 23, 1),
				alarm("m", 2024, 3, 10, 0, 1),
			},
			expected: []int{2},
		},
		{
			name: "duplicate hour does not extend",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 1, 3, 1),
				alarm("m", 2024, 1, 1, 3, 1),
				alarm("m", 2024, 1, 1, 4, 1),
			},
			expected: []int{2},
		},
		{
			name: "same hour next day is not consecutive",
			records: []AlarmRecord{
				alarm("m", 2024, 1, 1, 8, 1),
				alarm("m", 2024, 1, 2, 9, 1),
				alarm("m", 2024, 1, 3, 10, 1),
			},
			expected: nil,
		},
		{
			name: "unsorted input",
			records: []AlarmRecord{
				alarm("m", 2024, 2, 1, 14, 1),
				alarm("m", 2024, 1, 31, 9, 1),
				alarm("m", 2024, 2, 1, 13, 1),
				alarm("m", 2024, 1, 31, 8, 1),
				alarm("m", 2024, 2, 1, 15, 1),
			},
			expected: []int{2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Streaks(tt.records))
		})
	}
}

func TestStreaksLeavesInputUntouched(t *testing.T) {
	records := []AlarmRecord{
		alarm("m", 2024, 1, 2, 5, 1),
		alarm("m", 2024, 1, 1, 5, 1),
		alarm("m", 2024, 1, 1, 4, 1),
	}
	before := slices.Clone(records)

	Streaks(records)

	require.Equal(t, before, records)
}

func TestMaxStreak(t *testing.T) {
	assert.Equal(t, 1, MaxStreak(nil))
	assert.Equal(t, 7, MaxStreak([]int{2, 7, 3}))
}

func TestCountLongStreaks(t *testing.T) {
	assert.Equal(t, 0, CountLongStreaks(nil, 3))
	assert.Equal(t, 2, CountLongStreaks([]int{2, 3, 5}, 3))
}
