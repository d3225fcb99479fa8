package pattern

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeMorningDrawsIsWarmWater(t *testing.T) {
	a := Analyze(MeterSeries{Meter: "871687400000000001", Records: morningDraws("871687400000000001")}, DefaultSettings())

	require.False(t, a.ShortSeries)
	assert.Equal(t, WarmWater, a.Verdict)
	assert.Equal(t, 0, a.WasteScore)
	// mean +3, small ratio +2, night +1, morning +2, peak +2, streak +2, per day +2
	assert.Equal(t, 14, a.WarmWaterScore)
	assert.InDelta(t, 1.0, a.Signals.MorningRatio, 1e-9)
	assert.Equal(t, 1, a.Signals.MaxStreak)
	assert.Equal(t, 10, a.Signals.UniqueDays)
}

func TestAnalyzeNightBurnIsWaste(t *testing.T) {
	a := Analyze(MeterSeries{Meter: "m", Records: nightBurn("m")}, DefaultSettings())

	require.False(t, a.ShortSeries)
	assert.Equal(t, Waste, a.Verdict)
	assert.Equal(t, 0, a.WarmWaterScore)
	// mean +3, small ratio +2, night +3, streak +4, long streaks +2, per day +2, variance +2
	assert.Equal(t, 18, a.WasteScore)
	assert.Equal(t, []int{7, 7, 6}, a.Signals.Streaks)
	assert.Equal(t, 7, a.Signals.MaxStreak)
	assert.Equal(t, 3, a.Signals.LongStreaks)
	assert.InDelta(t, 0.9, a.Signals.NightRatio, 1e-9)
	assert.Contains(t, a.Fired, "streak_at_least_6")
	assert.Contains(t, a.Fired, "steady_large_draws")
}

func TestAnalyzeShortSeriesIsWaste(t *testing.T) {
	records := morningDraws("m")[:3]

	a := Analyze(MeterSeries{Meter: "m", Records: records}, DefaultSettings())

	assert.True(t, a.ShortSeries)
	assert.Equal(t, Waste, a.Verdict)
	assert.Zero(t, a.WasteScore)
	assert.Zero(t, a.WarmWaterScore)
	assert.Empty(t, a.Fired)
	assert.True(t, Classify(MeterSeries{Meter: "m", Records: records}, DefaultSettings()))
}

func TestShortSeriesFollowsSettings(t *testing.T) {
	s := DefaultSettings()
	records := morningDraws("m")

	s.MinPatternOccurrences = 10
	assert.False(t, Classify(MeterSeries{Meter: "m", Records: records}, s))

	s.MinPatternOccurrences = 11
	assert.True(t, Classify(MeterSeries{Meter: "m", Records: records}, s))
}

func TestAnalyzeTieIsWarmWater(t *testing.T) {
	// Steady 0.9 m³ draws at 03, 07, 18 and 12 o'clock on four days:
	// waste gets small ratio +2, night +2, variance +2;
	// warm water gets morning +1, evening +1, streak +2, per day +2.
	records := []AlarmRecord{
		alarm("m", 2024, 5, 1, 3, 0.9),
		alarm("m", 2024, 5, 2, 7, 0.9),
		alarm("m", 2024, 5, 3, 18, 0.9),
		alarm("m", 2024, 5, 4, 12, 0.9),
	}

	a := Analyze(MeterSeries{Meter: "m", Records: records}, DefaultSettings())

	require.Equal(t, 6, a.WasteScore)
	require.Equal(t, 6, a.WarmWaterScore)
	assert.Zero(t, a.Net())
	assert.Equal(t, WarmWater, a.Verdict)
}

func TestAnalyzeIsPure(t *testing.T) {
	s := DefaultSettings()
	records := append(nightBurn("m"), morningDraws("m")...)
	slices.Reverse(records)
	before := slices.Clone(records)

	first := Analyze(MeterSeries{Meter: "m", Records: records}, s)
	second := Analyze(MeterSeries{Meter: "m", Records: records}, s)

	assert.Equal(t, first, second)
	assert.Equal(t, before, records)
	assert.Equal(t, DefaultSettings(), s)
}

func TestAnalyzeDerivesMissingFields(t *testing.T) {
	var records []AlarmRecord
	for i := 0; i < 6; i++ {
		records = append(records, AlarmRecord{
			Meter:       "m",
			Date:        "14-08-2024",
			Time:        []string{"01:00", "02:00", "03:00", "04:00", "05:00", "06:00"}[i],
			Hour:        NoHour,
			Consumption: 1.6,
		})
	}

	a := Analyze(MeterSeries{Meter: "m", Records: records}, DefaultSettings())

	assert.Equal(t, []int{6}, a.Signals.Streaks)
	assert.Equal(t, 1, a.Signals.UniqueDays)
	assert.Equal(t, 6, a.Signals.UniqueHours)
	assert.Equal(t, Waste, a.Verdict)
	assert.Equal(t, NoHour, records[0].Hour, "input records must not be rewritten")
}

func TestAnalyzeZeroConsumption(t *testing.T) {
	records := []AlarmRecord{
		alarm("m", 2024, 5, 1, 10, 0),
		alarm("m", 2024, 5, 2, 11, 0),
		alarm("m", 2024, 5, 3, 12, 0),
		alarm("m", 2024, 5, 4, 13, 0),
	}

	a := Analyze(MeterSeries{Meter: "m", Records: records}, DefaultSettings())

	assert.Zero(t, a.Signals.CV)
	assert.Zero(t, a.Signals.StdDevConsumption)
	assert.Equal(t, WarmWater, a.Verdict)
}

func TestSummarizeOrdersByAlarmCount(t *testing.T) {
	records := append(morningDraws("warm"), nightBurn("waste")...)
	records = append(records, alarm("short", 2024, 1, 1, 1, 0.1))

	summary := Summarize(records, DefaultSettings())

	require.Len(t, summary, 3)
	assert.Equal(t, "waste", summary[0].Meter)
	assert.Equal(t, "warm", summary[1].Meter)
	assert.Equal(t, "short", summary[2].Meter)
	assert.Equal(t, WarmWater, summary[1].Verdict)
	assert.True(t, summary[2].ShortSeries)
}

func TestSummarizeConcurrentMatchesSequential(t *testing.T) {
	var records []AlarmRecord
	for _, m := range []string{"a", "b", "c"} {
		records = append(records, morningDraws(m+"-warm")...)
		records = append(records, nightBurn(m+"-waste")...)
	}

	want := Summarize(records, DefaultSettings())
	for _, workers := range []int{0, 1, 4} {
		assert.Equal(t, want, SummarizeConcurrent(records, DefaultSettings(), workers))
	}
}

func TestVerdictText(t *testing.T) {
	b, err := Waste.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "waste", string(b))
	assert.Equal(t, "warm_water", WarmWater.String())

	var v Verdict
	require.NoError(t, v.UnmarshalText([]byte("waste")))
	assert.Equal(t, Waste, v)
	assert.Error(t, v.UnmarshalText([]byte("leak")))
}
