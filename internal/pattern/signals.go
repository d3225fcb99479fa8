package pattern

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Signals are the aggregate statistics the rule table scores.
type Signals struct {
	Count                 int     `json:"count"`
	MeanConsumption       float64 `json:"mean_consumption"`
	StdDevConsumption     float64 `json:"stddev_consumption"`
	CV                    float64 `json:"cv"`
	SmallConsumptionRatio float64 `json:"small_consumption_ratio"`
	NightRatio            float64 `json:"night_ratio"`
	MorningRatio          float64 `json:"morning_ratio"`
	EveningRatio          float64 `json:"evening_ratio"`
	PeakRatio             float64 `json:"peak_ratio"`
	Streaks               []int   `json:"streaks"`
	MaxStreak             int     `json:"max_streak"`
	LongStreaks           int     `json:"long_streaks"`
	UniqueDays            int     `json:"unique_days"`
	RecordsPerDay         float64 `json:"records_per_day"`
	UniqueHours           int     `json:"unique_hours"`
}

// ComputeSignals derives the classifier signals for one meter. Records must
// already be normalized.
func ComputeSignals(records []AlarmRecord, s Settings) Signals {
	sig := Signals{Count: len(records), MaxStreak: 1}
	if len(records) == 0 {
		return sig
	}

	consumption := make([]float64, len(records))
	days := make(map[dayKey]struct{})
	hours := make(map[int]struct{})
	var small, night, morning, evening int

	nightHours, morningHours, eveningHours := s.Night(), s.Morning(), s.Evening()
	for i, r := range records {
		consumption[i] = r.Consumption
		days[r.dayKey()] = struct{}{}
		hours[r.Hour] = struct{}{}

		if r.Consumption < s.MaxConsumptionWarmWater {
			small++
		}
		if nightHours.Contains(r.Hour) {
			night++
		}
		if morningHours.Contains(r.Hour) {
			morning++
		}
		if eveningHours.Contains(r.Hour) {
			evening++
		}
	}

	n := float64(len(records))
	sig.MeanConsumption = stat.Mean(consumption, nil)
	// Rounding can push a zero variance slightly negative.
	sig.StdDevConsumption = math.Sqrt(math.Max(0, stat.PopVariance(consumption, nil)))
	if sig.MeanConsumption > 0 {
		sig.CV = sig.StdDevConsumption / sig.MeanConsumption
	}

	sig.SmallConsumptionRatio = float64(small) / n
	sig.NightRatio = float64(night) / n
	sig.MorningRatio = float64(morning) / n
	sig.EveningRatio = float64(evening) / n
	sig.PeakRatio = sig.MorningRatio + sig.EveningRatio

	sig.Streaks = Streaks(records)
	sig.MaxStreak = MaxStreak(sig.Streaks)
	sig.LongStreaks = CountLongStreaks(sig.Streaks, s.ContinuousThreshold)

	sig.UniqueDays = len(days)
	sig.RecordsPerDay = n / float64(max(sig.UniqueDays, 1))
	sig.UniqueHours = len(hours)

	return sig
}
