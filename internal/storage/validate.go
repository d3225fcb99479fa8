package storage

import (
	"fmt"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"go.uber.org/multierr"
)

// ValidateSettings checks that every hour window lies within the day with
// start <= end and that the numeric thresholds are positive. All violations
// are reported together.
func ValidateSettings(s pattern.Settings) error {
	var err error

	windows := []struct {
		name       string
		start, end int
	}{
		{"night_hour", s.NightHourStart, s.NightHourEnd},
		{"morning_peak", s.MorningPeakStart, s.MorningPeakEnd},
		{"evening_peak", s.EveningPeakStart, s.EveningPeakEnd},
	}
	for _, w := range windows {
		if w.start < 0 || w.start > 23 || w.end < 0 || w.end > 23 {
			err = multierr.Append(err, fmt.Errorf("%s window %d-%d must lie within 0-23", w.name, w.start, w.end))
			continue
		}
		if w.start > w.end {
			err = multierr.Append(err, fmt.Errorf("%s_start %d is after %s_end %d", w.name, w.start, w.name, w.end))
		}
	}

	if s.ContinuousThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("continuous_threshold must be positive, got %d", s.ContinuousThreshold))
	}
	if s.HighConsumptionMultiplier <= 0 {
		err = multierr.Append(err, fmt.Errorf("high_consumption_multiplier must be positive, got %v", s.HighConsumptionMultiplier))
	}
	if s.MinPatternOccurrences <= 0 {
		err = multierr.Append(err, fmt.Errorf("min_pattern_occurrences must be positive, got %d", s.MinPatternOccurrences))
	}
	if s.MaxConsumptionWarmWater <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_consumption_warm_water must be positive, got %v", s.MaxConsumptionWarmWater))
	}

	return err
}
