package pattern

// Settings parameterizes the classifier. It is passed by value and never
// modified by this package.
type Settings struct {
	// ContinuousThreshold is the streak length (hours) counted as a long run.
	ContinuousThreshold int `json:"continuous_threshold" yaml:"continuous_threshold"`

	// HighConsumptionMultiplier is kept as a configurable knob; scoring does
	// not use it.
	HighConsumptionMultiplier float64 `json:"high_consumption_multiplier" yaml:"high_consumption_multiplier"`

	// MinPatternOccurrences is the alarm count below which a meter is always
	// classified as waste.
	MinPatternOccurrences int `json:"min_pattern_occurrences" yaml:"min_pattern_occurrences"`

	// MaxConsumptionWarmWater is the ceiling (m³) of a typical warm-water draw.
	MaxConsumptionWarmWater float64 `json:"max_consumption_warm_water" yaml:"max_consumption_warm_water"`

	NightHourStart   int `json:"night_hour_start" yaml:"night_hour_start"`
	NightHourEnd     int `json:"night_hour_end" yaml:"night_hour_end"`
	MorningPeakStart int `json:"morning_peak_start" yaml:"morning_peak_start"`
	MorningPeakEnd   int `json:"morning_peak_end" yaml:"morning_peak_end"`
	EveningPeakStart int `json:"evening_peak_start" yaml:"evening_peak_start"`
	EveningPeakEnd   int `json:"evening_peak_end" yaml:"evening_peak_end"`
}

// DefaultSettings returns the settings a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		ContinuousThreshold:       3,
		HighConsumptionMultiplier: 2.0,
		MinPatternOccurrences:     4,
		MaxConsumptionWarmWater:   0.8,
		NightHourStart:            0,
		NightHourEnd:              5,
		MorningPeakStart:          6,
		MorningPeakEnd:            9,
		EveningPeakStart:          17,
		EveningPeakEnd:            22,
	}
}

// HourWindow is an inclusive range of hours of the day.
type HourWindow struct {
	Start int
	End   int
}

// Contains reports whether hour lies within the window, bounds included.
func (w HourWindow) Contains(hour int) bool {
	return hour >= w.Start && hour <= w.End
}

func (s Settings) Night() HourWindow   { return HourWindow{s.NightHourStart, s.NightHourEnd} }
func (s Settings) Morning() HourWindow { return HourWindow{s.MorningPeakStart, s.MorningPeakEnd} }
func (s Settings) Evening() HourWindow { return HourWindow{s.EveningPeakStart, s.EveningPeakEnd} }
