package pattern

import "slices"

// Analysis is the full outcome of classifying one meter's alarms.
type Analysis struct {
	Meter          string   `json:"meter"`
	Records        int      `json:"records"`
	ShortSeries    bool     `json:"short_series"`
	Signals        Signals  `json:"signals"`
	WasteScore     int      `json:"waste_score"`
	WarmWaterScore int      `json:"warm_water_score"`
	Fired          []string `json:"fired_rules"`
	Verdict        Verdict  `json:"verdict"`
}

// Net is the waste score minus the warm-water score.
func (a Analysis) Net() int {
	return a.WasteScore - a.WarmWaterScore
}

// MeterSeries holds all alarm records of a single meter.
type MeterSeries struct {
	Meter   string
	Records []AlarmRecord
}

// Analyze scores the series against the rule table and decides its verdict.
//
// Series with fewer than MinPatternOccurrences records are waste without
// scoring. Otherwise a positive net score is waste and anything else,
// including a tie, is warm water.
func Analyze(series MeterSeries, s Settings) Analysis {
	a := Analysis{
		Meter:   series.Meter,
		Records: len(series.Records),
	}

	records := NormalizeAll(series.Records)
	a.Signals = ComputeSignals(records, s)

	// Signals of a short series are informational only.
	if len(records) < s.MinPatternOccurrences {
		a.ShortSeries = true
		a.Verdict = Waste
		return a
	}

	a.WasteScore, a.WarmWaterScore, a.Fired = Score(a.Signals, s)

	if a.Net() > 0 {
		a.Verdict = Waste
	} else {
		a.Verdict = WarmWater
	}
	return a
}

// Score runs every rule group over the signals and totals the points.
func Score(sig Signals, s Settings) (waste, warmWater int, fired []string) {
	for _, g := range ScoringRules {
		r, ok := g.Evaluate(sig, s)
		if !ok {
			continue
		}
		fired = append(fired, r.Name)
		if r.Toward == Waste {
			waste += r.Points
		} else {
			warmWater += r.Points
		}
	}
	return waste, warmWater, fired
}

// Classify reports whether the series looks like waste.
func Classify(series MeterSeries, s Settings) bool {
	return Analyze(series, s).Verdict == Waste
}

// Summarize analyzes every meter in records, busiest meter first.
func Summarize(records []AlarmRecord, s Settings) []Analysis {
	groups := GroupByMeter(records)
	out := make([]Analysis, 0, len(groups))
	for _, g := range groups {
		out = append(out, Analyze(g, s))
	}
	sortByRecords(out)
	return out
}

// SummarizeConcurrent is Summarize with meters analyzed on up to workers
// goroutines. The order of the result does not depend on scheduling.
func SummarizeConcurrent(records []AlarmRecord, s Settings, workers int) []Analysis {
	out := analyzeAll(GroupByMeter(records), s, workers)
	sortByRecords(out)
	return out
}

func sortByRecords(out []Analysis) {
	slices.SortStableFunc(out, func(a, b Analysis) int {
		return b.Records - a.Records
	})
}
