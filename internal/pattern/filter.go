package pattern

import (
	"golang.org/x/sync/errgroup"
)

// FilterResult partitions an alarm set into the waste view and what was
// filtered out as warm water.
type FilterResult struct {
	Waste           []AlarmRecord      `json:"waste"`
	Verdicts        map[string]Verdict `json:"verdicts"`
	FilteredRecords int                `json:"filtered_records"`
	FilteredMeters  int                `json:"filtered_meters"`
}

// GroupByMeter splits records per meter. Groups are returned in the order
// their meter first appears; records keep their input order.
func GroupByMeter(records []AlarmRecord) []MeterSeries {
	index := make(map[string]int)
	var groups []MeterSeries
	for _, r := range records {
		i, ok := index[r.Meter]
		if !ok {
			i = len(groups)
			index[r.Meter] = i
			groups = append(groups, MeterSeries{Meter: r.Meter})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// FilterWaste classifies every meter and keeps the records of waste meters.
// Returned records are normalized.
func FilterWaste(records []AlarmRecord, s Settings) FilterResult {
	groups := GroupByMeter(NormalizeAll(records))
	verdicts := make([]Verdict, len(groups))
	for i, g := range groups {
		verdicts[i] = Analyze(g, s).Verdict
	}
	return collect(groups, verdicts)
}

// FilterWasteConcurrent is FilterWaste with meters classified on up to
// workers goroutines. workers <= 0 means no limit.
func FilterWasteConcurrent(records []AlarmRecord, s Settings, workers int) FilterResult {
	groups := GroupByMeter(NormalizeAll(records))
	analyses := analyzeAll(groups, s, workers)

	verdicts := make([]Verdict, len(analyses))
	for i, a := range analyses {
		verdicts[i] = a.Verdict
	}
	return collect(groups, verdicts)
}

// analyzeAll runs Analyze over groups on a bounded errgroup. Results keep the
// order of groups.
func analyzeAll(groups []MeterSeries, s Settings, workers int) []Analysis {
	out := make([]Analysis, len(groups))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range groups {
		g.Go(func() error {
			out[i] = Analyze(groups[i], s)
			return nil
		})
	}
	// Analyze never fails.
	_ = g.Wait()

	return out
}

func collect(groups []MeterSeries, verdicts []Verdict) FilterResult {
	res := FilterResult{
		Waste:    []AlarmRecord{},
		Verdicts: make(map[string]Verdict, len(groups)),
	}
	for i, g := range groups {
		res.Verdicts[g.Meter] = verdicts[i]
		if verdicts[i] == Waste {
			res.Waste = append(res.Waste, g.Records...)
			continue
		}
		res.FilteredRecords += len(g.Records)
		res.FilteredMeters++
	}
	return res
}
