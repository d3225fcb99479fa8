package pattern

import "fmt"

// Verdict is the outcome of classifying one meter.
type Verdict int

const (
	WarmWater Verdict = iota
	Waste
)

func (v Verdict) String() string {
	if v == Waste {
		return "waste"
	}
	return "warm_water"
}

// MarshalText renders the verdict as "waste" or "warm_water".
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses "waste" or "warm_water".
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waste":
		*v = Waste
	case "warm_water":
		*v = WarmWater
	default:
		return fmt.Errorf("unknown verdict %q", text)
	}
	return nil
}

// Rule awards Points to the Toward side when Match holds.
type Rule struct {
	Name   string
	Toward Verdict
	Points int
	Match  func(sig Signals, s Settings) bool
}

// RuleGroup is an ordered list of rules of which at most one fires: the
// first that matches.
type RuleGroup struct {
	Name  string
	Rules []Rule
}

// Evaluate returns the first matching rule of the group.
func (g RuleGroup) Evaluate(sig Signals, s Settings) (Rule, bool) {
	for _, r := range g.Rules {
		if r.Match(sig, s) {
			return r, true
		}
	}
	return Rule{}, false
}

// ScoringRules is the rule table behind Analyze. Groups are evaluated
// independently of each other.
var ScoringRules = []RuleGroup{
	{
		Name: "mean_consumption",
		Rules: []Rule{
			{"mean_below_0.3", WarmWater, 3, func(sig Signals, _ Settings) bool { return sig.MeanConsumption < 0.3 }},
			{"mean_below_warm_water_max", WarmWater, 2, func(sig Signals, s Settings) bool { return sig.MeanConsumption < s.MaxConsumptionWarmWater }},
			{"mean_above_1.5", Waste, 3, func(sig Signals, _ Settings) bool { return sig.MeanConsumption > 1.5 }},
			{"mean_above_1.0", Waste, 2, func(sig Signals, _ Settings) bool { return sig.MeanConsumption > 1.0 }},
		},
	},
	{
		Name: "small_consumption_ratio",
		Rules: []Rule{
			{"small_ratio_above_0.8", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.SmallConsumptionRatio > 0.8 }},
			{"small_ratio_above_0.6", WarmWater, 1, func(sig Signals, _ Settings) bool { return sig.SmallConsumptionRatio > 0.6 }},
			{"small_ratio_below_0.3", Waste, 2, func(sig Signals, _ Settings) bool { return sig.SmallConsumptionRatio < 0.3 }},
		},
	},
	{
		Name: "night_ratio",
		Rules: []Rule{
			{"night_above_0.3", Waste, 3, func(sig Signals, _ Settings) bool { return sig.NightRatio > 0.3 }},
			{"night_above_0.15", Waste, 2, func(sig Signals, _ Settings) bool { return sig.NightRatio > 0.15 }},
			{"night_below_0.05", WarmWater, 1, func(sig Signals, _ Settings) bool { return sig.NightRatio < 0.05 }},
		},
	},
	{
		Name: "morning_ratio",
		Rules: []Rule{
			{"morning_above_0.25", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.MorningRatio > 0.25 }},
			{"morning_above_0.15", WarmWater, 1, func(sig Signals, _ Settings) bool { return sig.MorningRatio > 0.15 }},
		},
	},
	{
		Name: "evening_ratio",
		Rules: []Rule{
			{"evening_above_0.3", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.EveningRatio > 0.3 }},
			{"evening_above_0.2", WarmWater, 1, func(sig Signals, _ Settings) bool { return sig.EveningRatio > 0.2 }},
		},
	},
	{
		Name: "peak_ratio",
		Rules: []Rule{
			{"peak_above_0.5", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.PeakRatio > 0.5 }},
		},
	},
	{
		Name: "max_streak",
		Rules: []Rule{
			{"streak_at_least_6", Waste, 4, func(sig Signals, _ Settings) bool { return sig.MaxStreak >= 6 }},
			{"streak_at_least_threshold", Waste, 2, func(sig Signals, s Settings) bool { return sig.MaxStreak >= s.ContinuousThreshold }},
			{"streak_at_most_2", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.MaxStreak <= 2 }},
		},
	},
	{
		Name: "long_streaks",
		Rules: []Rule{
			{"long_streaks_at_least_5", Waste, 3, func(sig Signals, _ Settings) bool { return sig.LongStreaks >= 5 }},
			{"long_streaks_at_least_3", Waste, 2, func(sig Signals, _ Settings) bool { return sig.LongStreaks >= 3 }},
		},
	},
	{
		Name: "records_per_day",
		Rules: []Rule{
			{"per_day_above_8", Waste, 3, func(sig Signals, _ Settings) bool { return sig.RecordsPerDay > 8 }},
			{"per_day_above_5", Waste, 2, func(sig Signals, _ Settings) bool { return sig.RecordsPerDay > 5 }},
			{"per_day_below_3", WarmWater, 2, func(sig Signals, _ Settings) bool { return sig.RecordsPerDay < 3 }},
		},
	},
	{
		Name: "hour_spread_warm_water",
		Rules: []Rule{
			{"many_hours_small_mean", WarmWater, 2, func(sig Signals, s Settings) bool {
				return sig.UniqueHours >= 10 && sig.MeanConsumption < s.MaxConsumptionWarmWater
			}},
		},
	},
	{
		Name: "hour_spread_waste",
		Rules: []Rule{
			{"few_hours_large_mean", Waste, 2, func(sig Signals, _ Settings) bool {
				return sig.UniqueHours <= 5 && sig.MeanConsumption > 1.0
			}},
		},
	},
	{
		Name: "variance_warm_water",
		Rules: []Rule{
			{"erratic_small_draws", WarmWater, 2, func(sig Signals, s Settings) bool {
				return sig.CV > 0.5 && sig.MeanConsumption < s.MaxConsumptionWarmWater
			}},
		},
	},
	{
		Name: "variance_waste",
		Rules: []Rule{
			{"steady_large_draws", Waste, 2, func(sig Signals, _ Settings) bool {
				return sig.CV < 0.3 && sig.MeanConsumption > 0.8
			}},
		},
	},
}
