package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/fatih/color"
)

type reportOptions struct {
	meter     string
	wasteOnly bool
	showRules bool
}

var (
	wasteColor  = color.New(color.FgRed, color.Bold)
	warmColor   = color.New(color.FgGreen)
	shortColor  = color.New(color.FgYellow)
	headerColor = color.New(color.Bold)
	dimColor    = color.New(color.FgHiBlack)
)

// render prints one line per meter followed by totals.
func render(w io.Writer, analyses []pattern.Analysis, opts reportOptions) {
	headerColor.Fprintf(w, "%-20s %-11s %6s %8s %7s %7s %7s %5s %9s\n",
		"METER", "VERDICT", "ALARMS", "MEAN m³", "NIGHT", "MORNING", "EVENING", "HOURS", "SCORE")

	var shown, waste, warm, wasteAlarms, warmAlarms int
	for _, a := range analyses {
		if opts.meter != "" && a.Meter != opts.meter {
			continue
		}
		if opts.wasteOnly && a.Verdict != pattern.Waste {
			continue
		}
		shown++

		if a.Verdict == pattern.Waste {
			waste++
			wasteAlarms += a.Records
		} else {
			warm++
			warmAlarms += a.Records
		}

		fmt.Fprintf(w, "%-20s %s %6d %8.3f %6.1f%% %6.1f%% %6.1f%% %5d %9s\n",
			a.Meter,
			verdictLabel(a),
			a.Records,
			a.Signals.MeanConsumption,
			a.Signals.NightRatio*100,
			a.Signals.MorningRatio*100,
			a.Signals.EveningRatio*100,
			a.Signals.UniqueHours,
			scoreLabel(a),
		)

		if opts.showRules && len(a.Fired) > 0 {
			dimColor.Fprintf(w, "    fired: %s\n", strings.Join(a.Fired, ", "))
		}
	}

	if shown == 0 {
		fmt.Fprintln(w, "no meters to show")
		return
	}

	fmt.Fprintln(w)
	wasteColor.Fprintf(w, "waste: %d meters, %d alarms\n", waste, wasteAlarms)
	warmColor.Fprintf(w, "warm water: %d meters, %d alarms\n", warm, warmAlarms)
}

func verdictLabel(a pattern.Analysis) string {
	label := fmt.Sprintf("%-11s", a.Verdict.String())
	switch {
	case a.ShortSeries:
		return shortColor.Sprint(label)
	case a.Verdict == pattern.Waste:
		return wasteColor.Sprint(label)
	default:
		return warmColor.Sprint(label)
	}
}

func scoreLabel(a pattern.Analysis) string {
	if a.ShortSeries {
		return "short"
	}
	return fmt.Sprintf("%d/%d", a.WasteScore, a.WarmWaterScore)
}
