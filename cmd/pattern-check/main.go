package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/wastealarm/internal/app"
	"github.com/chrissnell/wastealarm/internal/log"
	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/pkg/config"
	"github.com/fatih/color"
)

func main() {
	var (
		cfgFile   = flag.String("config", "config.yaml", "Path to the YAML configuration file")
		meter     = flag.String("meter", "", "Only show this meter (EAN code)")
		wasteOnly = flag.Bool("waste", false, "Only show meters classified as waste")
		showRules = flag.Bool("rules", false, "List the rules that fired for each meter")
		noColor   = flag.Bool("no-color", false, "Disable colored output")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := app.OpenExistingStore(cfg, log.Named("storage"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	settings, err := store.Settings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading settings: %v\n", err)
		os.Exit(1)
	}
	alarms, err := store.Alarms(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading alarms: %v\n", err)
		os.Exit(1)
	}

	analyses := pattern.SummarizeConcurrent(alarms, settings, cfg.Classifier.Workers)

	report := reportOptions{
		meter:     *meter,
		wasteOnly: *wasteOnly,
		showRules: *showRules,
	}
	render(os.Stdout, analyses, report)
}
