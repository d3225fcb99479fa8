package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/internal/storage/sqlite"
	"github.com/chrissnell/wastealarm/pkg/config"
	"go.uber.org/zap"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to an existing SQLite alarm database (optional)")
	)
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> [-sqlite <alarms.db>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Test")
	fmt.Println("==================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	cfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nStorage:")
	switch {
	case cfg.Storage.Postgres != nil:
		fmt.Println("  backend: postgres")
	case cfg.Storage.SQLite != nil:
		fmt.Printf("  backend: sqlite (%s)\n", cfg.Storage.SQLite.Path)
	}

	fmt.Println("\nAPI:")
	fmt.Printf("  listen: %s:%d\n", cfg.API.ListenAddr, cfg.API.Port)
	fmt.Printf("  tls: %v\n", cfg.API.Cert != "")

	fmt.Println("\nClassifier:")
	fmt.Printf("  workers: %d\n", cfg.Classifier.Workers)
	fmt.Printf("  cache ttl: %s\n", cfg.Classifier.CacheTTL)

	seed := pattern.DefaultSettings()
	if cfg.Pattern != nil {
		seed = *cfg.Pattern
		fmt.Println("\nPattern seed from configuration:")
	} else {
		fmt.Println("\nNo pattern block; a fresh store starts with the defaults:")
	}
	printSettings(seed)

	if err := storage.ValidateSettings(seed); err != nil {
		fmt.Printf("✗ Pattern seed is invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Pattern seed is valid")

	if *sqliteFile == "" {
		fmt.Println("\nTest completed!")
		return
	}

	// The seed only applies to a fresh store, so an existing database may
	// hold different settings.
	fmt.Printf("\nComparing with stored settings: %s\n", *sqliteFile)
	store, err := sqlite.OpenExisting(*sqliteFile, zap.NewNop().Sugar())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening SQLite store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	stored, err := store.Settings(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stored settings: %v\n", err)
		os.Exit(1)
	}

	if stored == seed {
		fmt.Println("✓ Stored settings match the configuration")
	} else {
		fmt.Println("✗ Stored settings differ from the configuration")
		printSettingsDiff(seed, stored)
	}

	fmt.Println("\nTest completed!")
}

func printSettings(s pattern.Settings) {
	fmt.Printf("  continuous threshold:        %d\n", s.ContinuousThreshold)
	fmt.Printf("  high consumption multiplier: %.2f\n", s.HighConsumptionMultiplier)
	fmt.Printf("  min pattern occurrences:     %d\n", s.MinPatternOccurrences)
	fmt.Printf("  max warm water consumption:  %.2f m³\n", s.MaxConsumptionWarmWater)
	fmt.Printf("  night hours:                 %d-%d\n", s.NightHourStart, s.NightHourEnd)
	fmt.Printf("  morning peak:                %d-%d\n", s.MorningPeakStart, s.MorningPeakEnd)
	fmt.Printf("  evening peak:                %d-%d\n", s.EveningPeakStart, s.EveningPeakEnd)
}

func printSettingsDiff(yaml, stored pattern.Settings) {
	if yaml.ContinuousThreshold != stored.ContinuousThreshold {
		fmt.Printf("  continuous threshold: YAML=%d, SQLite=%d\n", yaml.ContinuousThreshold, stored.ContinuousThreshold)
	}
	if yaml.HighConsumptionMultiplier != stored.HighConsumptionMultiplier {
		fmt.Printf("  high consumption multiplier: YAML=%.2f, SQLite=%.2f\n", yaml.HighConsumptionMultiplier, stored.HighConsumptionMultiplier)
	}
	if yaml.MinPatternOccurrences != stored.MinPatternOccurrences {
		fmt.Printf("  min pattern occurrences: YAML=%d, SQLite=%d\n", yaml.MinPatternOccurrences, stored.MinPatternOccurrences)
	}
	if yaml.MaxConsumptionWarmWater != stored.MaxConsumptionWarmWater {
		fmt.Printf("  max warm water consumption: YAML=%.2f, SQLite=%.2f\n", yaml.MaxConsumptionWarmWater, stored.MaxConsumptionWarmWater)
	}
	if yaml.Night() != stored.Night() {
		fmt.Printf("  night hours: YAML=%d-%d, SQLite=%d-%d\n", yaml.NightHourStart, yaml.NightHourEnd, stored.NightHourStart, stored.NightHourEnd)
	}
	if yaml.Morning() != stored.Morning() {
		fmt.Printf("  morning peak: YAML=%d-%d, SQLite=%d-%d\n", yaml.MorningPeakStart, yaml.MorningPeakEnd, stored.MorningPeakStart, stored.MorningPeakEnd)
	}
	if yaml.Evening() != stored.Evening() {
		fmt.Printf("  evening peak: YAML=%d-%d, SQLite=%d-%d\n", yaml.EveningPeakStart, yaml.EveningPeakEnd, stored.EveningPeakStart, stored.EveningPeakEnd)
	}
}
