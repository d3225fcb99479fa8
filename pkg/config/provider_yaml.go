package config

import (
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData with defaults applied
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig struct {
		Storage    StorageYAML    `yaml:"storage,omitempty"`
		API        APIYAML        `yaml:"api,omitempty"`
		Classifier ClassifierYAML `yaml:"classifier,omitempty"`
		Pattern    *PatternYAML   `yaml:"pattern,omitempty"`
	}

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		API: APIData{
			Cert:       yamlConfig.API.Cert,
			Key:        yamlConfig.API.Key,
			Port:       yamlConfig.API.Port,
			ListenAddr: yamlConfig.API.ListenAddr,
		},
		Classifier: ClassifierData{
			Workers: yamlConfig.Classifier.Workers,
		},
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{ConnectionString: yamlConfig.Storage.Postgres.ConnectionString}
	}

	if yamlConfig.Classifier.CacheTTL != "" {
		ttl, err := time.ParseDuration(yamlConfig.Classifier.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier cache-ttl %q: %w", yamlConfig.Classifier.CacheTTL, err)
		}
		config.Classifier.CacheTTL = ttl
	}

	if yamlConfig.Pattern != nil {
		s := yamlConfig.Pattern.overlay(pattern.DefaultSettings())
		config.Pattern = &s
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetAPIConfig returns REST server configuration
func (y *YAMLProvider) GetAPIConfig() (*APIData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.API, nil
}

// GetClassifierConfig returns classifier runtime configuration
func (y *YAMLProvider) GetClassifierConfig() (*ClassifierData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Classifier, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

type StorageYAML struct {
	SQLite   *SQLiteYAML   `yaml:"sqlite,omitempty"`
	Postgres *PostgresYAML `yaml:"postgres,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type APIYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type ClassifierYAML struct {
	Workers  int    `yaml:"workers,omitempty"`
	CacheTTL string `yaml:"cache-ttl,omitempty"`
}

// PatternYAML holds a partial settings block; unset keys keep their defaults
type PatternYAML struct {
	ContinuousThreshold       *int     `yaml:"continuous-threshold,omitempty"`
	HighConsumptionMultiplier *float64 `yaml:"high-consumption-multiplier,omitempty"`
	MinPatternOccurrences     *int     `yaml:"min-pattern-occurrences,omitempty"`
	MaxConsumptionWarmWater   *float64 `yaml:"max-consumption-warm-water,omitempty"`
	NightHourStart            *int     `yaml:"night-hour-start,omitempty"`
	NightHourEnd              *int     `yaml:"night-hour-end,omitempty"`
	MorningPeakStart          *int     `yaml:"morning-peak-start,omitempty"`
	MorningPeakEnd            *int     `yaml:"morning-peak-end,omitempty"`
	EveningPeakStart          *int     `yaml:"evening-peak-start,omitempty"`
	EveningPeakEnd            *int     `yaml:"evening-peak-end,omitempty"`
}

func (p PatternYAML) overlay(s pattern.Settings) pattern.Settings {
	setInt(&s.ContinuousThreshold, p.ContinuousThreshold)
	setFloat(&s.HighConsumptionMultiplier, p.HighConsumptionMultiplier)
	setInt(&s.MinPatternOccurrences, p.MinPatternOccurrences)
	setFloat(&s.MaxConsumptionWarmWater, p.MaxConsumptionWarmWater)
	setInt(&s.NightHourStart, p.NightHourStart)
	setInt(&s.NightHourEnd, p.NightHourEnd)
	setInt(&s.MorningPeakStart, p.MorningPeakStart)
	setInt(&s.MorningPeakEnd, p.MorningPeakEnd)
	setInt(&s.EveningPeakStart, p.EveningPeakStart)
	setInt(&s.EveningPeakEnd, p.EveningPeakEnd)
	return s
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
