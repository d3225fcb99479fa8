// Package config loads the service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
)

const (
	DefaultSQLitePath = "wastealarm.db"
	DefaultListenAddr = "0.0.0.0"
	DefaultPort       = 8080
	DefaultCacheTTL   = 5 * time.Minute
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStorageConfig() (*StorageData, error)
	GetAPIConfig() (*APIData, error)
	GetClassifierConfig() (*ClassifierData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Storage    StorageData    `json:"storage"`
	API        APIData        `json:"api"`
	Classifier ClassifierData `json:"classifier"`

	// Pattern seeds the classifier settings of a freshly created store.
	// Nil leaves the built-in defaults in place.
	Pattern *pattern.Settings `json:"pattern,omitempty"`
}

// StorageData selects and configures the storage backend. Exactly one
// backend may be set.
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

// APIData configures the REST server
type APIData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// ClassifierData tunes how the classifier is run, not how it decides
type ClassifierData struct {
	// Workers bounds the meters classified in parallel. Zero means no limit.
	Workers  int           `json:"workers"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// ApplyDefaults fills unset fields and rejects contradictory storage blocks
func (c *ConfigData) ApplyDefaults() error {
	if c.Storage.SQLite != nil && c.Storage.Postgres != nil {
		return fmt.Errorf("only one storage backend may be configured, found both sqlite and postgres")
	}
	if c.Storage.SQLite == nil && c.Storage.Postgres == nil {
		c.Storage.SQLite = &SQLiteData{}
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	if c.Storage.Postgres != nil && c.Storage.Postgres.ConnectionString == "" {
		return fmt.Errorf("postgres storage requires a connection string")
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultPort
	}
	if (c.API.Cert == "") != (c.API.Key == "") {
		return fmt.Errorf("api cert and key must be set together")
	}

	if c.Classifier.Workers < 0 {
		return fmt.Errorf("classifier workers must not be negative, got %d", c.Classifier.Workers)
	}
	if c.Classifier.CacheTTL <= 0 {
		c.Classifier.CacheTTL = DefaultCacheTTL
	}

	return nil
}
