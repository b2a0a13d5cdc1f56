// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and PERFSCORE_ env vars over those defaults.
// - Errors returned from this package wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory, mongo or sqlite.
	Store string `koanf:"store"`

	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	SQLitePath    string `koanf:"sqlite_path"`

	// EventQueueSize bounds the in-memory task event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of event workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event id deduplication ring.
	DedupeSize int `koanf:"dedupe_size"`

	// CacheTTLSeconds is the lazy wholesale clear interval of the team caches.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// HistoryLimit bounds the score history per record.
	HistoryLimit int `koanf:"history_limit"`

	// RecomputeRate and RecomputeBurst throttle full recomputes per second.
	// A rate of zero disables the limiter.
	RecomputeRate  float64 `koanf:"recompute_rate"`
	RecomputeBurst int     `koanf:"recompute_burst"`

	// KafkaBrokers is a comma separated broker list. Empty disables ingest.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
	KafkaGroup   string `koanf:"kafka_group"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		Store:           StoreMemory,
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "tasktracker",
		SQLitePath:      "perfscore.db",
		EventQueueSize:  10_000,
		WorkerCount:     runtime.NumCPU() * 2,
		DedupeSize:      100_000,
		CacheTTLSeconds: 300,
		HistoryLimit:    100,
		RecomputeRate:   50,
		RecomputeBurst:  10,
		KafkaTopic:      "task-events",
		KafkaGroup:      "perfscore",
	}
}

// CacheTTL returns the team cache clear interval.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
