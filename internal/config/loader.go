package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PERFSCORE_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PERFSCORE_CONFIG is set
//  3. env (prefix PERFSCORE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// PERFSCORE_QUEUE_SIZE -> queue_size. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.EventQueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive")
	case c.DedupeSize < 0:
		return invalid("dedupe_size must not be negative")
	case c.CacheTTLSeconds < 0:
		return invalid("cache_ttl_seconds must not be negative")
	case c.HistoryLimit <= 0:
		return invalid("history_limit must be positive")
	case c.RecomputeRate < 0:
		return invalid("recompute_rate must not be negative")
	case c.RecomputeBurst <= 0:
		return invalid("recompute_burst must be positive")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got " + c.LogFormat)
	}

	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return invalid("mongo store needs mongo_uri and mongo_database")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite store needs sqlite_path")
		}
	default:
		return invalid("unknown store " + c.Store)
	}

	if len(c.Brokers()) > 0 && c.KafkaTopic == "" {
		return invalid("kafka_topic must be set when kafka_brokers is")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
