package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/perfscore/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PERFSCORE_ADDR", ":8080")
			_ = os.Setenv("PERFSCORE_QUEUE_SIZE", "500")
			_ = os.Setenv("PERFSCORE_WORKER_COUNT", "16")
			_ = os.Setenv("PERFSCORE_STORE", "sqlite")
			_ = os.Setenv("PERFSCORE_SQLITE_PATH", "/tmp/scores.db")
			_ = os.Setenv("PERFSCORE_RECOMPUTE_RATE", "2.5")
			_ = os.Setenv("PERFSCORE_KAFKA_BROKERS", "kafka:9092")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/scores.db")
				convey.So(cfg.RecomputeRate, convey.ShouldEqual, 2.5)
				convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"kafka:9092"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# file layer
addr: ":9090"
queue_size: 3000
worker_count: 24
store: mongo
mongo_uri: "mongodb://mongo:27017"
history_limit: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PERFSCORE_CONFIG", tmpFile)
			_ = os.Setenv("PERFSCORE_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreMongo)
				convey.So(cfg.MongoURI, convey.ShouldEqual, "mongodb://mongo:27017")
				convey.So(cfg.MongoDatabase, convey.ShouldEqual, "tasktracker")
				convey.So(cfg.HistoryLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PERFSCORE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PERFSCORE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PERFSCORE_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid values", func() {
			cases := map[string]string{
				"PERFSCORE_ADDR":          "",
				"PERFSCORE_STORE":         "cassandra",
				"PERFSCORE_HISTORY_LIMIT": "0",
				"PERFSCORE_LOG_FORMAT":    "xml",
				"PERFSCORE_WORKER_COUNT":  "-1",
			}
			for key, val := range cases {
				clearConfigEnvVars()
				_ = os.Setenv(key, val)

				cfg, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			}
			clearConfigEnvVars()
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PERFSCORE_CONFIG",
		"PERFSCORE_ADDR",
		"PERFSCORE_STORE",
		"PERFSCORE_SQLITE_PATH",
		"PERFSCORE_QUEUE_SIZE",
		"PERFSCORE_WORKER_COUNT",
		"PERFSCORE_HISTORY_LIMIT",
		"PERFSCORE_LOG_FORMAT",
		"PERFSCORE_RECOMPUTE_RATE",
		"PERFSCORE_KAFKA_BROKERS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "perfscore-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
