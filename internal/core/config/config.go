package config

import (
	"time"

	"github.com/vietddude/exporter/internal/core/worker"
	"github.com/vietddude/exporter/internal/export/processor"
	"github.com/vietddude/exporter/internal/infra/engine"
	redisclient "github.com/vietddude/exporter/internal/infra/redis"
	"github.com/vietddude/exporter/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Engine   engine.Config      `yaml:"engine"`
	Export   ExportConfig       `yaml:"export"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ExportConfig holds settings for assembling and keeping exports.
type ExportConfig struct {
	Dir           string                  `yaml:"dir"`
	PruneInterval time.Duration           `yaml:"prune_interval"` // 0 = pruning disabled
	Processor     processor.Config        `yaml:"processor"`
	Dispatcher    worker.DispatcherConfig `yaml:"dispatcher"`
}
