package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/exporter/internal/core/worker"
	"github.com/vietddude/exporter/internal/export/processor"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = 60 * time.Second
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "./data/exports"
	}
	if cfg.Export.PruneInterval == 0 {
		cfg.Export.PruneInterval = time.Hour
	}

	p := &cfg.Export.Processor
	if p.BatchSize == 0 {
		p.BatchSize = processor.DefaultConfig.BatchSize
	}
	// max_rows: 0 means unset, a negative value means unlimited
	if p.MaxRows == 0 {
		p.MaxRows = processor.DefaultConfig.MaxRows
	}
	if p.Expiration == 0 {
		p.Expiration = processor.DefaultConfig.Expiration
	}

	d := &cfg.Export.Dispatcher
	def := worker.DefaultDispatcherConfig()
	if d.Workers == 0 {
		d.Workers = def.Workers
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = def.MaxAttempts
	}
	if d.EmptySleep == 0 {
		d.EmptySleep = def.EmptySleep
	}
	if d.JobTimeout == 0 {
		d.JobTimeout = def.JobTimeout
	}
}

// Validate reports settings that cannot work.
func (c *AppConfig) Validate() error {
	if c.Engine.URL == "" {
		return fmt.Errorf("engine.url is required")
	}
	if c.Export.Processor.BatchSize < 0 {
		return fmt.Errorf("export.processor.batch_size must not be negative")
	}
	if c.Export.Dispatcher.Workers < 0 {
		return fmt.Errorf("export.dispatcher.workers must not be negative")
	}
	return nil
}
