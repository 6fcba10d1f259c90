package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Scripts   ScriptsConfig   `toml:"scripts"`
}

type SchedulerConfig struct {
	// MaxParallelism bounds the worker pool; -1 means all available cores.
	MaxParallelism int `toml:"max_parallelism"`
	// MinBatchSizeForParallel: batches smaller than this run sequentially.
	MinBatchSizeForParallel int           `toml:"min_batch_size_for_parallel"`
	TickRate                time.Duration `toml:"tick_rate"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects construction-time errors before anything is built from
// the config.
func (c *Config) Validate() error {
	if c.Scheduler.MaxParallelism == 0 || c.Scheduler.MaxParallelism < -1 {
		return fmt.Errorf("scheduler.max_parallelism must be positive or -1, got %d", c.Scheduler.MaxParallelism)
	}
	if c.Scheduler.MinBatchSizeForParallel < 0 {
		return fmt.Errorf("scheduler.min_batch_size_for_parallel must be >= 0, got %d", c.Scheduler.MinBatchSizeForParallel)
	}
	if c.Scheduler.TickRate <= 0 {
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", c.Scheduler.TickRate)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxParallelism:          -1,
			MinBatchSizeForParallel: 2,
			TickRate:                16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
	}
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	return defaults()
}
