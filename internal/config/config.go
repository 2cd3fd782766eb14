package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the optional configuration file looked up in the config dir.
const FileName = "numpipe.cfg.json"

// HarnessConfig drives the reader/writer harness.
type HarnessConfig struct {
	Writers int           `json:"writers" mapstructure:"writers"`
	Readers int           `json:"readers" mapstructure:"readers"`
	Values  int           `json:"values" mapstructure:"values"`
	Jitter  time.Duration `json:"jitter" mapstructure:"jitter"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Config is the startup configuration of the channel and its harness.
type Config struct {
	PipeSize    int           `json:"pipeSize" mapstructure:"pipeSize"`
	MaxPipeSize int           `json:"maxPipeSize" mapstructure:"maxPipeSize"`
	LogLevel    string        `json:"logLevel" mapstructure:"logLevel"`
	Harness     HarnessConfig `json:"harness" mapstructure:"harness"`
}

// Load sets default values, reads the config file from configDir if one
// exists and applies NUMPIPE_* environment overrides.
func Load(configDir string) error {
	viper.SetDefault("pipeSize", 1)
	viper.SetDefault("maxPipeSize", 1<<20)
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("harness.writers", 2)
	viper.SetDefault("harness.readers", 2)
	viper.SetDefault("harness.values", 16)
	viper.SetDefault("harness.jitter", "5ms")
	viper.SetDefault("harness.timeout", "0s")

	viper.SetEnvPrefix("numpipe")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %v", err)
		}
	}

	return nil
}

// Get decodes the loaded settings and validates them.
func Get() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if cfg.PipeSize < 1 {
		return Config{}, fmt.Errorf("pipeSize must be >= 1, got %d", cfg.PipeSize)
	}
	if cfg.PipeSize > cfg.MaxPipeSize {
		return Config{}, fmt.Errorf("pipeSize %d exceeds maxPipeSize %d", cfg.PipeSize, cfg.MaxPipeSize)
	}
	if cfg.Harness.Writers < 0 || cfg.Harness.Readers < 0 || cfg.Harness.Values < 0 {
		return Config{}, fmt.Errorf("harness counts must not be negative")
	}
	if cfg.Harness.Writers*cfg.Harness.Values > 0 && cfg.Harness.Readers == 0 {
		return Config{}, fmt.Errorf("harness writes %d values but has no readers", cfg.Harness.Writers*cfg.Harness.Values)
	}

	return cfg, nil
}
