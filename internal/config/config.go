package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Engine   EngineConfig   `koanf:"engine"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Client   ClientConfig   `koanf:"client"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type JobsConfig struct {
	Dir       string `koanf:"dir"`
	Workers   int    `koanf:"workers"`
	QueueSize int    `koanf:"queue_size"`
}

type EngineConfig struct {
	Backend string `koanf:"backend"`
	Threads int    `koanf:"threads"`
}

type AnalysisConfig struct {
	Colormap string `koanf:"colormap"`
}

type ClientConfig struct {
	ServerURL    string `koanf:"server_url"`
	PollInterval string `koanf:"poll_interval"`
	Timeout      string `koanf:"timeout"`
	OutputDir    string `koanf:"output_dir"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PollInterval parses the client poll interval, falling back to 2s.
func (c ClientConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// TimeoutDuration parses the client HTTP timeout, falling back to 30s.
func (c ClientConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Load reads config from a TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: SUNRAY_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("SUNRAY_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "SUNRAY_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
