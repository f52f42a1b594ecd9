// Package config loads the balancer configuration: built-in defaults, then an
// optional TOML or YAML file, then JB_ environment variables.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/selector"
)

const envPrefix = "JB_"

var ErrInvalidConfig = errors.BadRequest("CONFIGURATION", "invalid configuration")

type Config struct {
	Balancer  BalancerConfig  `koanf:"balancer"`
	Tasks     []TaskConfig    `koanf:"tasks"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Logging   LoggingConfig   `koanf:"logging"`
	Registry  RegistryConfig  `koanf:"registry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type BalancerConfig struct {
	Algorithm string `koanf:"algorithm"`
	// Seed makes the random algorithms reproducible; 0 keeps a time seed.
	Seed int64 `koanf:"seed"`
}

type TaskConfig struct {
	ID     string `koanf:"id"`
	Weight *int64 `koanf:"weight"`
}

type RateLimitConfig struct {
	// Kind is one of none, leakybucket or tokenbucket.
	Kind     string        `koanf:"kind"`
	Capacity int64         `koanf:"capacity"`
	FillRate time.Duration `koanf:"fill_rate"`
	Rate     float64       `koanf:"rate"`
	Burst    int           `koanf:"burst"`
}

type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// Log converts the section into log.Config.
func (c LoggingConfig) Log() log.Config {
	return log.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

type RegistryConfig struct {
	// Endpoints of etcd; discovery is disabled when empty.
	Endpoints   []string      `koanf:"endpoints"`
	Namespace   string        `koanf:"namespace"`
	Service     string        `koanf:"service"`
	TTL         time.Duration `koanf:"ttl"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

func (c RegistryConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}

type MetricsConfig struct {
	Namespace string `koanf:"namespace"`
}

// Load reads config from path (if provided) then overlays env vars.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}

	// JB_BALANCER_ALGORITHM -> balancer.algorithm, JB_LOGGING_MAX_SIZE_MB -> logging.max_size_mb
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, envPrefix)),
			"_", ".", 1,
		)
		if mapped == "registry.endpoints" {
			return mapped, strings.Split(value, ",")
		}
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, ErrInvalidConfig.WithMetadata(map[string]string{"file": path, "error": "unsupported config format"})
}

// Validate rejects unknown algorithm names, bad tasks and unknown limiter
// kinds.
func (c *Config) Validate() error {
	if _, err := selector.ParseAlgorithm(c.Balancer.Algorithm); err != nil {
		return err
	}
	if _, err := c.BuildTasks(); err != nil {
		return err
	}
	switch c.RateLimit.Kind {
	case "", "none":
	case "leakybucket":
		if c.RateLimit.Capacity <= 0 || c.RateLimit.FillRate <= 0 {
			return ErrInvalidConfig.WithMetadata(map[string]string{"section": "ratelimit", "error": "leakybucket needs capacity and fill_rate"})
		}
	case "tokenbucket":
		if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
			return ErrInvalidConfig.WithMetadata(map[string]string{"section": "ratelimit", "error": "tokenbucket needs rate and burst"})
		}
	default:
		return ErrInvalidConfig.WithMetadata(map[string]string{"section": "ratelimit", "kind": c.RateLimit.Kind})
	}
	if c.Registry.Enabled() && c.Registry.Service == "" {
		return ErrInvalidConfig.WithMetadata(map[string]string{"section": "registry", "error": "service is required"})
	}
	return nil
}

// BuildTasks returns the static task registry in file order. Unset weights
// default to selector.DefaultWeight.
func (c *Config) BuildTasks() ([]selector.Task, error) {
	tasks := make([]selector.Task, 0, len(c.Tasks))
	seen := make(map[string]struct{}, len(c.Tasks))
	for _, tc := range c.Tasks {
		t, err := selector.NewTaskDefault(tc.ID, tc.Weight)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t.ID]; ok {
			return nil, ErrInvalidConfig.WithMetadata(map[string]string{"task": t.ID, "error": "duplicate task id"})
		}
		seen[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
