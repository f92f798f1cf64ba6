package config

import (
	"errors"
	"fmt"
	"invoice_router/internal/assignment"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the process configuration. It is read from an optional YAML
// file and then overridden from the environment.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Assignment   assignment.Config  `yaml:"assignment"`
	Directory    DirectoryConfig    `yaml:"directory"`
	Notification NotificationConfig `yaml:"notification"`
	Signing      SigningConfig      `yaml:"signing"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DispatchConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type DirectoryConfig struct {
	Path string `yaml:"path"`
}

type NotificationConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type SigningConfig struct {
	Secret string `yaml:"secret"`
}

type TracingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Dispatch: DispatchConfig{
			Backend:   BackendMemory,
			RedisAddr: "localhost:6379",
		},
		Assignment: assignment.DefaultConfig(),
		Directory: DirectoryConfig{
			Path: "configs/org.yaml",
		},
		Notification: NotificationConfig{
			Workers:   3,
			QueueSize: 1000,
		},
		Signing: SigningConfig{
			Secret: "development-signing-secret",
		},
	}
}

// Load reads path when it is non-empty, layers it over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		"LOG_LEVEL":        &c.Logging.Level,
		"HTTP_ADDR":        &c.Server.Addr,
		"METRICS_ADDR":     &c.Metrics.Addr,
		"DISPATCH_BACKEND": &c.Dispatch.Backend,
		"REDIS_ADDR":       &c.Dispatch.RedisAddr,
		"POSTGRES_DSN":     &c.Dispatch.PostgresDSN,
		"SIGNING_SECRET":   &c.Signing.Secret,
		"ORG_DIRECTORY":    &c.Directory.Path,
	}
	for key, target := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*target = v
		}
	}
}

// Validate returns every invalid setting joined into one error, or nil.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr must be set when metrics are enabled"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.Dispatch.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Dispatch.RedisAddr == "" {
			errs = append(errs, errors.New("dispatch.redis_addr must be set for the redis backend"))
		}
	case BackendPostgres:
		if c.Dispatch.PostgresDSN == "" {
			errs = append(errs, errors.New("dispatch.postgres_dsn must be set for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("dispatch.backend %q is not one of memory, redis, postgres", c.Dispatch.Backend))
	}

	if c.Assignment.MaxBackups < 0 {
		errs = append(errs, errors.New("assignment.max_backups must be >= 0"))
	}
	if c.Assignment.BaseProcessingHours < 0 || c.Assignment.HoursPerWorkItem < 0 {
		errs = append(errs, errors.New("assignment processing hours must be >= 0"))
	}
	if c.Directory.Path == "" {
		errs = append(errs, errors.New("directory.path must be set"))
	}
	if c.Notification.Workers <= 0 {
		errs = append(errs, errors.New("notification.workers must be > 0"))
	}
	if c.Signing.Secret == "" {
		errs = append(errs, errors.New("signing.secret must be set"))
	}

	return errors.Join(errs...)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}
