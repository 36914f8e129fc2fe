package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/mesohops/internal/hops"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// RunConfig represents the complete trajectory run configuration
type RunConfig struct {
	Trajectory TrajectoryConfig `yaml:"trajectory"`
	Store      StoreConfig      `yaml:"store"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

// TrajectoryConfig holds the initial state and requested kinds
type TrajectoryConfig struct {
	Psi0  []hops.Amplitude `yaml:"psi_0"`
	Kinds []string         `yaml:"kinds"`
}

// StoreConfig selects and configures the run store backend
type StoreConfig struct {
	Backend   string        `yaml:"backend"`    // memory|file|redis|postgres
	Dir       string        `yaml:"dir"`        // File backend directory
	RedisAddr string        `yaml:"redis_addr"` // host:port
	RedisDB   int           `yaml:"redis_db"`
	Prefix    string        `yaml:"prefix"` // Redis key prefix
	TTL       time.Duration `yaml:"ttl"`    // Redis record TTL, 0 keeps forever
	DSN       string        `yaml:"dsn"`    // Postgres connection string
	Timeout   time.Duration `yaml:"timeout"`
}

// BreakerConfig configures the circuit breaker around remote stores
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"` // Consecutive failures to open
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // Time spent open before half-open
}

// MonitorConfig configures the monitoring HTTP server
type MonitorConfig struct {
	Host  string  `yaml:"host"`
	Port  int     `yaml:"port"`
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DefaultRunConfig returns a configuration usable without a file
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Store: StoreConfig{
			Backend: StoreFile,
			Dir:     "out/runs",
			Prefix:  "mesohops:run:",
			Timeout: 5 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
		},
		Monitor: MonitorConfig{
			Host:  "127.0.0.1", // Local-only by default
			Port:  8080,
			RPS:   20,
			Burst: 40,
		},
	}
}

// LoadRunConfig loads run configuration from a YAML file on top of the defaults
func LoadRunConfig(configPath string) (*RunConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}

	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides store settings from MESOHOPS_* environment variables
func (c *RunConfig) ApplyEnv() {
	if v := os.Getenv("MESOHOPS_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("MESOHOPS_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("MESOHOPS_POSTGRES_DSN"); v != "" {
		c.Store.DSN = v
	}
}

// Validate ensures the configuration is valid and consistent
func (c *RunConfig) Validate() error {
	for i, kind := range c.Trajectory.Kinds {
		if strings.TrimSpace(kind) == "" {
			return fmt.Errorf("trajectory kinds[%d]: %w", i, &hops.InvalidKindError{Kind: kind})
		}
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker open_timeout must be positive, got %s", c.Breaker.OpenTimeout)
	}

	if c.Monitor.Port <= 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("monitor port must be between 1 and 65535, got %d", c.Monitor.Port)
	}
	if c.Monitor.RPS <= 0 {
		return fmt.Errorf("monitor rps must be positive, got %f", c.Monitor.RPS)
	}
	if c.Monitor.Burst < 1 {
		return fmt.Errorf("monitor burst must be at least 1, got %d", c.Monitor.Burst)
	}

	return nil
}

// Validate ensures the store configuration matches its backend
func (s *StoreConfig) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}

	switch s.Backend {
	case StoreMemory:
	case StoreFile:
		if s.Dir == "" {
			return fmt.Errorf("dir cannot be empty for file backend")
		}
	case StoreRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("redis_addr cannot be empty for redis backend")
		}
		if s.TTL < 0 {
			return fmt.Errorf("ttl cannot be negative, got %s", s.TTL)
		}
	case StorePostgres:
		if s.DSN == "" {
			return fmt.Errorf("dsn cannot be empty for postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	return nil
}
