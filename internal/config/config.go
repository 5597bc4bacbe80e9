// Package config loads the engine's configuration from a YAML file with
// environment-variable overrides, mirroring the layering used throughout the
// rest of the codebase: defaults, then an optional file, then env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SystemMetricsConfig controls the system_metrics poller.
type SystemMetricsConfig struct {
	PollMS        int `yaml:"poll_ms" env:"SYSTEM_METRICS_POLL_MS"`
	RetentionDays int `yaml:"retention_days" env:"SYSTEM_METRICS_RETENTION_DAYS"`
}

// HistorianConfig controls telemetry retention in the time-series store.
type HistorianConfig struct {
	RetentionDays   int `yaml:"retention_days" env:"HISTORIAN_RETENTION_DAYS"`
	CompressionDays int `yaml:"compression_days" env:"HISTORIAN_COMPRESSION_DAYS"`
}

// ScanConfig controls the continuous scan-cycle engine's pacing.
type ScanConfig struct {
	DefaultMS      int     `yaml:"default_ms" env:"FLOW_SCAN_DEFAULT_MS"`
	BudgetFraction float64 `yaml:"budget_fraction" env:"FLOW_SCAN_BUDGET_FRACTION"`
}

// ScriptConfig controls the script sandbox's bounds.
type ScriptConfig struct {
	TimeoutDefaultMS int    `yaml:"timeout_default_ms" env:"FLOW_SCRIPT_TIMEOUT_DEFAULT_MS"`
	TimeoutMaxMS     int    `yaml:"max_ms" env:"FLOW_SCRIPT_TIMEOUT_MAX_MS"`
	AllowedPaths     string `yaml:"allowed_paths" env:"FLOW_SCRIPT_ALLOWED_PATHS"`
}

// AllowedPathList splits the comma-separated AllowedPaths knob. Empty means
// filesystem access from scripts is denied entirely.
func (s ScriptConfig) AllowedPathList() []string {
	if strings.TrimSpace(s.AllowedPaths) == "" {
		return nil
	}
	parts := strings.Split(s.AllowedPaths, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FlowConfig groups the flow-engine knobs.
type FlowConfig struct {
	Scan   ScanConfig   `yaml:"scan"`
	Script ScriptConfig `yaml:"script"`
}

// DatabaseConfig controls the control-store connection.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifeSec  int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

// TSDBConfig controls the time-series store connection, which may point at
// the same database as the control store or a dedicated one.
type TSDBConfig struct {
	DSN          string `yaml:"dsn" env:"TSDB_DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"TSDB_MAX_OPEN_CONNS"`
}

// BusConfig controls the Postgres LISTEN/NOTIFY message bus.
type BusConfig struct {
	DSN string `yaml:"dsn" env:"BUS_DSN"`
}

// RuntimeCacheConfig controls the Redis-backed runtime tag cache.
type RuntimeCacheConfig struct {
	Addr     string `yaml:"addr" env:"RUNTIME_CACHE_ADDR"`
	Password string `yaml:"password" env:"RUNTIME_CACHE_PASSWORD"`
	DB       int    `yaml:"db" env:"RUNTIME_CACHE_DB"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// LibraryConfig controls the dynamic library manager.
type LibraryConfig struct {
	Root string `yaml:"root" env:"LIBRARIES_ROOT"`
}

// Config is the top-level configuration structure, loaded once at process
// start and passed by reference to every component that needs it.
type Config struct {
	SystemMetrics SystemMetricsConfig `yaml:"system_metrics"`
	Historian     HistorianConfig     `yaml:"historian"`
	Flow          FlowConfig          `yaml:"flow"`
	Database      DatabaseConfig      `yaml:"database"`
	TSDB          TSDBConfig          `yaml:"tsdb"`
	Bus           BusConfig           `yaml:"bus"`
	RuntimeCache  RuntimeCacheConfig  `yaml:"runtime_cache"`
	Logging       LoggingConfig       `yaml:"logging"`
	Library       LibraryConfig       `yaml:"library"`
}

// New returns a Config populated with the defaults named in the
// configuration knob table.
func New() *Config {
	return &Config{
		SystemMetrics: SystemMetricsConfig{
			PollMS:        1000,
			RetentionDays: 30,
		},
		Historian: HistorianConfig{
			RetentionDays:   90,
			CompressionDays: 7,
		},
		Flow: FlowConfig{
			Scan: ScanConfig{
				DefaultMS:      1000,
				BudgetFraction: 0.85,
			},
			Script: ScriptConfig{
				TimeoutDefaultMS: 10_000,
				TimeoutMaxMS:     60_000,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			ConnMaxLifeSec: 300,
		},
		TSDB: TSDBConfig{
			MaxOpenConns: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "tagflow-engine",
		},
		Library: LibraryConfig{
			Root: "libraries",
		},
	}
}

// Load loads configuration from an optional YAML file (CONFIG_FILE env var,
// falling back to configs/config.yaml) and then applies environment
// overrides, and finally clamps every floor/ceiling named in the knob table.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// normalize enforces the floors called out in the configuration knob table:
// system_metrics.poll_ms >= 500, flow.scan.default_ms >= the engine's scan
// floor, and a sane budget fraction.
func (c *Config) normalize() {
	const scanFloorMS = 100
	const metricsPollFloorMS = 500

	if c.SystemMetrics.PollMS < metricsPollFloorMS {
		c.SystemMetrics.PollMS = metricsPollFloorMS
	}
	if c.Flow.Scan.DefaultMS < scanFloorMS {
		c.Flow.Scan.DefaultMS = scanFloorMS
	}
	if c.Flow.Scan.BudgetFraction <= 0 || c.Flow.Scan.BudgetFraction > 1 {
		c.Flow.Scan.BudgetFraction = 0.85
	}
	if c.Flow.Script.TimeoutDefaultMS <= 0 {
		c.Flow.Script.TimeoutDefaultMS = 10_000
	}
	if c.Flow.Script.TimeoutMaxMS <= 0 {
		c.Flow.Script.TimeoutMaxMS = 60_000
	}
	if c.Flow.Script.TimeoutDefaultMS > c.Flow.Script.TimeoutMaxMS {
		c.Flow.Script.TimeoutDefaultMS = c.Flow.Script.TimeoutMaxMS
	}
}
