package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/engine"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradesim platform.
type Config struct {
	Storage    Storage                `yaml:"storage"`
	Logging    Logging                `yaml:"logging"`
	Simulation engine.SimulatorConfig `yaml:"simulation"`
	Risk       *domain.RiskConfig     `yaml:"risk"`
	Parity     backtest.Tolerances    `yaml:"parity"`
	Batch      Batch                  `yaml:"batch"`
}

// Storage holds paths for data persistence.
type Storage struct {
	// Backend selects the bar store implementation: "parquet" or "sqlite".
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`

	// OrdersDir is the root of the order registry. Empty disables the
	// audit trail.
	OrdersDir string `yaml:"orders_dir"`

	// ResultsDir is where completed run results are archived. Empty
	// disables archiving.
	ResultsDir string `yaml:"results_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Batch controls parallel execution of independent backtest runs.
type Batch struct {
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when a field is absent from the
// YAML file.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:    "parquet",
			DataDir:    "data",
			SQLitePath: "data/tradesim.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Parity: backtest.DefaultTolerances(),
		Batch:  Batch{Workers: 4},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ORDERS_DIR"); v != "" {
		cfg.Storage.OrdersDir = v
	}
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		cfg.Storage.ResultsDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "parquet", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage backend %q (want parquet or sqlite)", c.Storage.Backend)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("config: batch workers must be at least 1, got %d", c.Batch.Workers)
	}
	return nil
}
