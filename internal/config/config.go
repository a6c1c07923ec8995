// Package config loads tickerlab configuration from YAML with environment
// variable overrides. The resulting Config is passed explicitly to every
// constructor; nothing else reads the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tickerlab.
type Config struct {
	Storage      Storage      `yaml:"storage"`
	Server       Server       `yaml:"server"`
	Source       Source       `yaml:"source"`
	AlphaVantage AlphaVantage `yaml:"alphavantage"`
	Alpaca       Alpaca       `yaml:"alpaca"`
	Logging      Logging      `yaml:"logging"`
	Backtest     Backtest     `yaml:"backtest"`
}

// Storage selects the relational store and the Parquet archive location.
type Storage struct {
	Driver     string `yaml:"driver"` // "sqlite" or "postgres"
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Source selects the external market-data provider.
type Source struct {
	Provider        string `yaml:"provider"` // "alphavantage", "alpaca" or "parquet"
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// AlphaVantage holds credentials for the Alpha Vantage REST API.
type AlphaVantage struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	DataURL    string `yaml:"data_url"`
	// TradingURL is the trading API endpoint used for asset metadata.
	TradingURL string `yaml:"trading_url"`
	Feed       string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "text"
	Output     string `yaml:"output"` // "stdout", "file" or "both"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Backtest holds the default simulator parameters.
type Backtest struct {
	FastWindow  int     `yaml:"fast_window"`
	SlowWindow  int     `yaml:"slow_window"`
	InitialCash float64 `yaml:"initial_cash"`
	Commission  float64 `yaml:"commission"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a configuration usable without a config file: a local
// SQLite database, the Alpha Vantage provider, and the standard backtest
// parameters.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and otherwise returns Default with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		applyEnvOverrides(cfg)
		applyDefaults(cfg)
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" && c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Source.Provider {
	case "alphavantage", "alpaca", "parquet":
	default:
		return fmt.Errorf("config: unknown source provider %q", c.Source.Provider)
	}

	if c.Backtest.FastWindow < 1 || c.Backtest.SlowWindow <= c.Backtest.FastWindow {
		return fmt.Errorf("config: backtest windows must satisfy 1 <= fast < slow (got %d/%d)",
			c.Backtest.FastWindow, c.Backtest.SlowWindow)
	}
	if c.Backtest.InitialCash <= 0 {
		return fmt.Errorf("config: backtest.initial_cash must be positive")
	}
	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return fmt.Errorf("config: backtest.commission must be in [0, 1)")
	}
	return nil
}

// HTTPAddr returns the host:port the HTTP API listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns the host:port the gRPC API listens on.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.SQLitePath == "" && cfg.Storage.DSN == "" {
		cfg.Storage.SQLitePath = "data/tickerlab.db"
	}
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = "data/archive"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}

	if cfg.Source.Provider == "" {
		cfg.Source.Provider = "alphavantage"
	}
	cfg.Source.Provider = strings.ToLower(cfg.Source.Provider)

	if cfg.AlphaVantage.BaseURL == "" {
		cfg.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.AlphaVantage.Timeout == 0 {
		cfg.AlphaVantage.Timeout = 30 * time.Second
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}

	if cfg.Backtest.FastWindow == 0 {
		cfg.Backtest.FastWindow = 10
	}
	if cfg.Backtest.SlowWindow == 0 {
		cfg.Backtest.SlowWindow = 20
	}
	if cfg.Backtest.InitialCash == 0 {
		cfg.Backtest.InitialCash = 10000
	}
	if cfg.Backtest.Commission == 0 {
		cfg.Backtest.Commission = 0.001
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TICKERLAB_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("TICKERLAB_DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("TICKERLAB_SOURCE"); v != "" {
		cfg.Source.Provider = v
	}

	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_TRADING_URL"); v != "" {
		cfg.Alpaca.TradingURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
