// Package config provides configuration management for optlab.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/logging"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data" json:"data"`
	Pricing  PricingConfig  `mapstructure:"pricing" json:"pricing"`
	Metrics  MetricsConfig  `mapstructure:"metrics" json:"metrics"`
	Backtest BacktestConfig `mapstructure:"backtest" json:"backtest"`
	Store    StoreConfig    `mapstructure:"store" json:"store"`
	Log      LogConfig      `mapstructure:"log" json:"log"`

	// Dir is the directory the config was read from.
	Dir string `mapstructure:"-" json:"-"`
}

// DataConfig locates the input files. Relative paths resolve against Dir.
type DataConfig struct {
	Dir          string `mapstructure:"dir" json:"dir"`
	BhavcopyDir  string `mapstructure:"bhavcopy_dir" json:"bhavcopy_dir"`
	SpotDir      string `mapstructure:"spot_dir" json:"spot_dir"`
	RatesFile    string `mapstructure:"rates_file" json:"rates_file"`
	EarningsFile string `mapstructure:"earnings_file" json:"earnings_file"`
	SymbolsFile  string `mapstructure:"symbols_file" json:"symbols_file"`
}

// PricingConfig holds the implied volatility solver settings.
type PricingConfig struct {
	VolLow        float64 `mapstructure:"vol_low" json:"vol_low"`
	VolHigh       float64 `mapstructure:"vol_high" json:"vol_high"`
	Tolerance     float64 `mapstructure:"tolerance" json:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"`
	DividendYield float64 `mapstructure:"dividend_yield" json:"dividend_yield"`
}

// MetricsConfig holds snapshot aggregation settings.
type MetricsConfig struct {
	PercentileWindow   int     `mapstructure:"percentile_window" json:"percentile_window"`
	RVWindow           int     `mapstructure:"rv_window" json:"rv_window"`
	RVMaxLookback      int     `mapstructure:"rv_max_lookback" json:"rv_max_lookback"`
	TradingDaysPerYear float64 `mapstructure:"trading_days_per_year" json:"trading_days_per_year"`
	Workers            int     `mapstructure:"workers" json:"workers"`
}

// BacktestConfig holds strangle and hedge settings.
type BacktestConfig struct {
	TargetDelta    float64 `mapstructure:"target_delta" json:"target_delta"`
	DeltaTolerance float64 `mapstructure:"delta_tolerance" json:"delta_tolerance"`
	HedgeThreshold float64 `mapstructure:"hedge_threshold" json:"hedge_threshold"`
	Workers        int     `mapstructure:"workers" json:"workers"`
	LookaheadDays  int     `mapstructure:"lookahead_days" json:"lookahead_days"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" json:"driver"`
	Path          string `mapstructure:"path" json:"path"`
	DSN           string `mapstructure:"dsn" json:"-"`
	MaxOpenConns  int    `mapstructure:"max_open_conns" json:"max_open_conns"`
	RetryAttempts int    `mapstructure:"retry_attempts" json:"retry_attempts"`
}

// LogConfig mirrors logging.LogConfig in file form.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	Console    bool   `mapstructure:"console" json:"console"`
	File       bool   `mapstructure:"file" json:"file"`
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nse-options-lab"
	}
	return filepath.Join(home, ".config", "nse-options-lab")
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is replaced by the template and reported as an error.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, createTemplateConfig(configDir)
		}
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	cfg := &Config{Dir: configDir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration Load produces from an empty file.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{Dir: configDir}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data.dir", filepath.Join(configDir, "data"))
	v.SetDefault("data.bhavcopy_dir", "bhavcopy")
	v.SetDefault("data.spot_dir", "yahoo_finance")
	v.SetDefault("data.rates_file", filepath.Join("interest_rates", "ADJUSTED_MIFOR.csv"))
	v.SetDefault("data.earnings_file", filepath.Join("earning_dates", "earning_dates.json"))
	v.SetDefault("data.symbols_file", "nse_fno_scripts.json")

	v.SetDefault("pricing.vol_low", 1e-4)
	v.SetDefault("pricing.vol_high", 5.0)
	v.SetDefault("pricing.tolerance", 1e-6)
	v.SetDefault("pricing.max_iterations", 200)
	v.SetDefault("pricing.dividend_yield", 0.0)

	v.SetDefault("metrics.percentile_window", 30)
	v.SetDefault("metrics.rv_window", 30)
	v.SetDefault("metrics.rv_max_lookback", 90)
	v.SetDefault("metrics.trading_days_per_year", 252.0)
	v.SetDefault("metrics.workers", 0)

	v.SetDefault("backtest.target_delta", 0.20)
	v.SetDefault("backtest.delta_tolerance", 0.10)
	v.SetDefault("backtest.hedge_threshold", 0.0)
	v.SetDefault("backtest.workers", 0)
	v.SetDefault("backtest.lookahead_days", 60)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", filepath.Join(configDir, "optlab.db"))
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_open_conns", 4)
	v.SetDefault("store.retry_attempts", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "optlab.log"))
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTLAB_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("OPTLAB_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("OPTLAB_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("OPTLAB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return fmt.Errorf("%w: %v", errors.ErrConfigInvalid, errors.NewValidationError(field, value, msg))
	}

	if c.Pricing.VolLow <= 0 || c.Pricing.VolHigh <= c.Pricing.VolLow {
		return invalid("pricing.vol_high", c.Pricing.VolHigh, "bracket must satisfy 0 < vol_low < vol_high")
	}
	if c.Pricing.Tolerance <= 0 {
		return invalid("pricing.tolerance", c.Pricing.Tolerance, "must be positive")
	}
	if c.Pricing.MaxIterations < 1 {
		return invalid("pricing.max_iterations", c.Pricing.MaxIterations, "must be at least 1")
	}

	if c.Metrics.PercentileWindow < 1 {
		return invalid("metrics.percentile_window", c.Metrics.PercentileWindow, "must be at least 1")
	}
	if c.Metrics.RVWindow < 2 {
		return invalid("metrics.rv_window", c.Metrics.RVWindow, "must be at least 2")
	}
	if c.Metrics.RVMaxLookback < c.Metrics.RVWindow {
		return invalid("metrics.rv_max_lookback", c.Metrics.RVMaxLookback, "must not be shorter than rv_window")
	}
	if c.Metrics.TradingDaysPerYear <= 0 {
		return invalid("metrics.trading_days_per_year", c.Metrics.TradingDaysPerYear, "must be positive")
	}

	if c.Backtest.TargetDelta <= 0 || c.Backtest.TargetDelta >= 1 {
		return invalid("backtest.target_delta", c.Backtest.TargetDelta, "must be between 0 and 1")
	}
	if c.Backtest.DeltaTolerance < 0 {
		return invalid("backtest.delta_tolerance", c.Backtest.DeltaTolerance, "must be non-negative")
	}
	if c.Backtest.HedgeThreshold < 0 {
		return invalid("backtest.hedge_threshold", c.Backtest.HedgeThreshold, "must be non-negative")
	}
	if c.Backtest.LookaheadDays < 0 {
		return invalid("backtest.lookahead_days", c.Backtest.LookaheadDays, "must be non-negative")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return invalid("store.path", c.Store.Path, "required for sqlite")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "", "required for postgres (or set PG_DSN)")
		}
	default:
		return invalid("store.driver", c.Store.Driver, "must be 'sqlite' or 'postgres'")
	}

	if !logging.ValidLevel(c.Log.Level) {
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	return nil
}

// Resolve joins a data path onto Data.Dir unless it is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Data.Dir, p)
}

func (c *Config) BhavcopyDir() string  { return c.Resolve(c.Data.BhavcopyDir) }
func (c *Config) SpotDir() string      { return c.Resolve(c.Data.SpotDir) }
func (c *Config) RatesFile() string    { return c.Resolve(c.Data.RatesFile) }
func (c *Config) EarningsFile() string { return c.Resolve(c.Data.EarningsFile) }
func (c *Config) SymbolsFile() string  { return c.Resolve(c.Data.SymbolsFile) }
