// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"nse-options-lab/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "nse-options-lab", "logs", "optlab.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a logger writing to stderr and, optionally, a
// rotating file.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:         os.Stderr,
			TimeFormat:  time.RFC3339,
			FormatLevel: formatLevel,
		})
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return "???"
	}
	switch ll {
	case "debug":
		return "\033[36mDBG\033[0m"
	case "info":
		return "\033[32mINF\033[0m"
	case "warn":
		return "\033[33mWRN\033[0m"
	case "error":
		return "\033[31mERR\033[0m"
	default:
		return ll
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is one the logger understands.
func ValidLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithRunID adds a backtest run id to the logger context.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogBacktestResult logs a completed symbol-month.
func LogBacktestResult(logger zerolog.Logger, r *models.BacktestResult) {
	if r.Skipped() {
		LogSkip(logger, r.Symbol, r.Year, r.Month, string(*r.SkippedReason))
		return
	}
	logger.Info().
		Str("event", "backtest").
		Str("symbol", r.Symbol).
		Int("year", r.Year).
		Int("month", r.Month).
		Float64("pnl", models.Value(r.PnLPoints)).
		Float64("hedge_pnl", models.Value(r.HedgePnLPoints)).
		Msg("Month completed")
}

// LogSkip logs a month that produced no trade.
func LogSkip(logger zerolog.Logger, symbol string, year, month int, reason string) {
	logger.Info().
		Str("event", "skip").
		Str("symbol", symbol).
		Int("year", year).
		Int("month", month).
		Str("reason", reason).
		Msg("Month skipped")
}

// LogHedge logs one hedge trade.
func LogHedge(logger zerolog.Logger, symbol string, e models.HedgeEntry) {
	logger.Debug().
		Str("event", "hedge").
		Str("symbol", symbol).
		Str("date", e.Date.ISO()).
		Str("quantity", e.Quantity.String()).
		Str("price", e.Price.String()).
		Bool("liquidation", e.Liquidation).
		Msg("Hedge")
}

// LogStoreWrite logs a store write.
func LogStoreWrite(logger zerolog.Logger, operation, key string, rows int, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "store_write").
		Str("operation", operation).
		Str("key", key).
		Int("rows", rows).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Store write failed")
	} else {
		event.Msg("Store write completed")
	}
}
