// Package cli provides the optlab command-line interface.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nse-options-lab/internal/config"
	"nse-options-lab/internal/logging"
	"nse-options-lab/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-05-01"
)

// skipConfig marks commands that run without a loaded config.
const skipConfig = "skip-config"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	store store.Store
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "optlab",
		Short: "NSE options analytics and strangle backtests",
		Long: `optlab turns NSE F&O bhavcopies into daily option snapshots (implied
volatility term structure, Greeks, IV percentile and rank, Yang-Zhang
realized volatility) and backtests a monthly delta-hedged short strangle
over them.

Typical flow:
  optlab metrics build --from 2024-01-01
  optlab backtest run --from 2024-02 --to 2025-03
  optlab backtest results --symbol NIFTY`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if cmd.Annotations[skipConfig] != "" {
				if debug {
					logging.SetDebugLevel()
				}
				return nil
			}
			if err := app.loadConfig(cmd); err != nil {
				return err
			}
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/nse-options-lab)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newMetricsCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newPriceCmd(), newIVCmd(app))
	rootCmd.AddCommand(newRVCmd(app))
	rootCmd.AddCommand(newExportCmd(app))

	return rootCmd
}

func (app *App) loadConfig(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg
	app.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		File:       cfg.Log.File,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	return nil
}

// Store opens the configured store on first use.
func (app *App) Store() (store.Store, error) {
	if app.store != nil {
		return app.store, nil
	}

	var (
		st  store.Store
		err error
	)
	switch app.Config.Store.Driver {
	case config.DriverPostgres:
		st, err = store.NewPostgresStore(app.Config.Store.DSN, app.Config.Store.MaxOpenConns)
	default:
		st, err = store.NewSQLiteStore(app.Config.Store.Path, app.Config.Store.MaxOpenConns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", app.Config.Store.Driver, err)
	}

	app.Logger.Debug().Str("driver", app.Config.Store.Driver).Msg("Store opened")
	app.store = st
	return st, nil
}

// Close releases the store if one was opened.
func (app *App) Close() error {
	if app.store == nil {
		return nil
	}
	err := app.store.Close()
	app.store = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("optlab v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.ConfigPath(dir)})
			} else {
				output.Println(config.ConfigPath(dir))
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Data")
	output.Printf("  Bhavcopies:      %s\n", cfg.BhavcopyDir())
	output.Printf("  Spot prices:     %s\n", cfg.SpotDir())
	output.Printf("  Rates:           %s\n", cfg.RatesFile())
	output.Printf("  Earnings:        %s\n", cfg.EarningsFile())
	output.Printf("  Symbols:         %s\n", cfg.SymbolsFile())
	output.Println()

	output.Bold("Pricing")
	output.Printf("  IV bracket:      [%g, %g]\n", cfg.Pricing.VolLow, cfg.Pricing.VolHigh)
	output.Printf("  Tolerance:       %g (%d iterations)\n", cfg.Pricing.Tolerance, cfg.Pricing.MaxIterations)
	output.Printf("  Dividend yield:  %g\n", cfg.Pricing.DividendYield)
	output.Println()

	output.Bold("Metrics")
	output.Printf("  IVP/IVR window:  %d\n", cfg.Metrics.PercentileWindow)
	output.Printf("  RV window:       %d (lookback %d)\n", cfg.Metrics.RVWindow, cfg.Metrics.RVMaxLookback)
	output.Printf("  Trading days:    %g\n", cfg.Metrics.TradingDaysPerYear)
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Target delta:    %.2f ± %.2f\n", cfg.Backtest.TargetDelta, cfg.Backtest.DeltaTolerance)
	output.Printf("  Hedge threshold: %g\n", cfg.Backtest.HedgeThreshold)
	output.Printf("  Lookahead:       %d days\n", cfg.Backtest.LookaheadDays)
	output.Println()

	output.Bold("Store")
	output.Printf("  Driver:          %s\n", cfg.Store.Driver)
	if cfg.Store.Driver == config.DriverSQLite {
		output.Printf("  Path:            %s\n", cfg.Store.Path)
	}
	output.Printf("  Retry attempts:  %d\n", cfg.Store.RetryAttempts)
}
