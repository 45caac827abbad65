package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nse-options-lab/internal/loader"
	"nse-options-lab/internal/logging"
	"nse-options-lab/internal/metrics"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/performance"
	"nse-options-lab/internal/pricing"
	"nse-options-lab/internal/store"
	"nse-options-lab/pkg/utils"
)

// snapshotBatchSize bounds one SaveSnapshots transaction.
const snapshotBatchSize = 250

func newMetricsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Build and inspect daily option snapshots",
	}
	cmd.AddCommand(newMetricsBuildCmd(app))
	cmd.AddCommand(newMetricsShowCmd(app))
	cmd.AddCommand(newMetricsStatusCmd(app))
	return cmd
}

type buildStats struct {
	Symbol    string        `json:"symbol"`
	Snapshots int           `json:"snapshots"`
	Bars      int           `json:"bars"`
	SpotGaps  int           `json:"spot_gaps"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func newMetricsBuildCmd(app *App) *cobra.Command {
	var (
		symbolFlags []string
		fromFlag    string
		toFlag      string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Aggregate bhavcopies into snapshots and store them",
		Long: `Reads the bhavcopies, spot prices, rates and earnings calendar,
computes one snapshot per symbol and trading day and upserts them.

Bhavcopies before --from are still read so realized volatility and the
IV percentile window have history; only snapshots on or after --from are
written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			cfg := app.Config
			logger := logging.WithOperation(app.Logger, "metrics_build")

			from, to, err := parseDateRange(fromFlag, toFlag)
			if err != nil {
				return err
			}

			universe, err := loader.LoadUniverse(cfg.SymbolsFile())
			if err != nil {
				return err
			}
			symbols := ParseSymbols(symbolFlags)
			if len(symbols) == 0 {
				symbols = universe.Symbols()
			}

			rates, err := loader.LoadRates(cfg.RatesFile())
			if err != nil {
				logger.Warn().Err(err).Msg("No rates loaded, falling back to 0%")
			}
			calendar := loadCalendar(app)

			if workers <= 0 {
				workers = cfg.Metrics.Workers
			}
			if workers <= 0 {
				workers = performance.DefaultWorkers()
			}

			warmup := from
			if !from.IsZero() {
				warmup = from.AddDays(-2 * (cfg.Metrics.RVMaxLookback + cfg.Metrics.PercentileWindow))
			}
			copies, err := loader.LoadBhavcopies(ctx, cfg.BhavcopyDir(), warmup, to, workers, logger)
			if err != nil {
				return err
			}
			if len(copies) == 0 {
				return fmt.Errorf("no bhavcopies found in %s", cfg.BhavcopyDir())
			}
			logger.Info().Int("files", len(copies)).Int("symbols", len(symbols)).Msg("Bhavcopies loaded")

			st, err := app.Store()
			if err != nil {
				return err
			}

			agg := metrics.NewAggregator(metrics.Config{
				Solver: pricing.SolverConfig{
					Low:           cfg.Pricing.VolLow,
					High:          cfg.Pricing.VolHigh,
					Tolerance:     cfg.Pricing.Tolerance,
					MaxIterations: cfg.Pricing.MaxIterations,
				},
				DividendYield:    cfg.Pricing.DividendYield,
				PercentileWindow: cfg.Metrics.PercentileWindow,
				RVWindow:         cfg.Metrics.RVWindow,
				RVMaxLookback:    cfg.Metrics.RVMaxLookback,
				TradingDays:      cfg.Metrics.TradingDaysPerYear,
			}, metrics.NewRateTable(rates), calendar, logger)

			b := &snapshotBuilder{
				app:     app,
				agg:     agg,
				store:   st,
				copies:  copies,
				from:    from,
				retry:   app.retryConfig(),
				spotDir: cfg.SpotDir(),
			}

			var (
				mu    sync.Mutex
				stats []buildStats
			)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(workers)
			for _, sym := range symbols {
				sym := sym // per-iteration copy (go1.21 loop semantics)
				g.Go(func() error {
					s := b.build(gctx, sym)
					mu.Lock()
					stats = append(stats, s)
					mu.Unlock()
					return gctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if tracker, ok := st.(store.SyncTracker); ok {
				now := time.Now()
				for _, dt := range []store.SyncDataType{store.SyncSnapshots, store.SyncBars} {
					if err := store.MarkSynced(tracker, dt, now); err != nil {
						logger.Warn().Err(err).Msg("Failed to record sync time")
					}
				}
			}

			mem := performance.MemoryStats()
			logger.Debug().
				Str("heap", performance.FormatBytes(mem.Alloc)).
				Uint32("gc", mem.NumGC).
				Msg("Snapshot build finished")

			sort.Slice(stats, func(i, j int) bool { return stats[i].Symbol < stats[j].Symbol })
			if output.IsJSON() {
				return output.JSON(stats)
			}
			renderBuildStats(output, stats)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&symbolFlags, "symbols", nil, "symbols to build (default: every symbol in the symbols file)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "first snapshot date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "last snapshot date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&workers, "workers", 0, "symbols built in parallel")

	return cmd
}

type snapshotBuilder struct {
	app     *App
	agg     *metrics.Aggregator
	store   store.Store
	copies  []*loader.Bhavcopy
	from    models.Date
	retry   utils.RetryConfig
	spotDir string
}

// build runs one symbol end to end. Failures are reported in the stats so
// one bad symbol does not stop the others.
func (b *snapshotBuilder) build(ctx context.Context, symbol string) buildStats {
	start := time.Now()
	stats := buildStats{Symbol: symbol}
	logger := logging.WithSymbol(b.app.Logger, symbol)

	fail := func(err error) buildStats {
		stats.Error = err.Error()
		stats.Duration = time.Since(start)
		logger.Error().Err(err).Msg("Snapshot build failed")
		return stats
	}

	spot, err := loader.LoadSpotForSymbol(b.spotDir, symbol)
	if err != nil {
		return fail(err)
	}
	data := loader.ExtractSymbol(symbol, b.copies, spot)
	stats.Bars = len(data.Bars)
	stats.SpotGaps = data.SpotGaps
	if len(data.Days) == 0 {
		stats.Duration = time.Since(start)
		logger.Warn().Msg("No trading days for symbol")
		return stats
	}

	snaps, err := b.agg.BuildSymbol(ctx, symbol, data.Days, data.Bars)
	if err != nil {
		return fail(err)
	}

	batch := performance.NewBatchProcessor(snapshotBatchSize, func(items []*models.MarketSnapshot) error {
		started := time.Now()
		err := utils.Retry(ctx, b.retry, func() error {
			return b.store.SaveSnapshots(ctx, items)
		})
		logging.LogStoreWrite(logger, "save_snapshots", symbol, len(items), time.Since(started), err)
		return err
	})
	for _, s := range snaps {
		if !b.from.IsZero() && s.Date.Before(b.from) {
			continue
		}
		if err := batch.Add(s); err != nil {
			return fail(err)
		}
		stats.Snapshots++
	}
	if err := batch.Flush(); err != nil {
		return fail(err)
	}

	if bars, ok := b.store.(store.MarketDataStore); ok {
		if err := utils.Retry(ctx, b.retry, func() error {
			return bars.SaveBars(ctx, symbol, data.Bars)
		}); err != nil {
			return fail(err)
		}
	}

	stats.Duration = time.Since(start)
	logger.Info().Int("snapshots", stats.Snapshots).Dur("duration", stats.Duration).Msg("Snapshots stored")
	return stats
}

func renderBuildStats(output *Output, stats []buildStats) {
	table := NewTable(output, "Symbol", "Snapshots", "Bars", "Spot gaps", "Time", "Status")
	var total, failed int
	for _, s := range stats {
		status := output.green.Sprint("ok")
		if s.Error != "" {
			status = output.red.Sprint(TruncateString(s.Error, 60))
			failed++
		}
		total += s.Snapshots
		table.AddRow(s.Symbol, FormatCount(int64(s.Snapshots)), FormatCount(int64(s.Bars)),
			fmt.Sprintf("%d", s.SpotGaps), FormatDuration(s.Duration), status)
	}
	table.Render()
	output.Println()
	output.Printf("%d snapshots across %d symbols", total, len(stats))
	if failed > 0 {
		output.Printf(", %s", output.Warn(fmt.Sprintf("%d failed", failed)))
	}
	output.Println()
}

func newMetricsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <SYMBOL> <DATE>",
		Short: "Print a stored snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := ParseSymbols(args[:1])[0]
			date, err := models.ParseAnyDate(args[1])
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[1], err)
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			snap, err := st.GetSnapshot(cmd.Context(), symbol, date)
			if err != nil {
				return err
			}

			if !output.IsJSON() {
				output.Bold("%s %s", symbol, date)
				output.Printf("  Underlying %.2f  Strike %s  RV %s\n",
					snap.UnderlyingPrice, FormatStrike(snap.StrikePrice), FormatPercent(snap.RVYZ))
				if snap.CE != nil && snap.PE != nil {
					output.Printf("  CE IV30 %s  IVP %s  IVR %s\n", FormatPercent(snap.CE.IV30),
						FormatOptional(snap.CE.Percentile, 1), FormatOptional(snap.CE.Rank, 1))
					output.Printf("  PE IV30 %s  IVP %s  IVR %s\n", FormatPercent(snap.PE.IV30),
						FormatOptional(snap.PE.Percentile, 1), FormatOptional(snap.PE.Rank, 1))
				}
				output.Println()
			}
			return output.JSON(snap)
		},
	}
}

type storeStatus struct {
	Symbols   []string              `json:"symbols"`
	Freshness []store.DataFreshness `json:"freshness,omitempty"`
}

func newMetricsStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored symbols and when snapshots were last built",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			symbols, err := st.ListSymbols(cmd.Context())
			if err != nil {
				return err
			}
			status := storeStatus{Symbols: symbols}
			if tracker, ok := st.(store.SyncTracker); ok {
				now := time.Now()
				for _, dt := range []store.SyncDataType{store.SyncSnapshots, store.SyncBars} {
					status.Freshness = append(status.Freshness, store.CheckFreshness(tracker, dt, store.DefaultStaleAfter, now))
				}
			}

			if output.IsJSON() {
				return output.JSON(status)
			}
			output.Printf("Symbols: %d", len(symbols))
			if len(symbols) > 0 {
				output.Printf(" (%s)", TruncateString(strings.Join(symbols, ", "), 60))
			}
			output.Println()
			for _, f := range status.Freshness {
				text := store.FormatFreshness(f)
				if !f.IsFresh {
					text = output.Warn(text)
				}
				output.Printf("%-10s %s\n", f.DataType, text)
			}
			return nil
		},
	}
}

// warnIfStale logs when the snapshots a command is about to read were never
// built or are older than DefaultStaleAfter.
func warnIfStale(app *App, st store.Store) {
	tracker, ok := st.(store.SyncTracker)
	if !ok {
		return
	}
	f := store.CheckFreshness(tracker, store.SyncSnapshots, store.DefaultStaleAfter, time.Now())
	if !f.IsFresh {
		app.Logger.Warn().Str("snapshots", store.FormatFreshness(f)).Msg("Snapshots may be out of date")
	}
}

// loadCalendar returns nil when the earnings file is absent so callers fall
// back to the snapshot's own earnings date.
func loadCalendar(app *App) *metrics.EarningsCalendar {
	path := app.Config.EarningsFile()
	if _, err := os.Stat(path); err != nil {
		app.Logger.Warn().Str("file", path).Msg("Earnings calendar not found")
		return nil
	}
	events, err := loader.LoadEarnings(path)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to load earnings calendar")
		return nil
	}
	return metrics.NewEarningsCalendar(events)
}

func (app *App) retryConfig() utils.RetryConfig {
	cfg := utils.DefaultRetryConfig()
	if app.Config.Store.RetryAttempts > 0 {
		cfg.MaxAttempts = app.Config.Store.RetryAttempts
	}
	return cfg
}

// parseDateRange parses optional YYYY-MM-DD bounds.
func parseDateRange(from, to string) (models.Date, models.Date, error) {
	var f, t models.Date
	var err error
	if from != "" {
		if f, err = models.ParseAnyDate(from); err != nil {
			return f, t, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if t, err = models.ParseAnyDate(to); err != nil {
			return f, t, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return f, t, fmt.Errorf("--to %s is before --from %s", t.ISO(), f.ISO())
	}
	return f, t, nil
}
