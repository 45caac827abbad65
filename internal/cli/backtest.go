package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"nse-options-lab/internal/backtest"
	"nse-options-lab/internal/loader"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/performance"
	"nse-options-lab/internal/store"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Monthly delta-hedged short strangle backtests",
	}
	cmd.AddCommand(newBacktestRunCmd(app))
	cmd.AddCommand(newBacktestResultsCmd(app))
	cmd.AddCommand(newBacktestLedgerCmd(app))
	return cmd
}

func newBacktestRunCmd(app *App) *cobra.Command {
	var (
		symbolFlags []string
		fromFlag    string
		toFlag      string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the strangle over stored snapshots",
		Long: `Runs one job per symbol and month in [--from, --to]. Each job sells the
call and put nearest the target delta on the first trading day of the
month, hedges weekly with the underlying and exits before expiry.
Results and hedge ledgers are upserted, so re-running a month replaces it.`,
		Example: `  optlab backtest run --from 2024-01 --to 2024-12
  optlab backtest run --symbol NIFTY --symbol INFY --from 2025-04 --to 2025-04`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			cfg := app.Config

			from, err := backtest.ParseYearMonth(fromFlag)
			if err != nil {
				return err
			}
			to := from
			if toFlag != "" {
				if to, err = backtest.ParseYearMonth(toFlag); err != nil {
					return err
				}
			}
			if from.After(to) {
				return fmt.Errorf("--from %s is after --to %s", from, to)
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			warnIfStale(app, st)

			universe, err := loader.LoadUniverse(cfg.SymbolsFile())
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Symbols file unavailable, treating every symbol as a stock")
			}

			symbols := ParseSymbols(symbolFlags)
			if len(symbols) == 0 {
				if symbols, err = st.ListSymbols(ctx); err != nil {
					return err
				}
			}
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols with stored snapshots; run 'optlab metrics build' first")
			}

			var earnings backtest.EarningsSource
			if cal := loadCalendar(app); cal != nil {
				earnings = cal
			}

			engine := backtest.NewEngine(backtest.Config{
				TargetDelta:    cfg.Backtest.TargetDelta,
				DeltaTolerance: cfg.Backtest.DeltaTolerance,
				HedgeThreshold: decimal.NewFromFloat(cfg.Backtest.HedgeThreshold),
			}, earnings, app.Logger)

			if workers <= 0 {
				workers = cfg.Backtest.Workers
			}
			if workers <= 0 {
				workers = performance.DefaultWorkers()
			}

			runner := backtest.NewRunner(engine, st, st, backtest.RunnerConfig{
				Workers:       workers,
				LookaheadDays: cfg.Backtest.LookaheadDays,
				Retry:         app.retryConfig(),
			}, app.Logger)

			jobs := backtest.Jobs(symbols, universe, from, to)
			summary, runErr := runner.Run(ctx, jobs)

			if output.IsJSON() {
				if err := output.JSON(summary); err != nil {
					return err
				}
				return runErr
			}

			output.Bold("Run %s", summary.RunID)
			output.Printf("  Jobs:      %d\n", summary.Jobs)
			output.Printf("  Completed: %s\n", output.green.Sprint(summary.Completed))
			output.Printf("  Skipped:   %d\n", summary.Skipped)
			if summary.Failed > 0 {
				output.Printf("  Failed:    %s\n", output.red.Sprint(summary.Failed))
			} else {
				output.Printf("  Failed:    0\n")
			}
			if summary.Rejected > 0 {
				output.Printf("  %s\n", output.Warn(fmt.Sprintf("%d result writes rejected, store circuit open", summary.Rejected)))
			}
			output.Printf("  Duration:  %s\n", FormatDuration(summary.Duration))
			if summary.Jobs > 0 {
				output.Dim("View with: optlab backtest results --run %s", summary.RunID)
			}
			return runErr
		},
	}

	cmd.Flags().StringArrayVar(&symbolFlags, "symbol", nil, "symbol to run (repeatable, default: all stored symbols)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "first month (YYYY-MM)")
	cmd.Flags().StringVar(&toFlag, "to", "", "last month (YYYY-MM, default: --from)")
	cmd.Flags().IntVar(&workers, "workers", 0, "months run in parallel")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func newBacktestResultsCmd(app *App) *cobra.Command {
	var filter store.ResultFilter

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored backtest results",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter.Symbol = strings.ToUpper(filter.Symbol)

			st, err := app.Store()
			if err != nil {
				return err
			}
			results, err := st.GetResults(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			if len(results) == 0 {
				output.Info("No results")
				return nil
			}
			renderResults(output, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Symbol, "symbol", "", "filter by symbol")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "filter by year")
	cmd.Flags().IntVar(&filter.Month, "month", 0, "filter by month (1-12)")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "filter by run id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum rows")

	return cmd
}

func renderResults(output *Output, results []store.StoredResult) {
	table := NewTable(output, "Symbol", "Month", "Entry", "Exit", "Call", "Put", "Credit", "Exit cost", "Hedge", "P&L", "Note")

	var total float64
	var traded, skipped int
	for _, r := range results {
		note := ""
		if r.Skipped() {
			note = output.Warn(string(*r.SkippedReason))
			skipped++
		} else {
			traded++
			total += models.Value(r.PnLPoints)
		}
		table.AddRow(
			r.Symbol,
			FormatMonth(r.Year, r.Month),
			FormatDate(r.EntryDate),
			FormatDate(r.ExitDate),
			FormatStrike(r.CallEntryStrike),
			FormatStrike(r.PutEntryStrike),
			FormatOptional(r.EntryCredit, 2),
			FormatOptional(r.ExitCost, 2),
			output.Points(r.HedgePnLPoints),
			output.Points(r.PnLPoints),
			note,
		)
	}
	table.Render()

	output.Println()
	output.Printf("%d traded, %d skipped, total P&L %s points\n", traded, skipped, output.Points(&total))
}

func newBacktestLedgerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <SYMBOL> <YYYY-MM>",
		Short: "Print the hedge ledger of one symbol-month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			month, err := backtest.ParseYearMonth(args[1])
			if err != nil {
				return err
			}
			key := models.MonthKey{Symbol: strings.ToUpper(args[0]), Year: month.Year, Month: int(month.Month)}

			st, err := app.Store()
			if err != nil {
				return err
			}
			ledger, err := st.GetLedger(cmd.Context(), key)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(ledger)
			}
			if len(ledger) == 0 {
				output.Info("No hedge trades for %s %s", key.Symbol, month)
				return nil
			}

			table := NewTable(output, "Date", "Quantity", "Price", "Cash flow", "")
			sum := decimal.Zero
			for _, e := range ledger {
				tag := ""
				if e.Liquidation {
					tag = "liquidation"
				}
				table.AddRow(e.Date.String(), FormatQuantity(e.Quantity), e.Price.StringFixed(2), e.CashFlow.StringFixed(4), tag)
				sum = sum.Add(e.CashFlow)
			}
			table.Render()
			output.Println()
			hedge, _ := sum.Float64()
			output.Printf("Hedge P&L %s points\n", output.Points(&hedge))
			return nil
		},
	}
}
