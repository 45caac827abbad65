package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"nse-options-lab/internal/store"
)

// resultCSV is the flat CSV form of a stored result. Null metrics are
// empty cells.
type resultCSV struct {
	Symbol         string `csv:"symbol"`
	Year           int    `csv:"year"`
	Month          int    `csv:"month"`
	EntryDate      string `csv:"entry_date"`
	ExitDate       string `csv:"exit_date"`
	CallStrike     string `csv:"call_entry_strike"`
	PutStrike      string `csv:"put_entry_strike"`
	CallEntryDelta string `csv:"call_entry_delta"`
	PutEntryDelta  string `csv:"put_entry_delta"`
	CallEntryPrice string `csv:"call_entry_price"`
	PutEntryPrice  string `csv:"put_entry_price"`
	CallExitPrice  string `csv:"call_exit_price"`
	PutExitPrice   string `csv:"put_exit_price"`
	EntryCredit    string `csv:"entry_credit"`
	ExitCost       string `csv:"exit_cost"`
	HedgePnLPoints string `csv:"hedge_pnl_points"`
	PnLPoints      string `csv:"pnl_points"`
	SkippedReason  string `csv:"skipped_reason"`
	RunID          string `csv:"run_id"`
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatStrike(v)
}

func toResultCSV(results []store.StoredResult) []*resultCSV {
	rows := make([]*resultCSV, 0, len(results))
	for _, r := range results {
		row := &resultCSV{
			Symbol:         r.Symbol,
			Year:           r.Year,
			Month:          r.Month,
			CallStrike:     csvFloat(r.CallEntryStrike),
			PutStrike:      csvFloat(r.PutEntryStrike),
			CallEntryDelta: csvFloat(r.CallEntryDelta),
			PutEntryDelta:  csvFloat(r.PutEntryDelta),
			CallEntryPrice: csvFloat(r.CallEntryPrice),
			PutEntryPrice:  csvFloat(r.PutEntryPrice),
			CallExitPrice:  csvFloat(r.CallExitPrice),
			PutExitPrice:   csvFloat(r.PutExitPrice),
			EntryCredit:    csvFloat(r.EntryCredit),
			ExitCost:       csvFloat(r.ExitCost),
			HedgePnLPoints: csvFloat(r.HedgePnLPoints),
			PnLPoints:      csvFloat(r.PnLPoints),
			RunID:          r.RunID,
		}
		if r.EntryDate != nil {
			row.EntryDate = r.EntryDate.ISO()
		}
		if r.ExitDate != nil {
			row.ExitDate = r.ExitDate.ISO()
		}
		if r.SkippedReason != nil {
			row.SkippedReason = string(*r.SkippedReason)
		}
		rows = append(rows, row)
	}
	return rows
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data to files",
		Long:  "Export backtest results to CSV or JSON files.",
	}

	var (
		filter  store.ResultFilter
		outFile string
		format  string
	)

	results := &cobra.Command{
		Use:   "results",
		Short: "Export backtest results",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter.Symbol = strings.ToUpper(filter.Symbol)
			if format != "csv" && format != "json" {
				return fmt.Errorf("unsupported format %q (csv or json)", format)
			}
			if outFile == "" {
				outFile = "results." + format
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			stored, err := st.GetResults(cmd.Context(), filter)
			if err != nil {
				return err
			}

			file, err := os.Create(outFile)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outFile, err)
			}
			defer file.Close()

			if format == "csv" {
				err = gocsv.MarshalFile(toResultCSV(stored), file)
			} else {
				err = newOutput(file, true, false).JSON(stored)
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}

			output.Success("Exported %d results to %s", len(stored), outFile)
			return nil
		},
	}
	results.Flags().StringVar(&filter.Symbol, "symbol", "", "filter by symbol")
	results.Flags().IntVar(&filter.Year, "year", 0, "filter by year")
	results.Flags().StringVar(&filter.RunID, "run", "", "filter by run id")
	results.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: results.<format>)")
	results.Flags().StringVar(&format, "format", "csv", "csv or json")

	cmd.AddCommand(results)
	return cmd
}
