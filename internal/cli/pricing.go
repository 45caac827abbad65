package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nse-options-lab/internal/analysis/volatility"
	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/pricing"
	"nse-options-lab/internal/store"
)

// optionFlags are the contract inputs shared by price and iv. Rate, vol and
// dividend are entered in percent.
type optionFlags struct {
	spot     float64
	strike   float64
	days     float64
	rate     float64
	dividend float64
	side     string
}

func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&f.strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&f.days, "days", 30, "calendar days to expiry")
	cmd.Flags().Float64Var(&f.rate, "rate", 7.0, "risk-free rate in percent")
	cmd.Flags().Float64Var(&f.dividend, "dividend", 0, "dividend yield in percent")
	cmd.Flags().StringVar(&f.side, "type", "CE", "CE or PE")
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
}

func (f *optionFlags) params(volPercent float64) (pricing.Params, error) {
	side := models.Side(strings.ToUpper(f.side))
	if !side.Valid() {
		return pricing.Params{}, errors.NewValidationError("type", f.side, "must be CE or PE")
	}
	if f.days < 0 {
		return pricing.Params{}, errors.NewValidationError("days", f.days, "must be non-negative")
	}
	return pricing.Params{
		Spot:     f.spot,
		Strike:   f.strike,
		Expiry:   f.days / pricing.DaysPerYear,
		Rate:     f.rate / 100,
		Dividend: f.dividend / 100,
		Vol:      volPercent / 100,
		Side:     side,
	}, nil
}

type priceReport struct {
	Price  float64             `json:"price"`
	IV     *float64            `json:"iv,omitempty"`
	Greeks models.OptionGreeks `json:"greeks"`
}

func printPriceReport(output *Output, p pricing.Params, r priceReport) {
	output.Bold("%s %s @ %s, %.0f days", strings.ToUpper(string(p.Side)),
		FormatStrike(&p.Strike), FormatStrike(&p.Spot), p.Expiry*pricing.DaysPerYear)
	if r.IV != nil {
		output.Printf("  IV:     %s\n", FormatPercent(r.IV))
	}
	output.Printf("  Price:  %.4f\n", r.Price)
	output.Printf("  Greeks: %s\n", FormatGreeks(&r.Greeks))
}

func newPriceCmd() *cobra.Command {
	var (
		flags optionFlags
		vol   float64
	)

	cmd := &cobra.Command{
		Use:         "price",
		Short:       "Black-Scholes price and Greeks of one contract",
		Example:     `  optlab price --spot 1765 --strike 1760 --days 15 --rate 7.76 --vol 21.4`,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := flags.params(vol)
			if err != nil {
				return err
			}
			res, err := pricing.Evaluate(p)
			if err != nil {
				return err
			}

			report := priceReport{Price: res.Price, Greeks: res.Greeks}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printPriceReport(output, p, report)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&vol, "vol", 20, "volatility in percent")
	return cmd
}

func newIVCmd(app *App) *cobra.Command {
	var (
		flags   optionFlags
		premium float64
	)

	cmd := &cobra.Command{
		Use:     "iv",
		Short:   "Implied volatility of one contract from its premium",
		Example: `  optlab iv --spot 1765 --strike 1760 --days 15 --rate 7.76 --premium 36.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := flags.params(0)
			if err != nil {
				return err
			}

			cfg := app.Config.Pricing
			iv, err := pricing.ImpliedVol(premium, p, pricing.SolverConfig{
				Low:           cfg.VolLow,
				High:          cfg.VolHigh,
				Tolerance:     cfg.Tolerance,
				MaxIterations: cfg.MaxIterations,
			})
			if err != nil {
				return err
			}

			p.Vol = iv
			res, err := pricing.Evaluate(p)
			if err != nil {
				return err
			}

			report := priceReport{Price: res.Price, IV: models.Float(iv * 100), Greeks: res.Greeks}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printPriceReport(output, p, report)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&premium, "premium", 0, "observed option price")
	_ = cmd.MarkFlagRequired("premium")
	return cmd
}

type rvPoint struct {
	Date  models.Date `json:"date"`
	Close float64     `json:"close"`
	RV    *float64    `json:"rv_yz"`
}

func newRVCmd(app *App) *cobra.Command {
	var (
		window   int
		lookback int
		fromFlag string
		toFlag   string
	)

	cmd := &cobra.Command{
		Use:   "rv <SYMBOL>",
		Short: "Rolling Yang-Zhang realized volatility from stored bars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			from, to, err := parseDateRange(fromFlag, toFlag)
			if err != nil {
				return err
			}
			if window <= 0 {
				window = app.Config.Metrics.RVWindow
			}
			if lookback <= 0 {
				lookback = app.Config.Metrics.RVMaxLookback
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			bars, ok := st.(store.MarketDataStore)
			if !ok {
				return fmt.Errorf("the %s store does not keep underlying bars", app.Config.Store.Driver)
			}

			// Bars before --from still feed the first windows.
			loadFrom := from
			if !from.IsZero() {
				loadFrom = from.AddDays(-2 * lookback)
			}
			candles, err := bars.GetBars(cmd.Context(), symbol, loadFrom, to)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return errors.NewDataError("bars", symbol, "no stored bars", errors.ErrDataNotFound)
			}

			est := volatility.NewRollingYZ(window, lookback, app.Config.Metrics.TradingDaysPerYear)
			series, err := est.Calculate(candles)
			if err != nil {
				return err
			}

			var points []rvPoint
			for i, c := range candles {
				if !from.IsZero() && c.Date.Before(from) {
					continue
				}
				points = append(points, rvPoint{Date: c.Date, Close: c.Close, RV: series[i]})
			}

			if output.IsJSON() {
				return output.JSON(points)
			}
			output.Bold("%s %s", symbol, est.Name())
			table := NewTable(output, "Date", "Close", "RV")
			for _, p := range points {
				table.AddRow(p.Date.String(), fmt.Sprintf("%.2f", p.Close), FormatPercent(p.RV))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&window, "window", 0, "bars per estimate (default: metrics.rv_window)")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "business days searched for the window (default: metrics.rv_max_lookback)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "last date (YYYY-MM-DD)")
	return cmd
}
