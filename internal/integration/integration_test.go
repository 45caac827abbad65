// Package integration runs the whole pipeline over generated bhavcopies:
// loading, snapshot aggregation, SQLite persistence and the monthly
// strangle backtest.
package integration

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nse-options-lab/internal/backtest"
	"nse-options-lab/internal/loader"
	"nse-options-lab/internal/metrics"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/pricing"
	"nse-options-lab/internal/store"
	"nse-options-lab/pkg/utils"
)

const (
	fixtureVol  = 0.25
	fixtureRate = 7.76
)

var (
	fixtureBases    = map[string]float64{"INFY": 1500, "TCS": 3500}
	fixtureExpiries = []string{"24-Apr-2025", "29-May-2025", "26-Jun-2025"}
)

// spotOn is a deterministic path that wiggles one percent around base.
func spotOn(base float64, day int) float64 {
	return math.Round(base*(1+0.01*math.Sin(float64(day)))*100) / 100
}

func settle(p pricing.Params) float64 {
	px, err := pricing.Price(p)
	if err != nil || px < 0.05 {
		return 0.05
	}
	return math.Round(px*100) / 100
}

// writeFixtures generates one bhavcopy per April 2025 weekday plus the rates
// and earnings files.
func writeFixtures(t *testing.T) (bhavDir, ratesFile, earningsFile string) {
	t.Helper()
	root := t.TempDir()
	bhavDir = filepath.Join(root, "bhavcopy")
	if err := os.MkdirAll(bhavDir, 0o755); err != nil {
		t.Fatal(err)
	}

	day := 0
	for d := models.MustParseDate("01-Apr-2025"); d.Month() == time.April; d = d.AddDays(1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		var b strings.Builder
		b.WriteString("INSTRUMENT,SYMBOL,EXPIRY_DT,STRIKE_PR,OPTION_TYP,OPEN,HIGH,LOW,CLOSE,SETTLE_PR,CONTRACTS,VAL_INLAKH,OPEN_INT,CHG_IN_OI,TIMESTAMP,\n")
		ts := strings.ToUpper(d.String())

		for _, symbol := range []string{"INFY", "TCS"} {
			base := fixtureBases[symbol]
			s := spotOn(base, day)
			fmt.Fprintf(&b, "FUTSTK,%s,%s,0,XX,%.2f,%.2f,%.2f,%.2f,%.2f,1000,0,5000,0,%s,\n",
				symbol, fixtureExpiries[0], s*0.998, s*1.012, s*0.988, s, s, ts)

			step := base / 50
			for _, exp := range fixtureExpiries {
				expiry := models.MustParseDate(exp)
				for k := base * 0.86; k <= base*1.14+1e-9; k += step {
					strike := math.Round(k)
					for _, side := range []models.Side{models.SideCall, models.SidePut} {
						px := settle(pricing.Params{
							Spot:   s,
							Strike: strike,
							Expiry: pricing.YearFraction(d, expiry),
							Rate:   fixtureRate / 100,
							Vol:    fixtureVol,
							Side:   side,
						})
						fmt.Fprintf(&b, "OPTSTK,%s,%s,%.0f,%s,%.2f,%.2f,%.2f,%.2f,%.2f,100,0,500,0,%s,\n",
							symbol, exp, strike, side, px, px, px, px, px, ts)
					}
				}
			}
		}

		name := "fo" + strings.ToUpper(strings.ReplaceAll(d.String(), "-", "")) + "bhav.csv"
		if err := os.WriteFile(filepath.Join(bhavDir, name), []byte(b.String()), 0o644); err != nil {
			t.Fatal(err)
		}
		day++
	}

	ratesFile = filepath.Join(root, "ADJUSTED_MIFOR.csv")
	rates := "FBIL ADJUSTED MIFOR\nReport\nDate,Tenor,FBIL ADJUSTED MIFOR(%)\n01 Apr 2025,1 Month,7.76\n"
	if err := os.WriteFile(ratesFile, []byte(rates), 0o644); err != nil {
		t.Fatal(err)
	}

	earningsFile = filepath.Join(root, "earning_dates.json")
	earnings := `[{"event_type": "stock_results", "trading_symbol": "TCS", "date": "2025-04-10"}]`
	if err := os.WriteFile(earningsFile, []byte(earnings), 0o644); err != nil {
		t.Fatal(err)
	}
	return bhavDir, ratesFile, earningsFile
}

func buildSnapshots(t *testing.T, ctx context.Context, st *store.SQLiteStore) *metrics.EarningsCalendar {
	t.Helper()
	bhavDir, ratesFile, earningsFile := writeFixtures(t)

	copies, err := loader.LoadBhavcopies(ctx, bhavDir, models.Date{}, models.Date{}, 4, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(copies) != 22 {
		t.Fatalf("loaded %d bhavcopies, want 22", len(copies))
	}

	rates, err := loader.LoadRates(ratesFile)
	if err != nil {
		t.Fatal(err)
	}
	events, err := loader.LoadEarnings(earningsFile)
	if err != nil {
		t.Fatal(err)
	}
	calendar := metrics.NewEarningsCalendar(events)

	cfg := metrics.DefaultConfig()
	cfg.RVWindow = 10
	cfg.RVMaxLookback = 30
	agg := metrics.NewAggregator(cfg, metrics.NewRateTable(rates), calendar, zerolog.Nop())

	for _, symbol := range []string{"INFY", "TCS"} {
		data := loader.ExtractSymbol(symbol, copies, nil)
		snaps, err := agg.BuildSymbol(ctx, symbol, data.Days, data.Bars)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.SaveSnapshots(ctx, snaps); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveBars(ctx, symbol, data.Bars); err != nil {
			t.Fatal(err)
		}
	}
	return calendar
}

func newRunner(st *store.SQLiteStore, calendar *metrics.EarningsCalendar) *backtest.Runner {
	engine := backtest.NewEngine(backtest.DefaultConfig(), calendar, zerolog.Nop())
	return backtest.NewRunner(engine, st, st, backtest.RunnerConfig{
		Workers: 2,
		Retry: utils.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      time.Millisecond,
			BackoffFactor: 1,
		},
	}, zerolog.Nop())
}

func TestPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "optlab.db"), 4)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	calendar := buildSnapshots(t, ctx, st)

	t.Run("snapshots", func(t *testing.T) {
		symbols, err := st.ListSymbols(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(symbols) != 2 || symbols[0] != "INFY" || symbols[1] != "TCS" {
			t.Fatalf("symbols = %v", symbols)
		}

		snap, err := st.GetSnapshot(ctx, "INFY", models.MustParseDate("01-Apr-2025"))
		if err != nil {
			t.Fatal(err)
		}
		if snap.UnderlyingPrice != 1500 || snap.InterestRate != fixtureRate {
			t.Errorf("underlying %v rate %v", snap.UnderlyingPrice, snap.InterestRate)
		}
		for i, want := range fixtureExpiries {
			got := []*models.Date{snap.Expiry30d, snap.Expiry60d, snap.Expiry90d}[i]
			if got == nil || got.String() != want {
				t.Errorf("expiry %d = %v, want %s", i, got, want)
			}
		}
		if snap.StrikePrice == nil || *snap.StrikePrice != 1500 {
			t.Errorf("strike = %v", snap.StrikePrice)
		}
		if snap.CE == nil || snap.CE.IV30 == nil || math.Abs(*snap.CE.IV30-fixtureVol*100) > 0.5 {
			t.Errorf("CE IV30 = %+v", snap.CE)
		}
		if snap.UpcomingEarningDate != nil {
			t.Errorf("INFY has no results scheduled, got %v", snap.UpcomingEarningDate)
		}

		last, err := st.GetSnapshot(ctx, "INFY", models.MustParseDate("30-Apr-2025"))
		if err != nil {
			t.Fatal(err)
		}
		if last.RVYZ == nil || *last.RVYZ <= 0 {
			t.Errorf("RV not attached: %v", last.RVYZ)
		}
		if last.CE == nil || last.CE.Percentile == nil || last.CE.Rank == nil {
			t.Errorf("percentile and rank missing: %+v", last.CE)
		}

		bars, err := st.GetBars(ctx, "TCS", models.MustParseDate("01-Apr-2025"), models.MustParseDate("30-Apr-2025"))
		if err != nil {
			t.Fatal(err)
		}
		if len(bars) != 22 {
			t.Errorf("stored %d bars, want 22", len(bars))
		}
	})

	apr := backtest.YearMonth{Year: 2025, Month: time.April}
	jobs := backtest.Jobs([]string{"INFY", "TCS"}, models.Universe{}, apr, apr.Next())

	summary, err := newRunner(st, calendar).Run(ctx, jobs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Jobs != 4 || summary.Completed != 1 || summary.Skipped != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	t.Run("skips", func(t *testing.T) {
		tests := []struct {
			symbol string
			month  int
			reason models.SkipReason
		}{
			{"TCS", 4, models.SkipEarnings},
			{"TCS", 5, models.SkipNoTradingDays},
			{"INFY", 5, models.SkipNoTradingDays},
		}
		for _, tt := range tests {
			results, err := st.GetResults(ctx, store.ResultFilter{Symbol: tt.symbol, Year: 2025, Month: tt.month})
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != 1 || results[0].SkippedReason == nil || *results[0].SkippedReason != tt.reason {
				t.Errorf("%s %d: got %+v, want skip %q", tt.symbol, tt.month, results, tt.reason)
			}
		}
	})

	var first store.StoredResult
	t.Run("strangle", func(t *testing.T) {
		results, err := st.GetResults(ctx, store.ResultFilter{Symbol: "INFY", Year: 2025, Month: 4})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Skipped() {
			t.Fatalf("results = %+v", results)
		}
		r := results[0]
		first = r

		if r.EntryDate.ISO() != "2025-04-01" || r.ExitDate.ISO() != "2025-04-23" {
			t.Errorf("entry %s exit %s", r.EntryDate, r.ExitDate)
		}
		if !(*r.CallEntryStrike > 1500 && *r.PutEntryStrike < 1500) {
			t.Errorf("strikes call %v put %v", *r.CallEntryStrike, *r.PutEntryStrike)
		}
		if math.Abs(*r.CallEntryDelta-0.20) > 0.10 || math.Abs(*r.PutEntryDelta+0.20) > 0.10 {
			t.Errorf("deltas call %v put %v", *r.CallEntryDelta, *r.PutEntryDelta)
		}
		if math.Abs(*r.EntryCredit-(*r.CallEntryPrice+*r.PutEntryPrice)) > 1e-9 {
			t.Errorf("credit %v != %v + %v", *r.EntryCredit, *r.CallEntryPrice, *r.PutEntryPrice)
		}
		want := *r.EntryCredit - *r.ExitCost + *r.HedgePnLPoints
		if math.Abs(*r.PnLPoints-want) > 1e-6 {
			t.Errorf("pnl %v, want %v", *r.PnLPoints, want)
		}

		ledger, err := st.GetLedger(ctx, r.Key())
		if err != nil {
			t.Fatal(err)
		}
		wantDates := []string{"2025-04-04", "2025-04-11", "2025-04-18", "2025-04-23"}
		if len(ledger) != len(wantDates) {
			t.Fatalf("ledger has %d entries, want %d: %+v", len(ledger), len(wantDates), ledger)
		}
		position, cash := decimal.Zero, decimal.Zero
		for i, e := range ledger {
			if e.Date.ISO() != wantDates[i] {
				t.Errorf("entry %d on %s, want %s", i, e.Date.ISO(), wantDates[i])
			}
			if e.Liquidation != (i == len(ledger)-1) {
				t.Errorf("entry %d liquidation = %v", i, e.Liquidation)
			}
			position = position.Add(e.Quantity)
			cash = cash.Add(e.CashFlow)
		}
		if !position.IsZero() {
			t.Errorf("position not flat after exit: %s", position)
		}
		if math.Abs(cash.InexactFloat64()-*r.HedgePnLPoints) > 1e-6 {
			t.Errorf("ledger cash %s, hedge pnl %v", cash, *r.HedgePnLPoints)
		}
	})

	t.Run("rerun replaces results", func(t *testing.T) {
		again, err := newRunner(st, calendar).Run(ctx, jobs)
		if err != nil {
			t.Fatal(err)
		}
		if again.RunID == summary.RunID {
			t.Fatal("run ids should differ")
		}

		results, err := st.GetResults(ctx, store.ResultFilter{Symbol: "INFY"})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 INFY rows after rerun, got %d", len(results))
		}
		for _, r := range results {
			if r.RunID != again.RunID {
				t.Errorf("%d-%02d still from run %s", r.Year, r.Month, r.RunID)
			}
			if r.Month == 4 && *r.PnLPoints != *first.PnLPoints {
				t.Errorf("rerun pnl %v, first %v", *r.PnLPoints, *first.PnLPoints)
			}
		}

		ledger, err := st.GetLedger(ctx, models.MonthKey{Symbol: "INFY", Year: 2025, Month: 4})
		if err != nil {
			t.Fatal(err)
		}
		if len(ledger) != 4 {
			t.Errorf("ledger duplicated on rerun: %d entries", len(ledger))
		}
	})
}
