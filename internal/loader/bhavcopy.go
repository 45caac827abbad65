// Package loader reads the on-disk inputs: NSE F&O bhavcopies, per-symbol
// spot histories, the MIFOR rate export, the earnings calendar and the F&O
// symbol list.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// BhavcopyRow is one line of an F&O bhavcopy.
type BhavcopyRow struct {
	Instrument   string  `csv:"INSTRUMENT"`
	Symbol       string  `csv:"SYMBOL"`
	ExpiryDate   string  `csv:"EXPIRY_DT"`
	Strike       float64 `csv:"STRIKE_PR"`
	OptionType   string  `csv:"OPTION_TYP"`
	Open         float64 `csv:"OPEN"`
	High         float64 `csv:"HIGH"`
	Low          float64 `csv:"LOW"`
	Close        float64 `csv:"CLOSE"`
	Settle       float64 `csv:"SETTLE_PR"`
	Contracts    int64   `csv:"CONTRACTS"`
	OpenInterest int64   `csv:"OPEN_INT"`
	Timestamp    string  `csv:"TIMESTAMP"`
}

// Bhavcopy is one trading day's F&O file.
type Bhavcopy struct {
	Date models.Date
	Rows []BhavcopyRow
}

// BhavcopyFileDate parses the date out of names like fo13APR2025bhav.csv.
func BhavcopyFileDate(name string) (models.Date, error) {
	base := strings.ToUpper(filepath.Base(name))
	if !strings.HasPrefix(base, "FO") || !strings.HasSuffix(base, "BHAV.CSV") {
		return models.Date{}, fmt.Errorf("not a bhavcopy file name: %s", name)
	}
	return models.ParseDate("02Jan2006", base[2:len(base)-len("BHAV.CSV")])
}

// ListBhavcopies returns bhavcopy paths in dir ordered by file date.
func ListBhavcopies(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read bhavcopy dir %s", dir)
	}

	type dated struct {
		path string
		date models.Date
	}
	var files []dated
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d, err := BhavcopyFileDate(e.Name())
		if err != nil {
			continue
		}
		files = append(files, dated{filepath.Join(dir, e.Name()), d})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// LoadBhavcopy parses one bhavcopy. The date comes from the file name, or
// from the TIMESTAMP column when the name does not carry one.
func LoadBhavcopy(path string) (*Bhavcopy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bhavcopy")
	}
	defer f.Close()

	var rows []BhavcopyRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.NewDataError("bhavcopy", "", filepath.Base(path), err)
	}
	for i := range rows {
		rows[i].Instrument = strings.TrimSpace(rows[i].Instrument)
		rows[i].Symbol = strings.TrimSpace(rows[i].Symbol)
		rows[i].OptionType = strings.TrimSpace(rows[i].OptionType)
	}

	b := &Bhavcopy{Rows: rows}
	if d, err := BhavcopyFileDate(path); err == nil {
		b.Date = d
	} else if len(rows) > 0 {
		if d, err := models.ParseAnyDate(rows[0].Timestamp); err == nil {
			b.Date = d
		}
	}
	if b.Date.IsZero() {
		return nil, errors.NewDataError("bhavcopy", "", "no trade date in "+filepath.Base(path), errors.ErrInvalidInput)
	}
	return b, nil
}

// Quotes returns the symbol's option rows with a parseable expiry and side.
func (b *Bhavcopy) Quotes(symbol string) []models.OptionQuote {
	var out []models.OptionQuote
	for _, r := range b.Rows {
		inst := models.InstrumentType(r.Instrument)
		if r.Symbol != symbol || !inst.IsOption() {
			continue
		}
		side := models.Side(r.OptionType)
		if !side.Valid() {
			continue
		}
		expiry, err := models.ParseAnyDate(r.ExpiryDate)
		if err != nil {
			continue
		}
		out = append(out, models.OptionQuote{
			Symbol:       r.Symbol,
			Instrument:   inst,
			Expiry:       expiry,
			Strike:       r.Strike,
			Side:         side,
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Settle:       r.Settle,
			Contracts:    r.Contracts,
			OpenInterest: r.OpenInterest,
		})
	}
	return out
}

// UnderlyingBar returns the day's bar from the symbol's nearest-expiry
// futures row, falling back to its nearest-expiry option row.
func (b *Bhavcopy) UnderlyingBar(symbol string) (models.Candle, bool) {
	var best *BhavcopyRow
	var bestExpiry models.Date
	bestFuture := false

	for i := range b.Rows {
		r := &b.Rows[i]
		inst := models.InstrumentType(r.Instrument)
		if r.Symbol != symbol || (!inst.IsFuture() && !inst.IsOption()) {
			continue
		}
		expiry, err := models.ParseAnyDate(r.ExpiryDate)
		if err != nil {
			continue
		}
		future := inst.IsFuture()
		switch {
		case best == nil,
			future && !bestFuture,
			future == bestFuture && expiry.Before(bestExpiry):
			best, bestExpiry, bestFuture = r, expiry, future
		}
	}

	if best == nil {
		return models.Candle{}, false
	}
	return models.Candle{
		Date:   b.Date,
		Open:   best.Open,
		High:   best.High,
		Low:    best.Low,
		Close:  best.Close,
		Volume: best.Contracts,
	}, true
}

// Symbols returns every symbol quoted in the file, sorted.
func (b *Bhavcopy) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range b.Rows {
		if r.Symbol != "" && !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	sort.Strings(out)
	return out
}
