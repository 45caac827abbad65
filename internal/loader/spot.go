package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// spotRow is a line of a Yahoo daily history export. Prices stay strings
// because Yahoo writes "null" for missing sessions.
type spotRow struct {
	Date     string `csv:"Date"`
	Open     string `csv:"Open"`
	High     string `csv:"High"`
	Low      string `csv:"Low"`
	Close    string `csv:"Close"`
	AdjClose string `csv:"Adj Close"`
	Volume   string `csv:"Volume"`
}

// SpotSeries maps a trade date to the underlying's closing price.
type SpotSeries map[models.Date]float64

// Price returns the close on d.
func (s SpotSeries) Price(d models.Date) (float64, bool) {
	p, ok := s[d]
	return p, ok
}

// SpotPath is where the spot history of symbol lives under dir.
func SpotPath(dir, symbol string) string {
	return filepath.Join(dir, symbol+".csv")
}

// LoadSpot reads a Yahoo CSV. Rows with an unparseable date or a
// non-positive close are dropped.
func LoadSpot(path string) (SpotSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spot file: %w", err)
	}
	defer f.Close()

	var rows []spotRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.NewDataError("spot", "", filepath.Base(path), err)
	}

	out := make(SpotSeries, len(rows))
	for _, r := range rows {
		d, err := models.ParseDate(models.ISODateLayout, r.Date)
		if err != nil {
			continue
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(r.Close), 64)
		if err != nil || px <= 0 {
			continue
		}
		if _, seen := out[d]; !seen {
			out[d] = px
		}
	}
	return out, nil
}

// LoadSpotForSymbol returns nil, nil when the symbol has no spot file.
func LoadSpotForSymbol(dir, symbol string) (SpotSeries, error) {
	if dir == "" {
		return nil, nil
	}
	path := SpotPath(dir, symbol)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadSpot(path)
}
