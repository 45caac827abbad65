package loader

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// RateDateLayout is the date format of the FBIL export.
const RateDateLayout = "02 Jan 2006"

type rateRow struct {
	Date string `csv:"Date"`
	Rate string `csv:"FBIL ADJUSTED MIFOR(%)"`
}

// LoadRates reads the MIFOR export. Lines before the header row are
// skipped. Every parseable row is returned in file order; the rate table
// keeps the first row of each date.
func LoadRates(path string) ([]models.InterestRate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	body, err := stripPreamble(raw)
	if err != nil {
		return nil, errors.NewDataError("rates", "", path, err)
	}

	var rows []rateRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, errors.NewDataError("rates", "", path, err)
	}

	out := make([]models.InterestRate, 0, len(rows))
	for _, r := range rows {
		d, err := models.ParseDate(RateDateLayout, r.Date)
		if err != nil {
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(r.Rate), 64)
		if err != nil {
			continue
		}
		out = append(out, models.InterestRate{Date: d, Percent: pct})
	}
	return out, nil
}

// stripPreamble drops everything above the first line whose first cell is
// "Date".
func stripPreamble(raw []byte) ([]byte, error) {
	rest := bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	for len(rest) > 0 {
		line := rest
		next := len(rest)
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, next = rest[:i], i+1
		}
		first := strings.SplitN(string(line), ",", 2)[0]
		first = strings.Trim(first, "\" \r")
		if strings.EqualFold(first, "Date") {
			return rest, nil
		}
		rest = rest[next:]
	}
	return nil, fmt.Errorf("no header row")
}
