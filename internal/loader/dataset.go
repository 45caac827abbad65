package loader

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nse-options-lab/internal/models"
)

// LoadBhavcopies parses every bhavcopy in dir dated within [from, to]
// (zero bounds are open) using up to workers goroutines. The result is in
// date order. A file that fails to parse is logged and left out.
func LoadBhavcopies(ctx context.Context, dir string, from, to models.Date, workers int, logger zerolog.Logger) ([]*Bhavcopy, error) {
	paths, err := ListBhavcopies(dir)
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, p := range paths {
		d, _ := BhavcopyFileDate(p)
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		selected = append(selected, p)
	}

	copies := make([]*Bhavcopy, len(selected))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, p := range selected {
		i, p := i, p // per-iteration copy (go1.21 loop semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := LoadBhavcopy(p)
			if err != nil {
				logger.Warn().Err(err).Str("file", p).Msg("Skipping bhavcopy")
				return nil
			}
			copies[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := copies[:0]
	for _, b := range copies {
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// SymbolData is one symbol's share of the loaded bhavcopies.
type SymbolData struct {
	Symbol string
	Days   []models.DayData
	Bars   []models.Candle
	// SpotGaps counts days dropped because the spot file had no price.
	SpotGaps int
}

// ExtractSymbol slices the symbol's option quotes and underlying bars out
// of copies. With a spot series the day's underlying price is the spot
// close and days the series lacks are dropped; without one it is the bar
// close. Bars are kept for every day regardless, since realized
// volatility runs over the full bar history.
func ExtractSymbol(symbol string, copies []*Bhavcopy, spot SpotSeries) SymbolData {
	sd := SymbolData{Symbol: symbol}
	for _, b := range copies {
		bar, ok := b.UnderlyingBar(symbol)
		if !ok {
			continue
		}
		sd.Bars = append(sd.Bars, bar)

		underlying := bar.Close
		if spot != nil {
			px, ok := spot.Price(b.Date)
			if !ok {
				sd.SpotGaps++
				continue
			}
			underlying = px
		}

		sd.Days = append(sd.Days, models.DayData{
			Date:       b.Date,
			Underlying: underlying,
			Quotes:     b.Quotes(symbol),
		})
	}
	return sd
}
