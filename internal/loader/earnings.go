package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// EventStockResults is the only earnings event type that blocks a trade.
const EventStockResults = "stock_results"

type earningsRecord struct {
	EventType     string `json:"event_type"`
	TradingSymbol string `json:"trading_symbol"`
	Date          string `json:"date"`
}

// LoadEarnings reads the earnings calendar and keeps stock_results events.
func LoadEarnings(path string) ([]models.EarningsEvent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read earnings file: %w", err)
	}

	var records []earningsRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.NewDataError("earnings", "", path, err)
	}

	var out []models.EarningsEvent
	for _, r := range records {
		if r.EventType != EventStockResults || r.TradingSymbol == "" {
			continue
		}
		d, err := models.ParseDate(models.ISODateLayout, r.Date)
		if err != nil {
			continue
		}
		out = append(out, models.EarningsEvent{Symbol: r.TradingSymbol, Date: d})
	}
	return out, nil
}
