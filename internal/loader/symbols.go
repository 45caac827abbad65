package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

type symbolEntry struct {
	Symbol string `json:"symbol"`
}

type symbolsFile struct {
	IndexFutures         []symbolEntry `json:"index_futures"`
	IndividualSecurities []symbolEntry `json:"individual_securities"`
}

// LoadUniverse reads the F&O symbol list.
func LoadUniverse(path string) (models.Universe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Universe{}, fmt.Errorf("failed to read symbols file: %w", err)
	}

	var f symbolsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Universe{}, errors.NewDataError("symbols", "", path, err)
	}

	var u models.Universe
	for _, e := range f.IndexFutures {
		if e.Symbol != "" {
			u.Indices = append(u.Indices, e.Symbol)
		}
	}
	for _, e := range f.IndividualSecurities {
		if e.Symbol != "" {
			u.Stocks = append(u.Stocks, e.Symbol)
		}
	}
	if len(u.Indices)+len(u.Stocks) == 0 {
		return u, errors.NewDataError("symbols", "", "no symbols in "+path, errors.ErrDataNotFound)
	}
	return u, nil
}
