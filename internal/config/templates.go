package config

import (
	"fmt"
	"os"
)

const configTemplate = `# NSE Options Lab configuration

[data]
# Root of the input files. Relative paths below resolve against it.
# dir = "/srv/nse-data"
bhavcopy_dir = "bhavcopy"
spot_dir = "yahoo_finance"
rates_file = "interest_rates/ADJUSTED_MIFOR.csv"
earnings_file = "earning_dates/earning_dates.json"
symbols_file = "nse_fno_scripts.json"

[pricing]
# Implied volatility bisection bracket (decimal vol)
vol_low = 0.0001
vol_high = 5.0
tolerance = 1e-6
max_iterations = 200
# Continuous dividend yield
dividend_yield = 0.0

[metrics]
# Implied volatility observations kept for percentile and rank
percentile_window = 30
# Yang-Zhang window and how many business days back to search for it
rv_window = 30
rv_max_lookback = 90
trading_days_per_year = 252
# Symbols built in parallel (0 = number of CPUs, capped at 8)
workers = 0

[backtest]
# Short strangle legs at +/- target_delta
target_delta = 0.20
delta_tolerance = 0.10
# Minimum |delta| worth hedging
hedge_threshold = 0.0
# Months run in parallel (0 = number of CPUs, capped at 8)
workers = 0
# Calendar days after month end loaded for each month
lookahead_days = 60

[store]
# "sqlite" or "postgres"
driver = "sqlite"
# path = "/srv/optlab/optlab.db"
# dsn is read from PG_DSN when empty
dsn = ""
max_open_conns = 4
retry_attempts = 3

[log]
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := ConfigPath(configDir)
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
