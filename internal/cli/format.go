package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nse-options-lab/internal/models"
)

// Missing is printed for null metrics.
const Missing = "-"

// FormatOptional prints v with prec decimals, or Missing when nil.
func FormatOptional(v *float64, prec int) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

// FormatSigned is FormatOptional with an explicit plus sign.
func FormatSigned(v *float64, prec int) string {
	if v == nil {
		return Missing
	}
	s := strconv.FormatFloat(*v, 'f', prec, 64)
	if *v > 0 {
		return "+" + s
	}
	return s
}

// FormatPercent formats a value already in percent.
func FormatPercent(v *float64) string {
	if v == nil {
		return Missing
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// FormatStrike drops the fraction of whole strikes.
func FormatStrike(v *float64) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatDate prints an optional date in the NSE layout.
func FormatDate(d *models.Date) string {
	if d == nil || d.IsZero() {
		return Missing
	}
	return d.String()
}

// FormatQuantity prints a hedge quantity with its sign.
func FormatQuantity(q decimal.Decimal) string {
	s := q.StringFixed(4)
	if q.IsPositive() {
		return "+" + s
	}
	return s
}

// FormatCount formats a contract count with Indian digit grouping.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + formatIndianNumber(strconv.FormatInt(-n, 10))
	}
	return formatIndianNumber(strconv.FormatInt(n, 10))
}

// formatIndianNumber groups the last three digits, then pairs:
// 1,00,00,000 rather than 10,000,000.
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}
	return result
}

// FormatMonth prints a result's month as YYYY-MM.
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatGreeks formats option Greeks.
func FormatGreeks(g *models.OptionGreeks) string {
	if g == nil {
		return Missing
	}
	return fmt.Sprintf("Δ %.4f  Γ %.6f  Θ %.4f  ν %.4f  ρ %.4f", g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ParseSymbols splits comma separated flag values and upper-cases them.
func ParseSymbols(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
