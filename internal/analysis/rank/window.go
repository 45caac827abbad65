// Package rank maintains bounded rolling windows of implied volatility
// readings and reports where the newest reading sits within them.
package rank

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// DefaultWindow is the number of readings kept per series.
const DefaultWindow = 30

// Window is a FIFO of the most recent readings, oldest first.
type Window struct {
	size   int
	values []float64
}

// NewWindow creates a window holding at most size readings.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Push appends v and evicts the oldest reading once the window is full.
func (w *Window) Push(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewInvalidInputError("iv", v, "must be finite")
	}
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
	return nil
}

// Len returns the number of readings held.
func (w *Window) Len() int { return len(w.values) }

// Values returns a copy of the readings, oldest first.
func (w *Window) Values() []float64 {
	return append([]float64(nil), w.values...)
}

// Percentile is the share of readings at or below v, in percent.
func (w *Window) Percentile(v float64) float64 {
	if len(w.values) == 0 {
		return 0
	}
	sorted := w.Values()
	sort.Float64s(sorted)
	return stat.CDF(v, stat.Empirical, sorted, nil) * 100
}

// Rank places v between the window's min and max, in percent. A flat window
// ranks everything at 0.
func (w *Window) Rank(v float64) float64 {
	if len(w.values) == 0 {
		return 0
	}
	lo, hi := floats.Min(w.values), floats.Max(w.values)
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo) * 100
}

// Key identifies one tracked series.
type Key struct {
	Symbol string
	Tenor  models.Tenor
	Side   models.Side
}

// Reading is the percentile and rank of a value after it was pushed.
type Reading struct {
	Percentile float64
	Rank       float64
}

// Tracker holds one window per (symbol, tenor, side).
type Tracker struct {
	mu      sync.Mutex
	size    int
	windows map[Key]*Window
}

// NewTracker creates a tracker whose windows hold size readings.
func NewTracker(size int) *Tracker {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Tracker{size: size, windows: make(map[Key]*Window)}
}

// Observe pushes v into the series for key and returns its standing within
// the updated window.
func (t *Tracker) Observe(key Key, v float64) (Reading, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok {
		w = NewWindow(t.size)
		t.windows[key] = w
	}
	if err := w.Push(v); err != nil {
		return Reading{}, err
	}
	return Reading{Percentile: w.Percentile(v), Rank: w.Rank(v)}, nil
}

// Window returns a copy of the readings for key.
func (t *Tracker) Window(key Key) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows[key]; ok {
		return w.Values()
	}
	return nil
}

// Reset drops every series for symbol.
func (t *Tracker) Reset(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.windows {
		if k.Symbol == symbol {
			delete(t.windows, k)
		}
	}
}
