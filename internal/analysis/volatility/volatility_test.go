package volatility

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
	"nse-options-lab/pkg/utils"
)

// businessBars assigns consecutive weekdays starting Monday 06-Jan-2025.
func businessBars(ohlc [][4]float64) []models.Candle {
	d := models.MustParseDate("06-Jan-2025")
	out := make([]models.Candle, len(ohlc))
	for i, v := range ohlc {
		out[i] = models.Candle{Date: d, Open: v[0], High: v[1], Low: v[2], Close: v[3]}
		d = utils.NextBusinessDay(d)
	}
	return out
}

func sampleBars() []models.Candle {
	return businessBars([][4]float64{
		{100, 105, 98, 102},
		{103, 106, 101, 104},
		{104, 108, 100, 101},
		{100, 103, 97, 99},
	})
}

func TestYangZhang(t *testing.T) {
	t.Run("reference sample", func(t *testing.T) {
		got, err := YangZhang(sampleBars(), TradingDaysPerYear)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-69.27281309863099) > 1e-6 {
			t.Errorf("YangZhang = %.10f, want 69.2728131", got)
		}
	})

	t.Run("constant series is zero", func(t *testing.T) {
		flat := make([][4]float64, 30)
		for i := range flat {
			flat[i] = [4]float64{100, 100, 100, 100}
		}
		got, err := YangZhang(businessBars(flat), TradingDaysPerYear)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0 {
			t.Errorf("YangZhang = %v, want 0", got)
		}
	})

	t.Run("default annualisation", func(t *testing.T) {
		a, _ := YangZhang(sampleBars(), 0)
		b, _ := YangZhang(sampleBars(), TradingDaysPerYear)
		if a != b {
			t.Errorf("zero trading days should default to %v: %v vs %v", TradingDaysPerYear, a, b)
		}
	})
}

func TestYangZhangInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		bars []models.Candle
	}{
		{"empty", nil},
		{"single bar", businessBars([][4]float64{{100, 101, 99, 100}})},
		{"zero close", businessBars([][4]float64{{100, 101, 99, 100}, {100, 101, 99, 0}})},
		{"negative low", businessBars([][4]float64{{100, 101, -1, 100}, {100, 101, 99, 100}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := YangZhang(tt.bars, TradingDaysPerYear)
			var ide *errors.InsufficientDataError
			if !errors.As(err, &ide) {
				t.Errorf("expected InsufficientDataError, got %v", err)
			}
		})
	}
}

func TestRollingYZ(t *testing.T) {
	bars := append(sampleBars(), businessBars([][4]float64{
		{100, 105, 98, 102},
		{103, 106, 101, 104},
		{104, 108, 100, 101},
		{100, 103, 97, 99},
	})...)
	// second block continues after the first
	d := utils.NextBusinessDay(bars[3].Date)
	for i := 4; i < len(bars); i++ {
		bars[i].Date = d
		d = utils.NextBusinessDay(d)
	}

	yz := NewRollingYZ(4, 10, TradingDaysPerYear)
	if yz.Name() != "YZ_4" || yz.Period() != 4 {
		t.Errorf("unexpected identity %s/%d", yz.Name(), yz.Period())
	}

	got, err := yz.Calculate(bars)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(bars) {
		t.Fatalf("len = %d, want %d", len(got), len(bars))
	}
	for i := 0; i < 3; i++ {
		if got[i] != nil {
			t.Errorf("point %d should be nil before a full window, got %v", i, *got[i])
		}
	}
	if got[3] == nil || math.Abs(*got[3]-69.27281309863099) > 1e-6 {
		t.Errorf("point 3 should equal the sample estimate, got %v", got[3])
	}
	if got[7] == nil || math.Abs(*got[7]-*got[3]) > 1e-9 {
		t.Errorf("point 7 repeats the sample block, got %v", got[7])
	}
}

func TestRollingYZLookback(t *testing.T) {
	bars := sampleBars()
	// a 20 business day hole before the last bar
	last := bars[3]
	for i := 0; i < 20; i++ {
		last.Date = utils.NextBusinessDay(last.Date)
	}
	bars[3] = last

	got, err := NewRollingYZ(4, 10, TradingDaysPerYear).Calculate(bars)
	if err != nil {
		t.Fatal(err)
	}
	if got[3] != nil {
		t.Errorf("window beyond max lookback should be nil, got %v", *got[3])
	}

	got, err = NewRollingYZ(4, 30, TradingDaysPerYear).Calculate(bars)
	if err != nil {
		t.Fatal(err)
	}
	if got[3] == nil {
		t.Error("window within max lookback should produce a value")
	}
}

func TestRollingYZInvalidPeriod(t *testing.T) {
	if _, err := NewRollingYZ(1, 10, 252).Calculate(sampleBars()); err != ErrInvalidPeriod {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := NewRollingYZ(5, 3, 252).Calculate(sampleBars()); err == nil {
		t.Error("expected error for lookback shorter than window")
	}
}

func vals(p []*float64) []interface{} {
	out := make([]interface{}, len(p))
	for i, v := range p {
		if v == nil {
			out[i] = nil
		} else {
			out[i] = *v
		}
	}
	return out
}

func TestInterpolate(t *testing.T) {
	f := models.Float
	tests := []struct {
		name string
		in   []*float64
		want []interface{}
	}{
		{"empty", nil, []interface{}{}},
		{"all nil", []*float64{nil, nil}, []interface{}{nil, nil}},
		{"leading stays nil", []*float64{nil, f(10), f(20)}, []interface{}{nil, 10.0, 20.0}},
		{"gap is linear", []*float64{f(10), nil, nil, f(40)}, []interface{}{10.0, 20.0, 30.0, 40.0}},
		{"trailing carries", []*float64{f(10), f(12), nil, nil}, []interface{}{10.0, 12.0, 12.0, 12.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vals(Interpolate(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Interpolate = %v, want %v", got, tt.want)
			}
		})
	}
}

// Property: the estimator is non-negative and finite for well-formed bars.
func TestProperty_YangZhangNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= yz < inf", prop.ForAll(
		func(closes []float64) bool {
			ohlc := make([][4]float64, len(closes))
			prev := 100.0
			for i, c := range closes {
				ohlc[i] = [4]float64{prev, math.Max(prev, c) * 1.01, math.Min(prev, c) * 0.99, c}
				prev = c
			}
			v, err := YangZhang(businessBars(ohlc), TradingDaysPerYear)
			if err != nil {
				return false
			}
			return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
		},
		gen.SliceOfN(30, gen.Float64Range(50, 150)),
	))

	properties.TestingRun(t)
}
