package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDateParseAndFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Date
	}{
		{"25-Apr-2025", NewDate(2025, time.April, 25)},
		{"25-APR-2025", NewDate(2025, time.April, 25)},
		{"2024-03-01", NewDate(2024, time.March, 1)},
		{"2024-03-01T00:00:00Z", NewDate(2024, time.March, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAnyDate(tt.in)
			if err != nil {
				t.Fatalf("ParseAnyDate(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := ParseAnyDate("not a date"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, time.April, 25)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"25-Apr-2025"` {
		t.Errorf("unexpected encoding %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip mismatch: %s", back)
	}

	var null Date
	if err := json.Unmarshal([]byte("null"), &null); err != nil || !null.IsZero() {
		t.Errorf("null should decode to zero date, got %v (%v)", null, err)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	if got := d.AddDays(1); !got.Equal(NewDate(2024, time.February, 29)) {
		t.Errorf("leap day: got %s", got)
	}
	if got := d.DaysUntil(NewDate(2024, time.March, 28)); got != 29 {
		t.Errorf("DaysUntil = %d, want 29", got)
	}
	if got := MonthEnd(2024, time.February); got.Day() != 29 {
		t.Errorf("MonthEnd = %s", got)
	}
	if got := MonthEnd(2024, time.December); !got.Equal(NewDate(2024, time.December, 31)) {
		t.Errorf("MonthEnd december = %s", got)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-05-07"); err != nil || !d.Equal(NewDate(2024, time.May, 7)) {
		t.Errorf("scan string: %v %s", err, d)
	}
	if err := d.Scan(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)); err != nil || !d.Equal(NewDate(2024, time.May, 8)) {
		t.Errorf("scan time: %v %s", err, d)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("scan nil: %v %s", err, d)
	}
	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestSnapshotJSONKeyOrder(t *testing.T) {
	snap := MarketSnapshot{
		Symbol:          "NIFTY",
		Date:            NewDate(2025, time.April, 1),
		UnderlyingPrice: 23165.7,
		InterestRate:    7.76,
		OptionChain:     []ChainContract{},
		CE:              &SideMetrics{},
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)

	keys := []string{
		`"underlying_price"`, `"interest_rate"`, `"upcoming_earning_date":null`,
		`"expiry_30d":null`, `"expiry_60d"`, `"expiry_90d"`, `"option_chain":[]`,
		`"strike_price":null`, `"rv_yz":null`, `"ce":{`, `"pe":null`,
	}
	last := -1
	for _, k := range keys {
		idx := strings.Index(s, k)
		if idx < 0 {
			t.Fatalf("missing %s in %s", k, s)
		}
		if idx < last {
			t.Errorf("%s out of order in %s", k, s)
		}
		last = idx
	}

	for _, k := range []string{`"iv_30"`, `"iv_60"`, `"iv_90"`, `"ivp"`, `"ivr"`, `"greeks":null`, `"last_price_30d"`} {
		if !strings.Contains(s, k) {
			t.Errorf("side block missing %s", k)
		}
	}
	if strings.Contains(s, "NIFTY") {
		t.Error("symbol must not be part of the record body")
	}
}

func TestSnapshotContractLookup(t *testing.T) {
	exp := NewDate(2025, time.April, 24)
	snap := MarketSnapshot{OptionChain: []ChainContract{
		{Expiry: exp, Strike: 100, Type: SideCall, Settle: 5},
		{Expiry: exp, Strike: 100, Type: SidePut, Settle: 4},
		{Expiry: exp.AddDays(28), Strike: 100, Type: SideCall, Settle: 9},
	}}

	c, ok := snap.Contract(exp, 100, SidePut)
	if !ok || c.Settle != 4 {
		t.Errorf("Contract lookup = %+v, %v", c, ok)
	}
	if _, ok := snap.Contract(exp, 105, SideCall); ok {
		t.Error("unexpected contract for missing strike")
	}
	if n := len(snap.Contracts(exp, SideCall)); n != 1 {
		t.Errorf("Contracts = %d, want 1", n)
	}
}

func TestUniverse(t *testing.T) {
	u := Universe{Indices: []string{"NIFTY", "BANKNIFTY"}, Stocks: []string{"INFY", "NIFTY"}}
	if !u.IsIndex("BANKNIFTY") || u.IsIndex("INFY") {
		t.Error("IsIndex misclassified")
	}
	got := u.Symbols()
	want := []string{"BANKNIFTY", "INFY", "NIFTY"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Symbols = %v, want %v", got, want)
	}
}
