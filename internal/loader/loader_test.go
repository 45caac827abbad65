package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

const bhavHeader = "INSTRUMENT,SYMBOL,EXPIRY_DT,STRIKE_PR,OPTION_TYP,OPEN,HIGH,LOW,CLOSE,SETTLE_PR,CONTRACTS,VAL_INLAKH,OPEN_INT,CHG_IN_OI,TIMESTAMP,\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func bhavcopyBody(ts string) string {
	return bhavHeader +
		"FUTSTK,INFY,29-May-2025,0,XX,1501,1512,1490,1505,1506,900,0,100,0," + ts + ",\n" +
		"FUTSTK,INFY,24-Apr-2025,0,XX,1500,1510,1488,1502,1503,1200,0,200,0," + ts + ",\n" +
		"OPTSTK,INFY,24-Apr-2025,1500,CE,20,25,18,22,22.5,300,0,400,0," + ts + ",\n" +
		"OPTSTK,INFY,24-Apr-2025,1500,PE,19,21,15,17,16.5,250,0,380,0," + ts + ",\n" +
		"OPTIDX,NIFTY,24-Apr-2025,23000,CE,100,110,90,95,96,1000,0,5000,0," + ts + ",\n"
}

func TestBhavcopyFileDate(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"fo01APR2025bhav.csv", "2025-04-01", false},
		{"/data/fo13Apr2025bhav.csv", "2025-04-13", false},
		{"fo32APR2025bhav.csv", "", true},
		{"cm01APR2025bhav.csv", "", true},
		{"notes.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := BhavcopyFileDate(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", d.ISO())
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if d.ISO() != tt.want {
				t.Errorf("got %s, want %s", d.ISO(), tt.want)
			}
		})
	}
}

func TestLoadBhavcopy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fo01APR2025bhav.csv", bhavcopyBody("01-APR-2025"))

	b, err := LoadBhavcopy(path)
	if err != nil {
		t.Fatalf("LoadBhavcopy: %v", err)
	}
	if b.Date.ISO() != "2025-04-01" {
		t.Errorf("date = %s", b.Date.ISO())
	}

	t.Run("quotes", func(t *testing.T) {
		q := b.Quotes("INFY")
		if len(q) != 2 {
			t.Fatalf("got %d quotes, want 2", len(q))
		}
		if q[0].Side != models.SideCall || q[0].Strike != 1500 || q[0].Settle != 22.5 || q[0].Contracts != 300 {
			t.Errorf("unexpected call quote %+v", q[0])
		}
		if q[0].Expiry.ISO() != "2025-04-24" || q[0].Instrument != models.InstrumentOptStk {
			t.Errorf("unexpected expiry or instrument %+v", q[0])
		}
	})

	t.Run("underlying bar from nearest future", func(t *testing.T) {
		bar, ok := b.UnderlyingBar("INFY")
		if !ok {
			t.Fatal("no bar")
		}
		if bar.Close != 1502 || bar.Open != 1500 || bar.Volume != 1200 {
			t.Errorf("bar = %+v, want the 24-Apr future", bar)
		}
	})

	t.Run("underlying bar falls back to options", func(t *testing.T) {
		bar, ok := b.UnderlyingBar("NIFTY")
		if !ok || bar.Close != 95 {
			t.Errorf("bar = %+v ok=%v", bar, ok)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		if _, ok := b.UnderlyingBar("TCS"); ok {
			t.Error("expected no bar")
		}
		if len(b.Quotes("TCS")) != 0 {
			t.Error("expected no quotes")
		}
	})

	if got := b.Symbols(); len(got) != 2 || got[0] != "INFY" || got[1] != "NIFTY" {
		t.Errorf("Symbols = %v", got)
	}
}

func TestLoadBhavcopyTimestampFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "april.csv", bhavcopyBody("02-APR-2025"))

	b, err := LoadBhavcopy(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Date.ISO() != "2025-04-02" {
		t.Errorf("date = %s, want TIMESTAMP column", b.Date.ISO())
	}
}

func TestListBhavcopiesSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fo03APR2025bhav.csv", bhavHeader)
	writeFile(t, dir, "fo28MAR2025bhav.csv", bhavHeader)
	writeFile(t, dir, "fo01APR2025bhav.csv", bhavHeader)
	writeFile(t, dir, "readme.md", "x")

	paths, err := ListBhavcopies(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fo28MAR2025bhav.csv", "fo01APR2025bhav.csv", "fo03APR2025bhav.csv"}
	if len(paths) != len(want) {
		t.Fatalf("got %v", paths)
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(p), want[i])
		}
	}
}

func TestLoadSpot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "INFY.csv", "Date,Open,High,Low,Close,Adj Close,Volume\n"+
		"2025-04-01,1500,1510,1490,1498.5,1498.5,100\n"+
		"2025-04-02,null,null,null,null,null,null\n"+
		"2025-04-03,1501,1511,1491,1507.25,1507.25,200\n")

	s, err := LoadSpotForSymbol(dir, "INFY")
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 2 {
		t.Fatalf("got %d rows, want 2", len(s))
	}
	if px, ok := s.Price(models.MustParseDate("2025-04-03")); !ok || px != 1507.25 {
		t.Errorf("price = %v ok=%v", px, ok)
	}

	missing, err := LoadSpotForSymbol(dir, "TCS")
	if err != nil || missing != nil {
		t.Errorf("missing file should give nil, nil; got %v, %v", missing, err)
	}
}

func TestLoadRates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ADJUSTED_MIFOR.csv",
		"FBIL ADJUSTED MIFOR\r\nReport generated 01 May 2025\r\n"+
			"Date,Tenor,FBIL ADJUSTED MIFOR(%)\r\n"+
			"01 Apr 2025,1 Month,7.76\r\n"+
			"01 Apr 2025,3 Months,7.90\r\n"+
			"02 Apr 2025,1 Month,7.70\r\n"+
			"bad,1 Month,7.00\r\n")

	rates, err := LoadRates(path)
	if err != nil {
		t.Fatalf("LoadRates: %v", err)
	}
	if len(rates) != 3 {
		t.Fatalf("got %d rates, want 3", len(rates))
	}
	if rates[0].Date.ISO() != "2025-04-01" || rates[0].Percent != 7.76 {
		t.Errorf("first row = %+v", rates[0])
	}

	t.Run("no header", func(t *testing.T) {
		p := writeFile(t, dir, "empty.csv", "nothing here\n")
		_, err := LoadRates(p)
		var de *errors.DataError
		if !errors.As(err, &de) {
			t.Errorf("expected DataError, got %v", err)
		}
	})
}

func TestLoadEarnings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "earning_dates.json", `[
		{"event_type": "stock_results", "trading_symbol": "INFY", "date": "2025-04-17"},
		{"event_type": "dividend", "trading_symbol": "INFY", "date": "2025-05-30"},
		{"event_type": "stock_results", "trading_symbol": "TCS", "date": "17/04/2025"},
		{"event_type": "stock_results", "date": "2025-04-10"}
	]`)

	events, err := LoadEarnings(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Symbol != "INFY" || events[0].Date.ISO() != "2025-04-17" {
		t.Errorf("events = %+v", events)
	}
}

func TestLoadUniverse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nse_fno_scripts.json", `{
		"index_futures": [{"symbol": "NIFTY"}, {"symbol": "BANKNIFTY"}],
		"individual_securities": [{"symbol": "INFY"}, {"symbol": ""}]
	}`)

	u, err := LoadUniverse(path)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsIndex("NIFTY") || u.IsIndex("INFY") {
		t.Errorf("index membership wrong: %+v", u)
	}
	if len(u.Stocks) != 1 {
		t.Errorf("stocks = %v", u.Stocks)
	}

	empty := writeFile(t, dir, "empty.json", `{}`)
	if _, err := LoadUniverse(empty); !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound, got %v", err)
	}
}

func TestLoadBhavcopiesAndExtract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fo01APR2025bhav.csv", bhavcopyBody("01-APR-2025"))
	writeFile(t, dir, "fo02APR2025bhav.csv", bhavcopyBody("02-APR-2025"))
	writeFile(t, dir, "fo03APR2025bhav.csv", bhavcopyBody("03-APR-2025"))
	writeFile(t, dir, "fo04APR2025bhav.csv", bhavcopyBody("04-APR-2025"))

	copies, err := LoadBhavcopies(context.Background(), dir,
		models.MustParseDate("2025-04-02"), models.Date{}, 2, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(copies) != 3 || copies[0].Date.ISO() != "2025-04-02" || copies[2].Date.ISO() != "2025-04-04" {
		t.Fatalf("unexpected copies %d", len(copies))
	}

	t.Run("without spot", func(t *testing.T) {
		sd := ExtractSymbol("INFY", copies, nil)
		if len(sd.Days) != 3 || len(sd.Bars) != 3 {
			t.Fatalf("days=%d bars=%d", len(sd.Days), len(sd.Bars))
		}
		if sd.Days[0].Underlying != 1502 || len(sd.Days[0].Quotes) != 2 {
			t.Errorf("day = %+v", sd.Days[0])
		}
	})

	t.Run("with spot gaps", func(t *testing.T) {
		spot := SpotSeries{
			models.MustParseDate("2025-04-02"): 1499,
			models.MustParseDate("2025-04-04"): 1511,
		}
		sd := ExtractSymbol("INFY", copies, spot)
		if len(sd.Days) != 2 || sd.SpotGaps != 1 || len(sd.Bars) != 3 {
			t.Fatalf("days=%d gaps=%d bars=%d", len(sd.Days), sd.SpotGaps, len(sd.Bars))
		}
		if sd.Days[1].Underlying != 1511 {
			t.Errorf("underlying = %v", sd.Days[1].Underlying)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := LoadBhavcopies(ctx, dir, models.Date{}, models.Date{}, 1, zerolog.Nop()); err == nil {
			t.Error("expected context error")
		}
	})
}
