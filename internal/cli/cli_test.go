package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"nse-options-lab/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(zerolog.Nop())
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// configDir writes a minimal config whose store lives in a temp dir.
func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "[store]\npath = \"" + filepath.ToSlash(filepath.Join(dir, "optlab.db")) + "\"\n[log]\nconsole = false\n"
	if err := os.WriteFile(config.ConfigPath(dir), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("bad JSON %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %s", v["version"])
	}
}

func TestPriceCommand(t *testing.T) {
	out, err := execute(t, "price", "--json", "--spot", "1765", "--strike", "1760",
		"--days", "15", "--rate", "7.76", "--vol", "21.4")
	if err != nil {
		t.Fatal(err)
	}
	var r priceReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("bad JSON %q: %v", out, err)
	}
	if math.Abs(r.Price-36.048) > 0.1 {
		t.Errorf("price = %.4f", r.Price)
	}
	if r.Greeks.Delta <= 0.5 || r.Greeks.Delta >= 0.6 {
		t.Errorf("delta = %.4f", r.Greeks.Delta)
	}

	t.Run("bad side", func(t *testing.T) {
		if _, err := execute(t, "price", "--spot", "100", "--strike", "100", "--type", "XX"); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestIVCommand(t *testing.T) {
	dir := configDir(t)
	out, err := execute(t, "iv", "--json", "--config", dir, "--spot", "1765", "--strike", "1760",
		"--days", "15", "--rate", "7.76", "--premium", "36.048")
	if err != nil {
		t.Fatal(err)
	}
	var r priceReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("bad JSON %q: %v", out, err)
	}
	if r.IV == nil || math.Abs(*r.IV-21.4) > 0.3 {
		t.Errorf("iv = %v", r.IV)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := configDir(t)

	out, err := execute(t, "config", "path", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != config.ConfigPath(dir) {
		t.Errorf("path = %q", out)
	}

	out, err = execute(t, "config", "show", "--json", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if cfg.Backtest.TargetDelta != 0.20 || cfg.Store.Driver != config.DriverSQLite {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := execute(t, "config", "validate", "--config", dir); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestMissingConfigCreatesTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	_, err := execute(t, "backtest", "results", "--config", dir)
	if err == nil || !strings.Contains(err.Error(), "created template") {
		t.Errorf("expected template error, got %v", err)
	}
}

func TestBacktestReadCommandsOnEmptyStore(t *testing.T) {
	dir := configDir(t)

	out, err := execute(t, "backtest", "results", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No results") {
		t.Errorf("results output = %q", out)
	}

	out, err = execute(t, "backtest", "ledger", "INFY", "2025-04", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No hedge trades") {
		t.Errorf("ledger output = %q", out)
	}

	if _, err := execute(t, "backtest", "ledger", "INFY", "April", "--config", dir); err == nil {
		t.Error("expected month parse error")
	}
}

func TestExportResultsEmptyStore(t *testing.T) {
	dir := configDir(t)
	target := filepath.Join(t.TempDir(), "results.json")

	out, err := execute(t, "export", "results", "--config", dir, "--format", "json", "-o", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Exported 0 results") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	if _, err := execute(t, "export", "results", "--config", dir, "--format", "xml"); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestMetricsStatusEmptyStore(t *testing.T) {
	dir := configDir(t)
	out, err := execute(t, "metrics", "status", "--json", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	var status storeStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("bad JSON %q: %v", out, err)
	}
	if len(status.Symbols) != 0 || len(status.Freshness) != 2 {
		t.Fatalf("status = %+v", status)
	}
	for _, f := range status.Freshness {
		if !f.Never() || f.IsFresh {
			t.Errorf("%s should never have been built: %+v", f.DataType, f)
		}
	}
}
