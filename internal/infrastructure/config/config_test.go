package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvFinnhubToken, "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
[feeds.binance]
enabled = true
symbols = ["btc", " eth ", "BTC", ""]
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Feeds.Binance.Symbols; len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Fatalf("symbols not normalized: %v", got)
	}
	if cfg.Feeds.Binance.DelayMs != 5000 || cfg.Feeds.Binance.MaxDelayMs != 5000 {
		t.Fatalf("unexpected reconnect defaults %+v", cfg.Feeds.Binance.Reconnect)
	}
	if cfg.Feeds.Finnhub.DebounceMs != 200 || len(cfg.Feeds.Finnhub.Symbols) != 11 {
		t.Fatalf("unexpected finnhub defaults %+v", cfg.Feeds.Finnhub)
	}
	if cfg.App.Market != "both" || cfg.App.SortField != "price" || cfg.App.LogLevel != "info" {
		t.Fatalf("unexpected app defaults %+v", cfg.App)
	}
	if cfg.Storage.Enabled {
		t.Fatalf("storage must be off by default")
	}
	if d := time.Duration(cfg.Feeds.Failure.WindowSec) * time.Second; d != 2*time.Minute {
		t.Fatalf("unexpected failure window %v", d)
	}
}

func TestLoadNoFeeds(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `[app]
log_level = "debug"
`)
	if _, err := Load(path, ""); !errors.Is(err, ErrNoFeedsEnabled) {
		t.Fatalf("expected ErrNoFeedsEnabled, got %v", err)
	}
}

func TestEnvFileOverridesToken(t *testing.T) {
	// registered so the var is restored after godotenv sets it
	t.Setenv(EnvFinnhubToken, "")
	os.Unsetenv(EnvFinnhubToken)

	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
[feeds.finnhub]
enabled = true
token = "from-file"
`)
	env := writeFile(t, dir, ".env", EnvFinnhubToken+"=from-env\n")

	cfg, err := Load(path, env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feeds.Finnhub.Token != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.Feeds.Finnhub.Token)
	}
	if len(cfg.Warnings()) != 0 {
		t.Fatalf("unexpected warnings %v", cfg.Warnings())
	}
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv(EnvFinnhubToken, "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
[feeds.finnhub]
enabled = true
`)
	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	warn := cfg.Warnings()
	if len(warn) != 1 || !errors.Is(warn[0], ErrMissingToken) {
		t.Fatalf("expected missing token warning, got %v", warn)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"log level": "[app]\nlog_level = \"loud\"\n[feeds.binance]\nenabled = true\n",
		"market":    "[app]\nmarket = \"forex\"\n[feeds.binance]\nenabled = true\n",
		"postgres":  "[feeds.binance]\nenabled = true\n[storage.postgres]\nenabled = true\n",
		"holding":   "[feeds.binance]\nenabled = true\n[[portfolio.holdings]]\nsymbol = \"BTC\"\nclass = \"bonds\"\n",
	}
	t.Setenv(EnvPostgresDSN, "")
	for name, body := range cases {
		path := writeFile(t, t.TempDir(), "config.toml", body)
		if _, err := Load(path, ""); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
