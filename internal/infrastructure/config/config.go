package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

var (
	// ErrNoFeedsEnabled: every feed is disabled.
	ErrNoFeedsEnabled = errors.New("no price feeds enabled")
	// ErrMissingToken is reported as a warning; the feed still starts.
	ErrMissingToken = errors.New("feeds.finnhub.token is empty")
)

// Env vars that override the file.
const (
	EnvFinnhubToken = "FINNHUB_API_KEY"
	EnvPostgresDSN  = "POSTGRES_DSN"
	EnvRedisAddr    = "REDIS_ADDR"
)

type Config struct {
	App struct {
		LogLevel      string `toml:"log_level"`
		PrintEveryMin int    `toml:"print_every_min"`
		RenderEveryMs int    `toml:"render_every_ms"`
		TopN          int    `toml:"top_n"`
		Market        string `toml:"market"`
		SortField     string `toml:"sort_field"`
		Search        string `toml:"search"`
	} `toml:"app"`

	Feeds struct {
		Binance BinanceConfig `toml:"binance"`
		Finnhub FinnhubConfig `toml:"finnhub"`
		Failure struct {
			Threshold int `toml:"threshold"`
			WindowSec int `toml:"window_sec"`
		} `toml:"failure"`
	} `toml:"feeds"`

	Gateway struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		SendBuffer int    `toml:"send_buffer"`
	} `toml:"gateway"`

	Storage StorageConfig `toml:"storage"`

	Portfolio struct {
		Balance  float64         `toml:"balance"`
		Holdings []HoldingConfig `toml:"holdings"`
	} `toml:"portfolio"`
}

type Reconnect struct {
	DelayMs    int `toml:"reconnect_delay_ms"`
	MaxDelayMs int `toml:"max_reconnect_delay_ms"`
}

type BinanceConfig struct {
	Enabled bool     `toml:"enabled"`
	WsURL   string   `toml:"ws_url"`
	Quote   string   `toml:"quote"`
	Symbols []string `toml:"symbols"`
	Reconnect
}

type FinnhubConfig struct {
	Enabled    bool     `toml:"enabled"`
	WsURL      string   `toml:"ws_url"`
	Token      string   `toml:"token"`
	Symbols    []string `toml:"symbols"`
	DebounceMs int      `toml:"debounce_ms"`
	Reconnect
}

type StorageConfig struct {
	Enabled    bool    `toml:"enabled"`
	RatePerSec float64 `toml:"rate_per_sec"`
	Burst      int     `toml:"burst"`

	Redis struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		Password   string `toml:"password"`
		DB         int    `toml:"db"`
		Prefix     string `toml:"prefix"`
		TTLSeconds int    `toml:"ttl_seconds"`
	} `toml:"redis"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`
}

type HoldingConfig struct {
	Symbol      string  `toml:"symbol"`
	Class       string  `toml:"class"`
	Quantity    float64 `toml:"quantity"`
	AvgBuyPrice float64 `toml:"avg_buy_price"`
}

// Load reads envPath (if present) into the process environment, decodes the
// TOML file, then applies defaults and env overrides.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaultBinanceCoins = []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "MATIC", "DOT", "AVAX"}

var defaultFinnhubSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA", "AMD", "NFLX", "DIS", "OANDA:XAU_USD",
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.PrintEveryMin <= 0 {
		cfg.App.PrintEveryMin = 5
	}
	if cfg.App.RenderEveryMs <= 0 {
		cfg.App.RenderEveryMs = 250
	}
	if cfg.App.TopN <= 0 {
		cfg.App.TopN = 5
	}
	if cfg.App.Market == "" {
		cfg.App.Market = "both"
	}
	if cfg.App.SortField == "" {
		cfg.App.SortField = "price"
	}

	b := &cfg.Feeds.Binance
	if b.WsURL == "" {
		b.WsURL = "wss://stream.binance.com:9443"
	}
	if b.Quote == "" {
		b.Quote = "USDT"
	}
	if len(b.Symbols) == 0 {
		b.Symbols = defaultBinanceCoins
	}
	b.Reconnect = reconnectDefaults(b.Reconnect)

	f := &cfg.Feeds.Finnhub
	if f.WsURL == "" {
		f.WsURL = "wss://ws.finnhub.io"
	}
	if len(f.Symbols) == 0 {
		f.Symbols = defaultFinnhubSymbols
	}
	if f.DebounceMs <= 0 {
		f.DebounceMs = 200
	}
	f.Reconnect = reconnectDefaults(f.Reconnect)

	if cfg.Feeds.Failure.Threshold == 0 {
		cfg.Feeds.Failure.Threshold = 5
	}
	if cfg.Feeds.Failure.WindowSec <= 0 {
		cfg.Feeds.Failure.WindowSec = 120
	}

	if cfg.Gateway.Addr == "" {
		cfg.Gateway.Addr = ":8090"
	}
	if cfg.Gateway.SendBuffer <= 0 {
		cfg.Gateway.SendBuffer = 16
	}

	s := &cfg.Storage
	if s.RatePerSec <= 0 {
		s.RatePerSec = 2
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	if s.Redis.Addr == "" {
		s.Redis.Addr = "localhost:6379"
	}
	if s.Redis.Prefix == "" {
		s.Redis.Prefix = "finscope"
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = "data/finscope.db"
	}
}

// reconnectDefaults: 5s fixed delay unless a larger max enables backoff.
func reconnectDefaults(r Reconnect) Reconnect {
	if r.DelayMs <= 0 {
		r.DelayMs = 5000
	}
	if r.MaxDelayMs < r.DelayMs {
		r.MaxDelayMs = r.DelayMs
	}
	return r
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvFinnhubToken)); v != "" {
		cfg.Feeds.Finnhub.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Storage.Redis.Addr = v
	}
}

func validate(cfg *Config) error {
	cfg.Feeds.Binance.Symbols = normalizeSymbols(cfg.Feeds.Binance.Symbols)
	cfg.Feeds.Finnhub.Symbols = normalizeSymbols(cfg.Feeds.Finnhub.Symbols)

	if !cfg.Feeds.Binance.Enabled && !cfg.Feeds.Finnhub.Enabled {
		return ErrNoFeedsEnabled
	}

	switch strings.ToLower(cfg.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", cfg.App.LogLevel)
	}
	switch strings.ToLower(cfg.App.Market) {
	case "crypto", "stocks", "both":
	default:
		return fmt.Errorf("app.market %q is not one of crypto, stocks, both", cfg.App.Market)
	}
	switch strings.ToLower(cfg.App.SortField) {
	case "name", "price", "change", "volume":
	default:
		return fmt.Errorf("app.sort_field %q is not one of name, price, change, volume", cfg.App.SortField)
	}

	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	for i, h := range cfg.Portfolio.Holdings {
		if c := strings.ToLower(h.Class); c != "crypto" && c != "stocks" {
			return fmt.Errorf("portfolio.holdings[%d].class %q is not crypto or stocks", i, h.Class)
		}
		if h.Quantity < 0 || h.AvgBuyPrice < 0 {
			return fmt.Errorf("portfolio.holdings[%d] has a negative quantity or price", i)
		}
	}
	return nil
}

// Warnings lists problems that do not stop startup.
func (cfg *Config) Warnings() []error {
	var out []error
	if cfg.Feeds.Finnhub.Enabled && strings.TrimSpace(cfg.Feeds.Finnhub.Token) == "" {
		out = append(out, fmt.Errorf("%w; set %s", ErrMissingToken, EnvFinnhubToken))
	}
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
