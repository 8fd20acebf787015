package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"finscope/internal/application"
	"finscope/internal/application/notify"
	"finscope/internal/application/port"
	"finscope/internal/domain"
	"finscope/internal/infrastructure/exchange"
	"finscope/internal/infrastructure/websocket"
)

const DefaultWsURL = "wss://stream.binance.com:9443"

var DefaultCoins = []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "MATIC", "DOT", "AVAX"}

type Options struct {
	WsURL   string // e.g. wss://stream.binance.com:9443
	Quote   string // defaults to USDT
	Coins   []string
	Retry   websocket.RetryConfig
	Failure websocket.FailureConfig
	Dialer  websocket.Dialer
	Clock   port.Clock
}

// TickerFeed streams 24h tickers for a fixed coin set over one combined
// stream and notifies subscribers on every ticker event.
type TickerFeed struct {
	conv  exchange.SymbolConverter
	clock port.Clock
	sup   *websocket.Supervisor
	subs  *notify.Registry[map[string]domain.CryptoPrice]
	fan   *notify.Coalescer

	mu     sync.RWMutex
	prices map[string]domain.CryptoPrice
}

var _ port.CryptoFeed = (*TickerFeed)(nil)

func NewTickerFeed(opts Options) (*TickerFeed, error) {
	if strings.TrimSpace(opts.WsURL) == "" {
		opts.WsURL = DefaultWsURL
	}
	if strings.TrimSpace(opts.Quote) == "" {
		opts.Quote = "USDT"
	}
	if len(opts.Coins) == 0 {
		opts.Coins = DefaultCoins
	}
	if opts.Clock == nil {
		opts.Clock = port.SystemClock()
	}

	f := &TickerFeed{
		conv:   exchange.NewCommonSymbolConverter(opts.Quote),
		clock:  opts.Clock,
		subs:   notify.NewRegistry[map[string]domain.CryptoPrice](application.FeedBinance),
		prices: make(map[string]domain.CryptoPrice),
	}

	f.fan = notify.NewCoalescer(opts.Clock, notify.OnEveryEvent(), f.flush)

	symbols := make([]string, 0, len(opts.Coins))
	for _, coin := range opts.Coins {
		if s := f.conv.Coin2Symbol(coin); s != "" {
			symbols = append(symbols, s)
		}
	}
	wsURL, err := buildCombinedURL(opts.WsURL, symbols)
	if err != nil {
		return nil, err
	}

	f.sup = websocket.NewSupervisor(websocket.Options{
		Name:      application.FeedBinance,
		URL:       wsURL,
		Dialer:    opts.Dialer,
		Clock:     opts.Clock,
		Retry:     opts.Retry,
		Failure:   opts.Failure,
		OnMessage: f.handle,
	})
	return f, nil
}

func (f *TickerFeed) Name() string { return application.FeedBinance }

func buildCombinedURL(base string, symbols []string) (string, error) {
	if len(symbols) == 0 {
		return "", errors.New("binance: symbols empty")
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, fmt.Sprintf("%s@ticker", strings.ToLower(s)))
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("binance: ws_url: %w", err)
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

func (f *TickerFeed) Connect() {
	f.fan.Resume()
	f.sup.Connect()
}

func (f *TickerFeed) Disconnect() {
	f.sup.Disconnect()
	f.fan.Stop()
	f.subs.Clear()
}

func (f *TickerFeed) Status() port.FeedStatus {
	return port.FeedStatus{State: f.sup.State().String(), Degraded: f.sup.Degraded()}
}

// Subscribe registers fn for every ticker event. fn gets the current table
// right away when it is not empty.
func (f *TickerFeed) Subscribe(fn func(map[string]domain.CryptoPrice)) func() {
	return f.subs.Subscribe(fn, func() (map[string]domain.CryptoPrice, bool) {
		snap := f.Prices()
		return snap, len(snap) > 0
	})
}

// Prices returns a copy of the table.
func (f *TickerFeed) Prices() map[string]domain.CryptoPrice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return maps.Clone(f.prices)
}

func (f *TickerFeed) Price(symbol string) (domain.CryptoPrice, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[domain.CanonicalSymbol(symbol)]
	return p, ok
}

type combined struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type ticker struct {
	Symbol        string `json:"s"`
	Close         string `json:"c"`
	Change        string `json:"p"`
	ChangePercent string `json:"P"`
	Volume        string `json:"v"`
	High          string `json:"h"`
	Low           string `json:"l"`
}

func (f *TickerFeed) handle(b []byte) {
	p, err := f.parse(b)
	if err != nil {
		log.Warn().Err(err).Str("feed", f.Name()).Msg("ticker skipped")
		return
	}
	if p.Symbol == "" {
		return
	}

	f.mu.Lock()
	f.prices[p.Symbol] = p
	f.mu.Unlock()

	f.fan.Trigger()
}

func (f *TickerFeed) flush() {
	f.subs.Notify(f.Prices())
}

// parse returns a zero record with no error for frames that carry no ticker.
func (f *TickerFeed) parse(b []byte) (domain.CryptoPrice, error) {
	var env combined
	if err := json.Unmarshal(b, &env); err != nil {
		return domain.CryptoPrice{}, fmt.Errorf("%w: %v", exchange.ErrMalformedMessage, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.CryptoPrice{}, nil
	}
	var t ticker
	var err error
	if err = json.Unmarshal(env.Data, &t); err != nil {
		return domain.CryptoPrice{}, fmt.Errorf("%w: %v", exchange.ErrMalformedMessage, err)
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return domain.CryptoPrice{}, fmt.Errorf("%w: missing symbol", exchange.ErrMalformedMessage)
	}

	p := domain.CryptoPrice{
		Symbol:     f.conv.Symbol2Coin(t.Symbol),
		LastUpdate: f.clock.Now().UnixMilli(),
	}
	if p.Price, err = exchange.ParseNumber("c", t.Close); err != nil {
		return domain.CryptoPrice{}, err
	}
	if p.Change, err = exchange.ParseSigned("p", t.Change); err != nil {
		return domain.CryptoPrice{}, err
	}
	if p.ChangePercent, err = exchange.ParseSigned("P", t.ChangePercent); err != nil {
		return domain.CryptoPrice{}, err
	}
	if p.Volume, err = exchange.ParseNumber("v", t.Volume); err != nil {
		return domain.CryptoPrice{}, err
	}
	if p.High24h, err = exchange.ParseNumber("h", t.High); err != nil {
		return domain.CryptoPrice{}, err
	}
	if p.Low24h, err = exchange.ParseNumber("l", t.Low); err != nil {
		return domain.CryptoPrice{}, err
	}
	return p, nil
}
