package finnhub

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"finscope/internal/application"
	"finscope/internal/application/notify"
	"finscope/internal/application/port"
	"finscope/internal/domain"
	"finscope/internal/infrastructure/exchange"
	"finscope/internal/infrastructure/websocket"
)

const (
	DefaultWsURL    = "wss://ws.finnhub.io"
	DefaultDebounce = 200 * time.Millisecond
)

var DefaultSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN",
	"META", "NVDA", "AMD", "NFLX", "DIS",
	"OANDA:XAU_USD",
}

type Options struct {
	WsURL    string
	Token    string
	Symbols  []string
	Debounce time.Duration // <= 0 uses DefaultDebounce
	Retry    websocket.RetryConfig
	Failure  websocket.FailureConfig
	Dialer   websocket.Dialer
	Clock    port.Clock
}

// TradeFeed folds trade ticks into per-symbol records. Subscribers are
// notified at most once per debounce window with the latest table.
type TradeFeed struct {
	symbols  []string
	clock    port.Clock
	sup      *websocket.Supervisor
	subs     *notify.Registry[map[string]domain.AssetPrice]
	debounce *notify.Coalescer

	mu     sync.RWMutex
	prices map[string]domain.AssetPrice
}

var _ port.StockFeed = (*TradeFeed)(nil)

func NewTradeFeed(opts Options) (*TradeFeed, error) {
	if strings.TrimSpace(opts.WsURL) == "" {
		opts.WsURL = DefaultWsURL
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = DefaultSymbols
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = port.SystemClock()
	}
	if strings.TrimSpace(opts.Token) == "" {
		log.Warn().Str("feed", application.FeedFinnhub).Msg("api token is empty, the provider will reject the connection")
	}

	u, err := url.Parse(opts.WsURL)
	if err != nil {
		return nil, fmt.Errorf("finnhub: ws_url: %w", err)
	}
	q := u.Query()
	q.Set("token", opts.Token)
	u.RawQuery = q.Encode()

	f := &TradeFeed{
		clock:  opts.Clock,
		subs:   notify.NewRegistry[map[string]domain.AssetPrice](application.FeedFinnhub),
		prices: make(map[string]domain.AssetPrice),
	}
	for _, s := range opts.Symbols {
		if s = domain.CanonicalSymbol(s); s != "" {
			f.symbols = append(f.symbols, s)
		}
	}
	f.debounce = notify.NewCoalescer(opts.Clock, notify.Coalesce(opts.Debounce), f.flush)
	f.sup = websocket.NewSupervisor(websocket.Options{
		Name:                   application.FeedFinnhub,
		URL:                    u.String(),
		Dialer:                 opts.Dialer,
		Clock:                  opts.Clock,
		Retry:                  opts.Retry,
		Failure:                opts.Failure,
		ReconnectOnNormalClose: true,
		OnOpen:                 f.subscribeAll,
		OnMessage:              f.handle,
		OnClosing:              f.unsubscribeAll,
	})
	return f, nil
}

func (f *TradeFeed) Name() string { return application.FeedFinnhub }

func (f *TradeFeed) Connect() {
	f.debounce.Resume()
	f.sup.Connect()
}

// Disconnect sends the unsubscribe handshake, closes the socket and drops
// any pending notification. Subscribers are removed.
func (f *TradeFeed) Disconnect() {
	f.sup.Disconnect()
	f.debounce.Stop()
	f.subs.Clear()
}

func (f *TradeFeed) Status() port.FeedStatus {
	return port.FeedStatus{State: f.sup.State().String(), Degraded: f.sup.Degraded()}
}

func (f *TradeFeed) Subscribe(fn func(map[string]domain.AssetPrice)) func() {
	return f.subs.Subscribe(fn, func() (map[string]domain.AssetPrice, bool) {
		snap := f.Prices()
		return snap, len(snap) > 0
	})
}

func (f *TradeFeed) Prices() map[string]domain.AssetPrice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return maps.Clone(f.prices)
}

func (f *TradeFeed) Price(symbol string) (domain.AssetPrice, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[domain.CanonicalSymbol(symbol)]
	return p, ok
}

type control struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func (f *TradeFeed) subscribeAll(sess *websocket.Session) error {
	for _, s := range f.symbols {
		if err := sess.WriteJSON(control{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Debug().Str("feed", f.Name()).Str("symbol", s).Msg("subscribed")
	}
	return nil
}

// unsubscribeAll is fire-and-forget; write errors are ignored.
func (f *TradeFeed) unsubscribeAll(sess *websocket.Session) {
	for _, s := range f.symbols {
		_ = sess.WriteJSON(control{Type: "unsubscribe", Symbol: s})
	}
}

type envelope struct {
	Type string  `json:"type"`
	Data []trade `json:"data"`
	Msg  string  `json:"msg"`
}

type trade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	Ts     int64   `json:"t"`
}

func (f *TradeFeed) handle(b []byte) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", exchange.ErrMalformedMessage, err)).Str("feed", f.Name()).Msg("message skipped")
		return
	}

	switch env.Type {
	case "trade":
	case "error":
		log.Error().Str("feed", f.Name()).Str("msg", env.Msg).Msg("provider error")
		return
	default:
		// ping and anything unknown
		return
	}

	now := f.clock.Now().UnixMilli()
	changed := false

	f.mu.Lock()
	for _, tr := range env.Data {
		sym := domain.CanonicalSymbol(tr.Symbol)
		if sym == "" || tr.Price < 0 || tr.Volume < 0 {
			log.Warn().Str("feed", f.Name()).Str("symbol", tr.Symbol).
				Float64("price", tr.Price).Float64("volume", tr.Volume).Msg("trade skipped")
			continue
		}
		f.prices[sym] = fold(f.prices[sym], sym, tr, now)
		changed = true
	}
	f.mu.Unlock()

	if changed {
		f.debounce.Trigger()
	}
}

// fold applies one tick to the previous record. Change is measured against
// the previously stored price, not a reference close, so the first tick of
// a symbol reports no change. Volume accumulates.
func fold(prev domain.AssetPrice, sym string, tr trade, now int64) domain.AssetPrice {
	rec := domain.AssetPrice{
		Symbol:     sym,
		Price:      tr.Price,
		Volume:     prev.Volume + tr.Volume,
		LastUpdate: now,
	}
	if prev.Symbol != "" {
		rec.Change = tr.Price - prev.Price
		if prev.Price != 0 {
			rec.ChangePercent = rec.Change / prev.Price * 100
		}
	}
	return rec
}

func (f *TradeFeed) flush() {
	f.subs.Notify(f.Prices())
}
