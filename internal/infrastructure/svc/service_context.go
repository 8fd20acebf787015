package svc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	appcontainer "finscope/internal/application/container"
	"finscope/internal/application/market"
	"finscope/internal/application/port"
	"finscope/internal/application/service"
	"finscope/internal/application/usecase/monitor"
	"finscope/internal/domain"
	"finscope/internal/infrastructure/config"
	"finscope/internal/infrastructure/container"
	"finscope/internal/infrastructure/exchange/binance"
	"finscope/internal/infrastructure/exchange/finnhub"
	"finscope/internal/infrastructure/pricefeed"
	"finscope/internal/infrastructure/websocket"
	"finscope/internal/interfaces/console"
	"finscope/internal/interfaces/gateway"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// infrastructure
	infra *container.Container

	// output port
	Sink port.Sink

	// application components
	app      *appcontainer.Container
	store    *market.Store
	crypto   *binance.TickerFeed
	stocks   *finnhub.TradeFeed
	gateway  *gateway.Server
	board    *pricefeed.Board
	holdings []service.Holding

	closerChain []func() error
}

// New builds every dependency of the process in one place.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents runs in dependency order.
func (sc *ServiceContext) initializeComponents() error {
	infra, err := container.New(sc.Ctx, sc.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	sc.infra = infra
	sc.closerChain = append(sc.closerChain, infra.Close)

	sc.store = market.NewStore()
	sc.applyPrefs()

	st := sc.Config.Storage
	sc.app = appcontainer.New(sc.store, infra.Mirror(), st.RatePerSec, st.Burst)

	if err := sc.initFeeds(); err != nil {
		return err
	}
	sc.holdings = holdingsFromConfig(sc.Config.Portfolio.Holdings)

	if sc.Config.Gateway.Enabled {
		sc.gateway = gateway.NewServer(sc.store, sc.Config.Gateway.Addr, sc.Config.Gateway.SendBuffer)
		sc.gateway.SetStatusSource(sc.board)
	}

	log.Info().
		Bool("crypto", sc.crypto != nil).
		Bool("stocks", sc.stocks != nil).
		Bool("mirror", infra.Mirror() != nil).
		Bool("gateway", sc.gateway != nil).
		Msg("✓ All components initialized")
	return nil
}

func (sc *ServiceContext) applyPrefs() {
	app := sc.Config.App
	if m, ok := market.ParseMarket(app.Market); ok {
		sc.store.SetActiveMarket(m)
	}
	if f, ok := domain.ParseSortField(app.SortField); ok && f != sc.store.Prefs().SortField {
		sc.store.SetSortField(f)
	}
	sc.store.SetSearchQuery(app.Search)
}

func (sc *ServiceContext) initFeeds() error {
	feeds := sc.Config.Feeds
	failure := websocket.FailureConfig{
		Threshold: feeds.Failure.Threshold,
		Window:    time.Duration(feeds.Failure.WindowSec) * time.Second,
	}

	if b := feeds.Binance; b.Enabled {
		feed, err := binance.NewTickerFeed(binance.Options{
			WsURL:   b.WsURL,
			Quote:   b.Quote,
			Coins:   b.Symbols,
			Retry:   retryOf(b.Reconnect),
			Failure: failure,
		})
		if err != nil {
			return fmt.Errorf("binance feed: %w", err)
		}
		sc.crypto = feed
	}

	if f := feeds.Finnhub; f.Enabled {
		feed, err := finnhub.NewTradeFeed(finnhub.Options{
			WsURL:    f.WsURL,
			Token:    f.Token,
			Symbols:  f.Symbols,
			Debounce: time.Duration(f.DebounceMs) * time.Millisecond,
			Retry:    retryOf(f.Reconnect),
			Failure:  failure,
		})
		if err != nil {
			return fmt.Errorf("finnhub feed: %w", err)
		}
		sc.stocks = feed
	}

	if sc.crypto == nil && sc.stocks == nil {
		return ErrNoFeedsEnabled
	}

	sc.board = pricefeed.NewBoard()
	if sc.crypto != nil {
		sc.board.Register(sc.crypto)
	}
	if sc.stocks != nil {
		sc.board.Register(sc.stocks)
	}
	return nil
}

func retryOf(r config.Reconnect) websocket.RetryConfig {
	return websocket.RetryConfig{
		InitialDelay: time.Duration(r.DelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(r.MaxDelayMs) * time.Millisecond,
	}
}

func holdingsFromConfig(in []config.HoldingConfig) []service.Holding {
	out := make([]service.Holding, 0, len(in))
	for _, h := range in {
		out = append(out, service.Holding{
			Symbol:      domain.CanonicalSymbol(h.Symbol),
			Class:       domain.AssetClass(strings.ToLower(h.Class)),
			Quantity:    decimal.NewFromFloat(h.Quantity),
			AvgBuyPrice: decimal.NewFromFloat(h.AvgBuyPrice),
		})
	}
	return out
}

// BuildMonitorServiceDeps collects what monitor.Service needs.
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	deps := monitor.ServiceDeps{
		Store:         sc.store,
		Sink:          sc.Sink,
		Mirror:        sc.app.MirrorService(),
		Prices:        sc.app.PriceService(),
		Balance:       decimal.NewFromFloat(sc.Config.Portfolio.Balance),
		Holdings:      sc.holdings,
		RenderEvery:   time.Duration(sc.Config.App.RenderEveryMs) * time.Millisecond,
		PrintEveryMin: sc.Config.App.PrintEveryMin,
		TopN:          sc.Config.App.TopN,
	}
	// typed nil must not reach the interface fields
	if sc.crypto != nil {
		deps.Crypto = sc.crypto
	}
	if sc.stocks != nil {
		deps.Stocks = sc.stocks
	}
	return deps
}

// Feeds lists the enabled feeds by name.
func (sc *ServiceContext) Feeds() *pricefeed.Board {
	return sc.board
}

// Gateway is nil unless enabled in config.
func (sc *ServiceContext) Gateway() *gateway.Server {
	return sc.gateway
}

func (sc *ServiceContext) Store() *market.Store {
	return sc.store
}

// Close releases resources in reverse order.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
