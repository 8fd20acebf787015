package monitor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"finscope/internal/application/market"
	"finscope/internal/application/port"
	"finscope/internal/application/service"
	"finscope/internal/domain"

	"github.com/rs/zerolog/log"
)

var ErrNoFeeds = errors.New("monitor: no feeds")

type ServiceDeps struct {
	Crypto port.CryptoFeed // optional
	Stocks port.StockFeed  // optional
	Store  *market.Store
	Sink   port.Sink
	Mirror *service.MirrorService // optional
	Prices *service.PriceService  // optional, enables the portfolio line

	Balance  decimal.Decimal
	Holdings []service.Holding

	RenderEvery   time.Duration
	PrintEveryMin int
	TopN          int // rows per partition in the live line
	MoversN       int
}

type Service struct {
	deps  ServiceDeps
	st    *State
	fmt   *Formatter
	dirty atomic.Bool
}

func NewService(deps ServiceDeps) *Service {
	if deps.RenderEvery <= 0 {
		deps.RenderEvery = 250 * time.Millisecond
	}
	if deps.PrintEveryMin <= 0 {
		deps.PrintEveryMin = 5
	}
	if deps.TopN <= 0 {
		deps.TopN = 5
	}
	if deps.MoversN <= 0 {
		deps.MoversN = 5
	}
	return &Service{
		deps: deps,
		st:   NewState(),
		fmt:  NewFormatter(),
	}
}

// Run wires the feeds into the store, connects them and renders until ctx is
// done. Feeds are disconnected before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Crypto == nil && s.deps.Stocks == nil {
		return ErrNoFeeds
	}

	var unsubs []func()
	defer func() {
		for _, u := range slices.Backward(unsubs) {
			u()
		}
	}()

	unsubs = append(unsubs,
		s.deps.Store.SubscribeCrypto(func(snap map[string]domain.CryptoPrice) {
			if s.st.ApplyCrypto(snap) {
				s.dirty.Store(true)
			}
			if s.deps.Mirror != nil {
				s.deps.Mirror.RecordCrypto(snap)
			}
		}),
		s.deps.Store.SubscribeStocks(func(snap map[string]domain.AssetPrice) {
			if s.st.ApplyStocks(snap) {
				s.dirty.Store(true)
			}
			if s.deps.Mirror != nil {
				s.deps.Mirror.RecordStocks(snap)
			}
		}),
	)

	var wg sync.WaitGroup
	if s.deps.Mirror != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.deps.Mirror.Run(ctx)
		}()
	}

	// start feeds
	if f := s.deps.Crypto; f != nil {
		unsubs = append(unsubs, f.Subscribe(s.deps.Store.MergeCrypto))
		f.Connect()
		log.Info().Str("feed", f.Name()).Msg("feed started")
	}
	if f := s.deps.Stocks; f != nil {
		unsubs = append(unsubs, f.Subscribe(s.deps.Store.MergeStocks))
		f.Connect()
		log.Info().Str("feed", f.Name()).Msg("feed started")
	}

	renderTicker := time.NewTicker(s.deps.RenderEvery)
	defer renderTicker.Stop()
	snapTicker := time.NewTicker(time.Duration(s.deps.PrintEveryMin) * time.Minute)
	defer snapTicker.Stop()

	// initial live line
	_ = s.deps.Sink.WriteLive(s.Render(RenderLive))

	for {
		select {
		case <-ctx.Done():
			s.stop()
			wg.Wait()
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snapTicker.C:
			_ = s.deps.Sink.WriteSnapshot(now, s.Render(RenderSnapshot))

		case <-renderTicker.C:
			if s.dirty.Swap(false) {
				_ = s.deps.Sink.WriteLive(s.Render(RenderLive))
			}
		}
	}
}

func (s *Service) stop() {
	if f := s.deps.Crypto; f != nil {
		f.Disconnect()
		log.Info().Str("feed", f.Name()).Msg("feed stopped")
	}
	if f := s.deps.Stocks; f != nil {
		f.Disconnect()
		log.Info().Str("feed", f.Name()).Msg("feed stopped")
	}
}

// Render builds a frame from the store and formats it.
func (s *Service) Render(mode RenderMode) string {
	return s.fmt.Render(s.st, s.Frame(mode == RenderSnapshot), mode)
}

func (s *Service) Frame(withSummary bool) Frame {
	var fr Frame
	store := s.deps.Store
	prefs := store.Prefs()

	if f := s.deps.Crypto; f != nil && prefs.Market != market.MarketStocks {
		st := f.Status()
		fr.CryptoStatus = &st
		fr.Crypto = head(store.CryptoTable(), s.deps.TopN)
	}
	if f := s.deps.Stocks; f != nil && prefs.Market != market.MarketCrypto {
		st := f.Status()
		fr.StockStatus = &st
		fr.Stocks = head(store.StockTable(), s.deps.TopN)
	}

	if !withSummary {
		return fr
	}

	up, down := domain.TopMovers(store.Crypto(), s.deps.MoversN)
	sup, sdown := domain.TopMovers(store.Stocks(), s.deps.MoversN)
	fr.Movers = append(fr.Movers, cryptoMovers(up)...)
	fr.Movers = append(fr.Movers, stockMovers(sup)...)
	fr.Movers = append(fr.Movers, cryptoMovers(down)...)
	fr.Movers = append(fr.Movers, stockMovers(sdown)...)

	if s.deps.Prices != nil && len(s.deps.Holdings) > 0 {
		v := s.deps.Prices.Valuate(s.deps.Balance, s.deps.Holdings)
		fr.Valuation = &v
	}
	return fr
}

func head[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

func cryptoMovers(rows []domain.CryptoPrice) []Mover {
	out := make([]Mover, 0, len(rows))
	for _, p := range rows {
		out = append(out, Mover{Class: domain.ClassCrypto, Symbol: p.Symbol, ChangePercent: p.ChangePercent})
	}
	return out
}

func stockMovers(rows []domain.AssetPrice) []Mover {
	out := make([]Mover, 0, len(rows))
	for _, p := range rows {
		out = append(out, Mover{Class: domain.ClassStocks, Symbol: p.Symbol, ChangePercent: p.ChangePercent})
	}
	return out
}
