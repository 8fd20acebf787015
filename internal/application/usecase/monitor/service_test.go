package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finscope/internal/application/market"
	"finscope/internal/application/notify"
	"finscope/internal/application/port"
	"finscope/internal/application/service"
	"finscope/internal/domain"
)

type fakeFeed[T domain.Quote] struct {
	name string
	subs *notify.Registry[map[string]T]

	mu          sync.Mutex
	connects    int
	disconnects int
}

func newFakeFeed[T domain.Quote](name string) *fakeFeed[T] {
	return &fakeFeed[T]{name: name, subs: notify.NewRegistry[map[string]T](name)}
}

func (f *fakeFeed[T]) Name() string { return f.name }

func (f *fakeFeed[T]) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeFeed[T]) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.subs.Clear()
}

func (f *fakeFeed[T]) Subscribe(fn func(map[string]T)) func() {
	return f.subs.Subscribe(fn, nil)
}

func (f *fakeFeed[T]) Status() port.FeedStatus { return port.FeedStatus{State: "open"} }

func (f *fakeFeed[T]) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

type mockSink struct {
	mu        sync.Mutex
	live      []string
	snapshots []string
	newlines  int
}

func (m *mockSink) WriteLive(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = append(m.live, line)
	return nil
}

func (m *mockSink) WriteSnapshot(ts time.Time, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, line)
	return nil
}

func (m *mockSink) NewLine() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newlines++
	return nil
}

func (m *mockSink) lastLive() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.live) == 0 {
		return ""
	}
	return m.live[len(m.live)-1]
}

func TestRunRequiresAFeed(t *testing.T) {
	svc := NewService(ServiceDeps{Store: market.NewStore(), Sink: &mockSink{}})
	if err := svc.Run(context.Background()); err != ErrNoFeeds {
		t.Fatalf("expected ErrNoFeeds, got %v", err)
	}
}

func TestRunMergesFeedsAndRenders(t *testing.T) {
	crypto := newFakeFeed[domain.CryptoPrice]("BINANCE")
	stocks := newFakeFeed[domain.AssetPrice]("FINNHUB")
	store := market.NewStore()
	sink := &mockSink{}

	svc := NewService(ServiceDeps{
		Crypto:      crypto,
		Stocks:      stocks,
		Store:       store,
		Sink:        sink,
		RenderEvery: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for crypto.subs.Len() == 0 || stocks.subs.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("feeds never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	crypto.subs.Notify(map[string]domain.CryptoPrice{"BTC": {Symbol: "BTC", Price: 42000, ChangePercent: 1.5}})
	stocks.subs.Notify(map[string]domain.AssetPrice{"OANDA:XAU_USD": {Symbol: "OANDA:XAU_USD", Price: 2400}})

	if _, ok := store.CryptoPrice("BTC"); !ok {
		t.Fatalf("crypto not merged into store")
	}
	if _, ok := store.StockPrice("OANDA:XAU_USD"); !ok {
		t.Fatalf("stocks not merged into store")
	}

	for {
		line := sink.lastLive()
		if strings.Contains(line, "BTC") && strings.Contains(line, "Gold (XAU/USD)") {
			if !strings.HasPrefix(line, "\r") || !strings.Contains(line, "$42,000.00") {
				t.Fatalf("unexpected live line %q", line)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("live line never rendered, last %q", line)
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}

	if c, d := crypto.counts(); c != 1 || d != 1 {
		t.Fatalf("crypto connects=%d disconnects=%d", c, d)
	}
	if c, d := stocks.counts(); c != 1 || d != 1 {
		t.Fatalf("stocks connects=%d disconnects=%d", c, d)
	}
	if sink.newlines != 1 {
		t.Fatalf("expected trailing newline")
	}
}

func TestSnapshotFrameIncludesMoversAndPortfolio(t *testing.T) {
	store := market.NewStore()
	store.MergeCrypto(map[string]domain.CryptoPrice{
		"BTC": {Symbol: "BTC", Price: 100, ChangePercent: 5},
		"ETH": {Symbol: "ETH", Price: 10, ChangePercent: -3},
	})

	svc := NewService(ServiceDeps{
		Crypto:   newFakeFeed[domain.CryptoPrice]("BINANCE"),
		Store:    store,
		Sink:     &mockSink{},
		Prices:   service.NewPriceService(store),
		Balance:  decimal.NewFromInt(100),
		Holdings: []service.Holding{{Symbol: "BTC", Class: domain.ClassCrypto, Quantity: decimal.NewFromInt(2), AvgBuyPrice: decimal.NewFromInt(50)}},
		MoversN:  1,
	})

	fr := svc.Frame(true)
	if fr.StockStatus != nil {
		t.Fatalf("stocks feed not configured, status should be nil")
	}
	if len(fr.Movers) != 2 || fr.Movers[0].Symbol != "BTC" || fr.Movers[1].Symbol != "ETH" {
		t.Fatalf("unexpected movers %+v", fr.Movers)
	}
	if fr.Valuation == nil || !fr.Valuation.PL.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected valuation %+v", fr.Valuation)
	}

	line := svc.Render(RenderSnapshot)
	if strings.HasPrefix(line, "\r") || !strings.Contains(line, "portfolio") || !strings.Contains(line, "movers") {
		t.Fatalf("unexpected snapshot line %q", line)
	}
}

func TestActiveMarketHidesPartition(t *testing.T) {
	store := market.NewStore()
	store.SetActiveMarket(market.MarketStocks)
	svc := NewService(ServiceDeps{
		Crypto: newFakeFeed[domain.CryptoPrice]("BINANCE"),
		Stocks: newFakeFeed[domain.AssetPrice]("FINNHUB"),
		Store:  store,
		Sink:   &mockSink{},
	})
	fr := svc.Frame(false)
	if fr.CryptoStatus != nil || fr.StockStatus == nil {
		t.Fatalf("expected only stocks, got %+v", fr)
	}
}
