package market

import (
	"testing"

	"finscope/internal/domain"
)

func TestMergeIsKeyWise(t *testing.T) {
	s := NewStore()
	s.MergeCrypto(map[string]domain.CryptoPrice{
		"BTC": {Symbol: "BTC", Price: 100},
		"ETH": {Symbol: "ETH", Price: 10},
	})
	s.MergeCrypto(map[string]domain.CryptoPrice{
		"BTC": {Symbol: "BTC", Price: 101},
	})

	snap := s.Crypto()
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}
	if snap["BTC"].Price != 101 || snap["ETH"].Price != 10 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMergeReplacesWholeRecord(t *testing.T) {
	s := NewStore()
	s.MergeStocks(map[string]domain.AssetPrice{"AAPL": {Symbol: "AAPL", Price: 1, Volume: 50}})
	s.MergeStocks(map[string]domain.AssetPrice{"AAPL": {Symbol: "AAPL", Price: 2}})

	if p, _ := s.StockPrice("aapl"); p.Volume != 0 || p.Price != 2 {
		t.Fatalf("expected full replacement, got %+v", p)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.MergeCrypto(map[string]domain.CryptoPrice{"BTC": {Symbol: "BTC", Price: 1}})

	snap := s.Crypto()
	snap["BTC"] = domain.CryptoPrice{Symbol: "BTC", Price: 999}
	delete(snap, "BTC")

	if p, ok := s.CryptoPrice("BTC"); !ok || p.Price != 1 {
		t.Fatalf("store mutated through snapshot: %+v", p)
	}
}

func TestPartitionsAreIndependent(t *testing.T) {
	s := NewStore()
	cryptoCalls, stockCalls := 0, 0
	s.SubscribeCrypto(func(map[string]domain.CryptoPrice) { cryptoCalls++ })
	s.SubscribeStocks(func(map[string]domain.AssetPrice) { stockCalls++ })

	s.MergeStocks(map[string]domain.AssetPrice{"AAPL": {Symbol: "AAPL", Price: 1}})
	if cryptoCalls != 0 || stockCalls != 1 {
		t.Fatalf("crypto=%d stocks=%d", cryptoCalls, stockCalls)
	}
	if len(s.Crypto()) != 0 {
		t.Fatalf("crypto partition touched")
	}
}

func TestSubscribeReplayAndUnsubscribe(t *testing.T) {
	s := NewStore()
	s.MergeCrypto(map[string]domain.CryptoPrice{"BTC": {Symbol: "BTC", Price: 1}})

	var got []map[string]domain.CryptoPrice
	unsub := s.SubscribeCrypto(func(m map[string]domain.CryptoPrice) { got = append(got, m) })
	if len(got) != 1 || got[0]["BTC"].Price != 1 {
		t.Fatalf("expected replay, got %v", got)
	}

	other := 0
	s.SubscribeCrypto(func(map[string]domain.CryptoPrice) { other++ })

	unsub()
	unsub()
	s.MergeCrypto(map[string]domain.CryptoPrice{"BTC": {Symbol: "BTC", Price: 2}})
	if len(got) != 1 {
		t.Fatalf("unsubscribed callback invoked")
	}
	if other != 2 {
		t.Fatalf("expected other subscriber to see replay and merge, got %d", other)
	}
}

func TestEmptyMergeDoesNotNotify(t *testing.T) {
	s := NewStore()
	calls := 0
	s.SubscribeCrypto(func(map[string]domain.CryptoPrice) { calls++ })
	s.MergeCrypto(nil)
	if calls != 0 {
		t.Fatalf("expected no notification, got %d", calls)
	}
}

func TestLatestPrice(t *testing.T) {
	s := NewStore()
	s.MergeCrypto(map[string]domain.CryptoPrice{"BTC": {Symbol: "BTC", Price: 42}})
	s.MergeStocks(map[string]domain.AssetPrice{"OANDA:XAU_USD": {Symbol: "OANDA:XAU_USD", Price: 2400}})

	if p, ok := s.LatestPrice("btc", domain.ClassCrypto); !ok || p != 42 {
		t.Fatalf("crypto lookup: %v %v", p, ok)
	}
	if p, ok := s.LatestPrice("oanda:xau_usd", domain.ClassStocks); !ok || p != 2400 {
		t.Fatalf("stocks lookup: %v %v", p, ok)
	}
	if _, ok := s.LatestPrice("BTC", domain.ClassStocks); ok {
		t.Fatalf("lookup must respect class")
	}
}
