// Package market is the shared read model both feeds merge into.
package market

import (
	"sync"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

// Store holds the crypto and stocks partitions plus view preferences.
type Store struct {
	crypto *Partition[domain.CryptoPrice]
	stocks *Partition[domain.AssetPrice]

	prefsMu sync.RWMutex
	prefs   Prefs
}

var _ port.PriceLookup = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		crypto: newPartition[domain.CryptoPrice](string(domain.ClassCrypto)),
		stocks: newPartition[domain.AssetPrice](string(domain.ClassStocks)),
		prefs:  DefaultPrefs(),
	}
}

func (s *Store) MergeCrypto(batch map[string]domain.CryptoPrice) { s.crypto.Merge(batch) }
func (s *Store) MergeStocks(batch map[string]domain.AssetPrice)  { s.stocks.Merge(batch) }

func (s *Store) Crypto() map[string]domain.CryptoPrice { return s.crypto.Snapshot() }
func (s *Store) Stocks() map[string]domain.AssetPrice  { return s.stocks.Snapshot() }

func (s *Store) CryptoPrice(symbol string) (domain.CryptoPrice, bool) { return s.crypto.Get(symbol) }
func (s *Store) StockPrice(symbol string) (domain.AssetPrice, bool)   { return s.stocks.Get(symbol) }

func (s *Store) SubscribeCrypto(fn func(map[string]domain.CryptoPrice)) func() {
	return s.crypto.Subscribe(fn)
}

func (s *Store) SubscribeStocks(fn func(map[string]domain.AssetPrice)) func() {
	return s.stocks.Subscribe(fn)
}

// LatestPrice returns the last known price for symbol in class.
func (s *Store) LatestPrice(symbol string, class domain.AssetClass) (float64, bool) {
	switch class {
	case domain.ClassCrypto:
		if p, ok := s.crypto.Get(symbol); ok {
			return p.Price, true
		}
	case domain.ClassStocks:
		if p, ok := s.stocks.Get(symbol); ok {
			return p.Price, true
		}
	}
	return 0, false
}
