package market

import (
	"strings"

	"finscope/internal/domain"
)

type Market string

const (
	MarketCrypto Market = "crypto"
	MarketStocks Market = "stocks"
	MarketBoth   Market = "both"
)

func ParseMarket(s string) (Market, bool) {
	switch m := Market(strings.ToLower(strings.TrimSpace(s))); m {
	case MarketCrypto, MarketStocks, MarketBoth:
		return m, true
	default:
		return "", false
	}
}

// Prefs are the table view settings shared by consumers.
type Prefs struct {
	Market      Market
	SortField   domain.SortField
	SortOrder   domain.SortOrder
	SearchQuery string
}

func DefaultPrefs() Prefs {
	return Prefs{
		Market:    MarketBoth,
		SortField: domain.SortByPrice,
		SortOrder: domain.Desc,
	}
}

func (s *Store) Prefs() Prefs {
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	return s.prefs
}

func (s *Store) SetActiveMarket(m Market) {
	s.prefsMu.Lock()
	defer s.prefsMu.Unlock()
	s.prefs.Market = m
}

// SetSortField flips the order when field is already selected, otherwise
// selects field in descending order.
func (s *Store) SetSortField(field domain.SortField) {
	s.prefsMu.Lock()
	defer s.prefsMu.Unlock()
	if s.prefs.SortField == field {
		if s.prefs.SortOrder == domain.Asc {
			s.prefs.SortOrder = domain.Desc
		} else {
			s.prefs.SortOrder = domain.Asc
		}
		return
	}
	s.prefs.SortField = field
	s.prefs.SortOrder = domain.Desc
}

func (s *Store) SetSearchQuery(q string) {
	s.prefsMu.Lock()
	defer s.prefsMu.Unlock()
	s.prefs.SearchQuery = q
}

// CryptoTable is the crypto partition filtered and sorted per Prefs.
func (s *Store) CryptoTable() []domain.CryptoPrice {
	p := s.Prefs()
	return domain.Rank(domain.FilterBySymbol(s.Crypto(), p.SearchQuery), p.SortField, p.SortOrder, 0)
}

func (s *Store) StockTable() []domain.AssetPrice {
	p := s.Prefs()
	return domain.Rank(domain.FilterBySymbol(s.Stocks(), p.SearchQuery), p.SortField, p.SortOrder, 0)
}
