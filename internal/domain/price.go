package domain

import "strings"

// AssetClass names one partition of the price table.
type AssetClass string

const (
	ClassCrypto AssetClass = "crypto"
	ClassStocks AssetClass = "stocks"
)

// Quote is the shape shared by both partitions.
type Quote interface {
	Key() string
	LastPrice() float64
	// Metric returns the numeric value used to rank by field.
	// SortByName has no numeric value and returns 0.
	Metric(field SortField) float64
}

// CryptoPrice is one exchange ticker, replaced wholesale on every update.
type CryptoPrice struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"priceChange24h"`
	ChangePercent float64 `json:"priceChangePercent24h"`
	Volume        float64 `json:"volume24h"`
	High24h       float64 `json:"high24h"`
	Low24h        float64 `json:"low24h"`
	LastUpdate    int64   `json:"lastUpdate"` // unix ms, local ingestion time
}

func (p CryptoPrice) Key() string        { return p.Symbol }
func (p CryptoPrice) LastPrice() float64 { return p.Price }

func (p CryptoPrice) Metric(field SortField) float64 {
	switch field {
	case SortByPrice:
		return p.Price
	case SortByChange:
		return p.ChangePercent
	case SortByVolume:
		return p.Volume
	default:
		return 0
	}
}

// AssetPrice is a brokerage instrument folded from trade ticks.
//
// Change and ChangePercent are the delta against the previously stored
// price for the symbol, not a 24h change. Volume accumulates across ticks.
type AssetPrice struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"priceChange"`
	ChangePercent float64 `json:"priceChangePercent"`
	Volume        float64 `json:"volume"`
	LastUpdate    int64   `json:"lastUpdate"` // unix ms, local ingestion time
}

func (p AssetPrice) Key() string        { return p.Symbol }
func (p AssetPrice) LastPrice() float64 { return p.Price }

func (p AssetPrice) Metric(field SortField) float64 {
	switch field {
	case SortByPrice:
		return p.Price
	case SortByChange:
		return p.ChangePercent
	case SortByVolume:
		return p.Volume
	default:
		return 0
	}
}

// CanonicalSymbol is the cache key form of a ticker.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var displayNames = map[string]string{
	"OANDA:XAU_USD": "Gold (XAU/USD)",
}

// DisplayName returns a human label for provider-specific synthetic symbols,
// or the symbol itself.
func DisplayName(symbol string) string {
	if name, ok := displayNames[CanonicalSymbol(symbol)]; ok {
		return name
	}
	return symbol
}
