package exchange

import (
	"strings"
)

// SymbolConverter maps between venue pairs and bare coins.
type SymbolConverter interface {
	// Symbol2Coin: BTCUSDT -> BTC
	Symbol2Coin(symbol string) string

	// Coin2Symbol: BTC -> BTCUSDT
	Coin2Symbol(coin string) string

	// SymbolSuffix is the quote currency, e.g. USDT.
	SymbolSuffix() string
}

// CommonSymbolConverter handles venues that concatenate base and quote
// without a separator.
type CommonSymbolConverter struct {
	suffix string
}

func NewCommonSymbolConverter(suffix string) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix))}
}

func (c *CommonSymbolConverter) SymbolSuffix() string {
	return c.suffix
}

// Symbol2Coin strips the quote suffix once, from the end only.
// e.g. BTCUSDT -> BTC, USDTUSDT -> USDT
func (c *CommonSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	if coin, ok := strings.CutSuffix(sym, c.suffix); ok && coin != "" {
		return coin
	}
	return sym
}

// Coin2Symbol appends the suffix once: BTC -> BTCUSDT, BTCUSDT -> BTCUSDT.
func (c *CommonSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	// already a pair
	if strings.HasSuffix(coin, c.suffix) && coin != c.suffix {
		return coin
	}
	return coin + c.suffix
}
