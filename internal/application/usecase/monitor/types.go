package monitor

import (
	"finscope/internal/application/port"
	"finscope/internal/application/service"
	"finscope/internal/domain"
)

// Frame is everything one render needs, taken from the store at one point.
type Frame struct {
	Crypto []domain.CryptoPrice
	Stocks []domain.AssetPrice

	// nil when the feed is not enabled
	CryptoStatus *port.FeedStatus
	StockStatus  *port.FeedStatus

	Movers    []Mover
	Valuation *service.Valuation
}

// Mover is one row of the top gainers/losers list.
type Mover struct {
	Class         domain.AssetClass
	Symbol        string
	ChangePercent float64
}
