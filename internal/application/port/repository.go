package port

import (
	"context"

	"finscope/internal/domain"
)

// LatestPrice is the flattened row written to price mirrors.
type LatestPrice struct {
	Class         domain.AssetClass `json:"class"`
	Symbol        string            `json:"symbol"`
	Price         float64           `json:"price"`
	Change        float64           `json:"change"`
	ChangePercent float64           `json:"changePercent"`
	Volume        float64           `json:"volume"`
	High24h       float64           `json:"high24h,omitempty"`
	Low24h        float64           `json:"low24h,omitempty"`
	Ts            int64             `json:"ts"` // unix ms
}

// PriceMirror exports the latest record per (class, symbol) to an external
// store. It is write-only from this process: nothing is read back into the
// in-memory tables.
type PriceMirror interface {
	UpsertLatest(ctx context.Context, prices []LatestPrice) error
	Close() error
}

func FromCrypto(p domain.CryptoPrice) LatestPrice {
	return LatestPrice{
		Class:         domain.ClassCrypto,
		Symbol:        p.Symbol,
		Price:         p.Price,
		Change:        p.Change,
		ChangePercent: p.ChangePercent,
		Volume:        p.Volume,
		High24h:       p.High24h,
		Low24h:        p.Low24h,
		Ts:            p.LastUpdate,
	}
}

func FromAsset(p domain.AssetPrice) LatestPrice {
	return LatestPrice{
		Class:         domain.ClassStocks,
		Symbol:        p.Symbol,
		Price:         p.Price,
		Change:        p.Change,
		ChangePercent: p.ChangePercent,
		Volume:        p.Volume,
		Ts:            p.LastUpdate,
	}
}
