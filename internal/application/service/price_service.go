package service

import (
	"github.com/shopspring/decimal"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

// Holding is a position held outside this process.
type Holding struct {
	Symbol      string
	Class       domain.AssetClass
	Quantity    decimal.Decimal
	AvgBuyPrice decimal.Decimal
}

type HoldingValue struct {
	Holding
	// Priced is false when no live price was known and AvgBuyPrice stood in.
	Priced    bool
	Price     decimal.Decimal
	Value     decimal.Decimal
	Cost      decimal.Decimal
	PL        decimal.Decimal
	PLPercent decimal.Decimal
}

type Valuation struct {
	Rows          []HoldingValue
	Balance       decimal.Decimal
	HoldingsValue decimal.Decimal
	TotalCost     decimal.Decimal
	TotalValue    decimal.Decimal // Balance + HoldingsValue
	PL            decimal.Decimal
	PLPercent     decimal.Decimal
}

type PriceService struct {
	prices port.PriceLookup
}

func NewPriceService(prices port.PriceLookup) *PriceService {
	return &PriceService{prices: prices}
}

func (s *PriceService) LatestPrice(symbol string, class domain.AssetClass) (float64, bool) {
	return s.prices.LatestPrice(symbol, class)
}

var hundred = decimal.NewFromInt(100)

// Valuate marks holdings to the latest prices. A holding without a positive
// live price is valued at its average buy price, so it contributes no P&L.
func (s *PriceService) Valuate(balance decimal.Decimal, holdings []Holding) Valuation {
	v := Valuation{Balance: balance, Rows: make([]HoldingValue, 0, len(holdings))}

	for _, h := range holdings {
		row := HoldingValue{Holding: h, Price: h.AvgBuyPrice}
		if px, ok := s.prices.LatestPrice(h.Symbol, h.Class); ok && px > 0 {
			row.Priced = true
			row.Price = decimal.NewFromFloat(px)
		}
		row.Value = h.Quantity.Mul(row.Price)
		row.Cost = h.Quantity.Mul(h.AvgBuyPrice)
		row.PL = row.Value.Sub(row.Cost)
		row.PLPercent = percentOf(row.PL, row.Cost)

		v.HoldingsValue = v.HoldingsValue.Add(row.Value)
		v.TotalCost = v.TotalCost.Add(row.Cost)
		v.Rows = append(v.Rows, row)
	}

	v.TotalValue = balance.Add(v.HoldingsValue)
	v.PL = v.HoldingsValue.Sub(v.TotalCost)
	v.PLPercent = percentOf(v.PL, v.TotalCost)
	return v
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(4)
}
