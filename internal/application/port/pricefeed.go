package port

import "finscope/internal/domain"

// FeedStatus is a point-in-time view of a feed's connection.
type FeedStatus struct {
	State    string // idle, connecting, open, closed, reconnect_scheduled
	Degraded bool   // repeated failed sessions, e.g. a rejected credential
}

// PriceFeed is one long-lived upstream connection that owns a price table.
// Connect and Disconnect return immediately; data arrives via Subscribe.
type PriceFeed[T domain.Quote] interface {
	Name() string
	Connect()
	Disconnect()
	// Subscribe registers fn for full-table snapshots. The returned func
	// removes exactly this registration and is safe to call more than once.
	Subscribe(fn func(map[string]T)) (unsubscribe func())
	Status() FeedStatus
}

type CryptoFeed = PriceFeed[domain.CryptoPrice]
type StockFeed = PriceFeed[domain.AssetPrice]

// PriceLookup answers "latest known price for symbol in class".
type PriceLookup interface {
	LatestPrice(symbol string, class domain.AssetClass) (float64, bool)
}
