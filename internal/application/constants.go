package application

// Feed names, used as the "feed" log field and in status lines.
const (
	FeedBinance = "BINANCE"
	FeedFinnhub = "FINNHUB"
)
