package redis

import (
	"context"
	"encoding/json"
	"time"

	"finscope/internal/application/port"
	"finscope/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Repo mirrors the latest price per symbol into one hash per asset class and
// announces every batch on a stream and a pub/sub channel.
type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	streamLen int64
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, streamLen int64) *Repo {
	if prefix == "" {
		prefix = "finscope"
	}
	if streamLen <= 0 {
		streamLen = 10000
	}
	return &Repo{rdb: rdb, prefix: prefix, ttl: ttl, streamLen: streamLen}
}

// LatestKey is the hash holding class rows: field = symbol -> json.
func (r *Repo) LatestKey(class domain.AssetClass) string {
	return r.prefix + ":latest:" + string(class)
}

func (r *Repo) StreamKey() string { return r.prefix + ":prices" }

func (r *Repo) Channel(class domain.AssetClass) string {
	return r.prefix + ":prices." + string(class)
}

func (r *Repo) UpsertLatest(ctx context.Context, prices []port.LatestPrice) error {
	if len(prices) == 0 {
		return nil
	}
	byClass := make(map[domain.AssetClass][]port.LatestPrice)
	pipe := r.rdb.Pipeline()
	for _, p := range prices {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.LatestKey(p.Class), p.Symbol, string(b))
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.StreamKey(),
			MaxLen: r.streamLen,
			Approx: true,
			Values: map[string]any{
				"class":  string(p.Class),
				"symbol": p.Symbol,
				"price":  p.Price,
				"ts_ms":  p.Ts,
			},
		})
		byClass[p.Class] = append(byClass[p.Class], p)
	}
	for class, rows := range byClass {
		if r.ttl > 0 {
			pipe.Expire(ctx, r.LatestKey(class), r.ttl)
		}
		// subscribers receive the whole batch as a JSON array
		b, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, r.Channel(class), string(b))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.PriceMirror = (*Repo)(nil)
