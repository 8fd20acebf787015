package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_prices (
  class TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  change DOUBLE PRECISION NOT NULL,
  change_percent DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL,
  high_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
  low_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
  ts_ms BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY(class, symbol)
);
`)
	return err
}

func (r *Repo) UpsertLatest(ctx context.Context, prices []port.LatestPrice) error {
	if len(prices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, p := range prices {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO latest_prices(class, symbol, price, change, change_percent, volume, high_24h, low_24h, ts_ms, updated_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT(class, symbol) DO UPDATE SET
			price=EXCLUDED.price, change=EXCLUDED.change, change_percent=EXCLUDED.change_percent,
			volume=EXCLUDED.volume, high_24h=EXCLUDED.high_24h, low_24h=EXCLUDED.low_24h,
			ts_ms=EXCLUDED.ts_ms, updated_at=EXCLUDED.updated_at
		`, string(p.Class), p.Symbol, p.Price, p.Change, p.ChangePercent, p.Volume, p.High24h, p.Low24h, p.Ts, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Latest(ctx context.Context, class domain.AssetClass, symbol string) (port.LatestPrice, error) {
	p := port.LatestPrice{Class: class, Symbol: symbol}
	err := r.db.QueryRowContext(ctx, `
		SELECT price, change, change_percent, volume, high_24h, low_24h, ts_ms
		FROM latest_prices WHERE class=$1 AND symbol=$2`, string(class), symbol).
		Scan(&p.Price, &p.Change, &p.ChangePercent, &p.Volume, &p.High24h, &p.Low24h, &p.Ts)
	return p, err
}

var _ port.PriceMirror = (*Repo)(nil)
