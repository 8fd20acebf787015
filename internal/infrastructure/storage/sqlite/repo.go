package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  price REAL NOT NULL,
  change REAL NOT NULL,
  change_percent REAL NOT NULL,
  volume REAL NOT NULL,
  high_24h REAL NOT NULL DEFAULT 0,
  low_24h REAL NOT NULL DEFAULT 0,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(class, symbol)
);
CREATE INDEX IF NOT EXISTS idx_latest_prices_ts ON latest_prices(ts_ms);
`)
	return err
}

// UpsertLatest writes the batch in one transaction.
func (r *Repo) UpsertLatest(ctx context.Context, prices []port.LatestPrice) error {
	if len(prices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latest_prices(class, symbol, price, change, change_percent, volume, high_24h, low_24h, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(class, symbol) DO UPDATE SET
		price=excluded.price, change=excluded.change, change_percent=excluded.change_percent,
		volume=excluded.volume, high_24h=excluded.high_24h, low_24h=excluded.low_24h,
		ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx, string(p.Class), p.Symbol, p.Price, p.Change, p.ChangePercent,
			p.Volume, p.High24h, p.Low24h, p.Ts, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Latest reads one mirrored row. sql.ErrNoRows when absent.
func (r *Repo) Latest(ctx context.Context, class domain.AssetClass, symbol string) (port.LatestPrice, error) {
	p := port.LatestPrice{Class: class, Symbol: symbol}
	err := r.db.QueryRowContext(ctx, `
		SELECT price, change, change_percent, volume, high_24h, low_24h, ts_ms
		FROM latest_prices WHERE class=? AND symbol=?`, string(class), symbol).
		Scan(&p.Price, &p.Change, &p.ChangePercent, &p.Volume, &p.High24h, &p.Low24h, &p.Ts)
	return p, err
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM latest_prices`).Scan(&n)
	return n, err
}

var _ port.PriceMirror = (*Repo)(nil)
