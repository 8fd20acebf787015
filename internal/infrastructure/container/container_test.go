package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"finscope/internal/application/port"
	"finscope/internal/domain"
	"finscope/internal/infrastructure/config"
)

func TestContainerStorageDisabled(t *testing.T) {
	c, err := New(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if c.Mirror() != nil {
		t.Errorf("expected no mirror with storage disabled")
	}
}

func TestContainerMemoryFallback(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Enabled = true
	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if c.MemoryMirror() == nil || c.Mirror() == nil {
		t.Fatalf("expected in-memory mirror")
	}
}

func TestContainerSQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Storage.Enabled = true
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "c.db")
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = mr.Addr()
	cfg.Storage.Redis.Prefix = "fs"

	ctx := context.Background()
	c, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.SQLiteRepo() == nil || c.RedisRepo() == nil {
		t.Fatalf("expected both backends")
	}
	row := port.LatestPrice{Class: domain.ClassCrypto, Symbol: "BTC", Price: 45000, Ts: 1}
	if err := c.Mirror().UpsertLatest(ctx, []port.LatestPrice{row}); err != nil {
		t.Fatalf("UpsertLatest: %v", err)
	}
	if got, err := c.SQLiteRepo().Latest(ctx, domain.ClassCrypto, "BTC"); err != nil || got.Price != 45000 {
		t.Errorf("sqlite row %+v (%v)", got, err)
	}
	if mr.HGet("fs:latest:crypto", "BTC") == "" {
		t.Errorf("redis row missing")
	}
}

func TestContainerRedisUnreachable(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Enabled = true
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = "127.0.0.1:1"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected redis ping failure")
	}
}
