package storage

import (
	"context"
	"testing"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

func TestMemoryLatestWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.UpsertLatest(ctx, []port.LatestPrice{{Class: domain.ClassCrypto, Symbol: "BTC", Price: 1}})
	_ = m.UpsertLatest(ctx, []port.LatestPrice{{Class: domain.ClassCrypto, Symbol: "BTC", Price: 2}})

	p, ok := m.Latest(domain.ClassCrypto, "BTC")
	if !ok || p.Price != 2 {
		t.Fatalf("expected latest price 2, got %+v %v", p, ok)
	}
	if _, ok := m.Latest(domain.ClassStocks, "BTC"); ok {
		t.Errorf("classes must not share rows")
	}
	if m.Writes() != 2 || len(m.Rows()) != 1 {
		t.Errorf("writes=%d rows=%d", m.Writes(), len(m.Rows()))
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.UpsertLatest(cctx, nil); err == nil {
		t.Errorf("expected context error")
	}
}
