package composite

import (
	"context"
	"errors"
	"testing"

	"finscope/internal/application/port"
	"finscope/internal/domain"
	"finscope/internal/infrastructure/storage"
)

type failingMirror struct{ closed bool }

func (f *failingMirror) UpsertLatest(context.Context, []port.LatestPrice) error {
	return errors.New("down")
}

func (f *failingMirror) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestCompositeFansOut(t *testing.T) {
	a, b := storage.NewMemory(), storage.NewMemory()
	bad := &failingMirror{}
	repo := New(a, nil, bad, b)
	if repo.Len() != 3 {
		t.Fatalf("expected nil filtered, got %d", repo.Len())
	}

	rows := []port.LatestPrice{{Class: domain.ClassCrypto, Symbol: "BTC", Price: 1}}
	if err := repo.UpsertLatest(context.Background(), rows); err == nil {
		t.Fatalf("expected error from failing mirror")
	}
	if _, ok := b.Latest(domain.ClassCrypto, "BTC"); !ok {
		t.Fatalf("mirror after the failing one was skipped")
	}
	if _, ok := a.Latest(domain.ClassCrypto, "BTC"); !ok {
		t.Fatalf("first mirror not written")
	}

	if err := repo.Close(); err == nil || !bad.closed {
		t.Fatalf("expected close error and all mirrors closed")
	}
}
