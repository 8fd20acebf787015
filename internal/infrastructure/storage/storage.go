// Package storage holds the price mirror backends.
package storage

import (
	"context"
	"maps"
	"sync"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

// Memory keeps mirrored rows in process. It backs the mirror when storage is
// enabled without any external backend, and serves as a test double.
type Memory struct {
	mu     sync.RWMutex
	rows   map[string]port.LatestPrice
	writes int
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]port.LatestPrice)}
}

func (m *Memory) UpsertLatest(ctx context.Context, prices []port.LatestPrice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prices {
		m.rows[string(p.Class)+":"+p.Symbol] = p
	}
	m.writes++
	return nil
}

func (m *Memory) Latest(class domain.AssetClass, symbol string) (port.LatestPrice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.rows[string(class)+":"+symbol]
	return p, ok
}

func (m *Memory) Rows() map[string]port.LatestPrice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.rows)
}

// Writes counts UpsertLatest calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }

var _ port.PriceMirror = (*Memory)(nil)
