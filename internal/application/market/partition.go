package market

import (
	"maps"
	"sync"

	"finscope/internal/application/notify"
	"finscope/internal/domain"
)

// Partition is the latest record per symbol for one asset class.
type Partition[T domain.Quote] struct {
	// order serializes merge+notify so subscribers see snapshots in merge order.
	order sync.Mutex
	mu    sync.RWMutex
	data  map[string]T
	subs  *notify.Registry[map[string]T]
}

func newPartition[T domain.Quote](name string) *Partition[T] {
	return &Partition[T]{
		data: make(map[string]T),
		subs: notify.NewRegistry[map[string]T](name),
	}
}

// Merge replaces the records for every key in batch and keeps the rest.
// Keys are canonicalized.
func (p *Partition[T]) Merge(batch map[string]T) {
	if len(batch) == 0 {
		return
	}
	p.order.Lock()
	defer p.order.Unlock()

	p.mu.Lock()
	for k, v := range batch {
		if k = domain.CanonicalSymbol(k); k != "" {
			p.data[k] = v
		}
	}
	snap := maps.Clone(p.data)
	p.mu.Unlock()

	p.subs.Notify(snap)
}

// Snapshot returns a copy the caller may keep.
func (p *Partition[T]) Snapshot() map[string]T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.data)
}

func (p *Partition[T]) Get(symbol string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[domain.CanonicalSymbol(symbol)]
	return v, ok
}

func (p *Partition[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

// Subscribe registers fn for post-merge snapshots. A non-empty partition is
// replayed to fn before Subscribe returns.
func (p *Partition[T]) Subscribe(fn func(map[string]T)) func() {
	return p.subs.Subscribe(fn, func() (map[string]T, bool) {
		snap := p.Snapshot()
		return snap, len(snap) > 0
	})
}
