package monitor

import (
	"sync"

	"finscope/internal/domain"
)

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

type pxState struct {
	num float64
	has bool
	dir Dir
}

// State remembers the last rendered price per (class, symbol) so rows can be
// colored by direction.
type State struct {
	mu sync.Mutex
	px map[string]*pxState
}

func NewState() *State {
	return &State{px: make(map[string]*pxState)}
}

func stateKey(class domain.AssetClass, symbol string) string {
	return string(class) + ":" + symbol
}

// Apply records price and reports whether it differs from the last one.
func (s *State) Apply(class domain.AssetClass, symbol string, price float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(class, symbol)
	ps := s.px[key]
	if ps == nil {
		ps = &pxState{}
		s.px[key] = ps
	}

	// first sighting has no direction
	if !ps.has {
		ps.has = true
		ps.num = price
		ps.dir = DirSame
		return true
	}
	if ps.num == price {
		return false
	}

	if price > ps.num {
		ps.dir = DirUp
	} else {
		ps.dir = DirDown
	}
	ps.num = price
	return true
}

func (s *State) ApplyCrypto(snap map[string]domain.CryptoPrice) bool {
	changed := false
	for sym, p := range snap {
		if s.Apply(domain.ClassCrypto, sym, p.Price) {
			changed = true
		}
	}
	return changed
}

func (s *State) ApplyStocks(snap map[string]domain.AssetPrice) bool {
	changed := false
	for sym, p := range snap {
		if s.Apply(domain.ClassStocks, sym, p.Price) {
			changed = true
		}
	}
	return changed
}

func (s *State) Dir(class domain.AssetClass, symbol string) Dir {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps := s.px[stateKey(class, symbol)]; ps != nil {
		return ps.dir
	}
	return DirSame
}
