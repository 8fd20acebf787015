package pricefeed

import (
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"finscope/internal/application/port"
)

// Statuser is the part of a price feed the board needs.
type Statuser interface {
	Name() string
	Status() port.FeedStatus
}

// Board maps feed names to live feeds for health reporting.
type Board struct {
	mu    sync.RWMutex
	feeds map[string]Statuser
}

func NewBoard() *Board {
	return &Board{feeds: make(map[string]Statuser)}
}

// Register adds f, replacing any feed with the same name.
func (b *Board) Register(f Statuser) {
	if f == nil {
		log.Warn().Msg("invalid price feed")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.feeds[f.Name()]; exists {
		log.Warn().Str("feed", f.Name()).Msg("price feed already registered, overwriting")
	}
	b.feeds[f.Name()] = f
	log.Debug().Str("feed", f.Name()).Msg("price feed registered")
}

func (b *Board) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.feeds))
}

// Statuses reads every feed's current status.
func (b *Board) Statuses() map[string]port.FeedStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]port.FeedStatus, len(b.feeds))
	for name, f := range b.feeds {
		out[name] = f.Status()
	}
	return out
}

// Healthy is false when any feed is degraded.
func (b *Board) Healthy() bool {
	for _, st := range b.Statuses() {
		if st.Degraded {
			return false
		}
	}
	return true
}
