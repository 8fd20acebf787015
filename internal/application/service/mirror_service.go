package service

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"finscope/internal/application/port"
	"finscope/internal/domain"
)

// MirrorService copies changed rows of the read model to a PriceMirror.
// Rows that change again before the next write are coalesced; the limiter
// bounds how often the mirror is written.
type MirrorService struct {
	mirror  port.PriceMirror
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]port.LatestPrice
	seen    map[string]port.LatestPrice // last recorded row per key
	signal  chan struct{}
}

func NewMirrorService(mirror port.PriceMirror, perSec float64, burst int) *MirrorService {
	if perSec <= 0 {
		perSec = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &MirrorService{
		mirror:  mirror,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		pending: make(map[string]port.LatestPrice),
		seen:    make(map[string]port.LatestPrice),
		signal:  make(chan struct{}, 1),
	}
}

func (s *MirrorService) RecordCrypto(snap map[string]domain.CryptoPrice) {
	rows := make([]port.LatestPrice, 0, len(snap))
	for _, p := range snap {
		rows = append(rows, port.FromCrypto(p))
	}
	s.record(rows)
}

func (s *MirrorService) RecordStocks(snap map[string]domain.AssetPrice) {
	rows := make([]port.LatestPrice, 0, len(snap))
	for _, p := range snap {
		rows = append(rows, port.FromAsset(p))
	}
	s.record(rows)
}

func (s *MirrorService) record(rows []port.LatestPrice) {
	added := false
	s.mu.Lock()
	for _, r := range rows {
		key := string(r.Class) + ":" + r.Symbol
		// same-millisecond rows still count when they differ
		if last, ok := s.seen[key]; ok && (last.Ts > r.Ts || last == r) {
			continue
		}
		s.seen[key] = r
		s.pending[key] = r
		added = true
	}
	s.mu.Unlock()

	if added {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// Run writes pending rows until ctx is done, then flushes once more.
func (s *MirrorService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			s.flush(fctx)
			cancel()
			return nil
		case <-s.signal:
			if err := s.limiter.Wait(ctx); err != nil {
				continue
			}
			s.flush(ctx)
		}
	}
}

func (s *MirrorService) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	rows := make([]port.LatestPrice, 0, len(s.pending))
	for _, r := range s.pending {
		rows = append(rows, r)
	}
	clear(s.pending)
	s.mu.Unlock()

	slices.SortFunc(rows, func(a, b port.LatestPrice) int {
		return cmp.Or(cmp.Compare(a.Class, b.Class), cmp.Compare(a.Symbol, b.Symbol))
	})
	if err := s.mirror.UpsertLatest(ctx, rows); err != nil {
		log.Warn().Err(err).Int("rows", len(rows)).Msg("price mirror write failed")
		return
	}
	log.Debug().Int("rows", len(rows)).Msg("price mirror updated")
}
