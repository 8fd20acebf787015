package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"finscope/internal/application/port"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnectScheduled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Options struct {
	Name   string
	URL    string
	Dialer Dialer
	Clock  port.Clock

	Retry   RetryConfig
	Failure FailureConfig

	// ReconnectOnNormalClose also reconnects after a 1000 close from the peer.
	ReconnectOnNormalClose bool

	DialTimeout  time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration

	// OnOpen runs after the handshake, before the first read.
	// An error closes the session and schedules a reconnect.
	OnOpen func(*Session) error
	// OnMessage receives every data frame of the current session.
	OnMessage func([]byte)
	// OnClosing runs before a caller-initiated close while the session is
	// still writable.
	OnClosing func(*Session)
}

// Supervisor owns one logical websocket connection and reconnects it after
// unexpected closes. Every session carries a generation number; Disconnect
// bumps it so late events from an abandoned session are ignored.
type Supervisor struct {
	opts Options

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	session  *Session
	timer    port.Timer
	retry    backoff
	failures failureDetector

	live      atomic.Uint64
	sessionOK atomic.Bool
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.Dialer == nil {
		opts.Dialer = GorillaDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = port.SystemClock()
	}
	if opts.Retry.InitialDelay <= 0 {
		opts.Retry = DefaultRetryConfig
	}
	if opts.Failure == (FailureConfig{}) {
		opts.Failure = DefaultFailureConfig
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.OnMessage == nil {
		opts.OnMessage = func([]byte) {}
	}
	return &Supervisor{
		opts:     opts,
		retry:    backoff{cfg: opts.Retry},
		failures: failureDetector{cfg: opts.Failure},
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Degraded reports whether too many sessions failed in a row.
func (s *Supervisor) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures.degraded
}

// Connect opens the connection. It is a no-op while connecting or open.
func (s *Supervisor) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnecting, StateOpen:
		log.Debug().Str("feed", s.opts.Name).Str("state", s.state.String()).Msg("ws connect ignored")
		return
	}
	s.connectLocked()
}

func (s *Supervisor) connectLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	s.live.Store(gen)
	s.sessionOK.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateConnecting
	go s.run(ctx, gen)
}

// Disconnect closes the connection and cancels any pending reconnect.
// Nothing from the old session reaches OnMessage afterwards.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	prev := s.state
	s.gen++
	s.live.Store(s.gen)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	sess := s.session
	s.session = nil
	cancel := s.cancel
	s.cancel = nil
	if prev != StateIdle {
		s.state = StateClosed
	}
	s.retry.Reset()
	s.mu.Unlock()

	if sess != nil {
		if s.opts.OnClosing != nil {
			s.opts.OnClosing(sess)
		}
		sess.closeNormal()
	}
	if cancel != nil {
		cancel()
	}
	if prev != StateIdle && prev != StateClosed {
		log.Info().Str("feed", s.opts.Name).Str("from", prev.String()).Msg("ws disconnected")
	}
}

func (s *Supervisor) run(ctx context.Context, gen uint64) {
	log.Info().Str("feed", s.opts.Name).Str("url", redactURL(s.opts.URL)).Msg("ws connecting")

	dctx, dcancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	conn, err := s.opts.Dialer.Dial(dctx, s.opts.URL)
	dcancel()
	if err != nil {
		log.Error().Err(err).Str("feed", s.opts.Name).Msg("ws dial failed")
		s.closed(gen, err)
		return
	}

	sess := &Session{conn: conn}
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.session = sess
	s.state = StateOpen
	s.mu.Unlock()
	log.Info().Str("feed", s.opts.Name).Msg("ws connected")

	if s.opts.OnOpen != nil {
		if err := s.opts.OnOpen(sess); err != nil {
			log.Error().Err(err).Str("feed", s.opts.Name).Msg("ws open handshake failed")
			_ = conn.Close()
			s.closed(gen, err)
			return
		}
	}

	err = readLoop(ctx, conn, s.opts.PingInterval, s.opts.ReadTimeout, func(b []byte) {
		s.deliver(gen, b)
	})
	_ = conn.Close()
	s.closed(gen, err)
}

func (s *Supervisor) deliver(gen uint64, b []byte) {
	if s.live.Load() != gen {
		return
	}
	if !s.sessionOK.Load() {
		s.mu.Lock()
		if gen == s.gen {
			s.sessionOK.Store(true)
			s.retry.Reset()
			if s.failures.ok() {
				log.Info().Str("feed", s.opts.Name).Msg("feed recovered")
			}
		}
		s.mu.Unlock()
	}
	s.opts.OnMessage(b)
}

func (s *Supervisor) closed(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.session = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateClosed

	if !s.sessionOK.Load() && s.failures.fail(s.opts.Clock.Now()) {
		log.Error().Str("feed", s.opts.Name).
			Int("failures", s.opts.Failure.Threshold).
			Dur("window", s.opts.Failure.Window).
			Msg("feed degraded: sessions keep failing, check credentials or endpoint")
	}

	code := closeCode(err)
	if code == websocket.CloseNormalClosure && !s.opts.ReconnectOnNormalClose {
		log.Info().Str("feed", s.opts.Name).Int("code", code).Msg("ws closed normally")
		return
	}

	delay := s.retry.Next()
	s.state = StateReconnectScheduled
	s.timer = s.opts.Clock.AfterFunc(delay, func() { s.reconnect(gen) })
	log.Warn().Err(err).Str("feed", s.opts.Name).Int("code", code).
		Int64("delay_ms", delay.Milliseconds()).Msg("ws closed, reconnect scheduled")
}

func (s *Supervisor) reconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != StateReconnectScheduled {
		return
	}
	s.timer = nil
	s.connectLocked()
}

// closeCode maps a read error to a close code; anything that is not a close
// frame counts as abnormal.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
