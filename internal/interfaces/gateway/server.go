// Package gateway pushes the price tables to browser clients over websocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"finscope/internal/application/market"
	"finscope/internal/application/port"
	"finscope/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
	readTimeout  = 60 * time.Second
	maxInbound   = 4096
)

// Message is the envelope of everything sent to clients.
type Message struct {
	Type  string            `json:"type"` // snapshot | update | prefs | status
	Class domain.AssetClass `json:"class,omitempty"`
	Data  any               `json:"data,omitempty"`
	Text  string            `json:"text,omitempty"`
}

// controlMsg is what clients may send.
type controlMsg struct {
	Type   string `json:"type"`   // "control"
	Action string `json:"action"` // pause | resume | market | sort | search
	Value  string `json:"value,omitempty"`
}

type prefsView struct {
	Market    market.Market    `json:"market"`
	SortField domain.SortField `json:"sortField"`
	SortOrder domain.SortOrder `json:"sortOrder"`
	Search    string           `json:"search"`
}

func viewOf(p market.Prefs) prefsView {
	return prefsView{Market: p.Market, SortField: p.SortField, SortOrder: p.SortOrder, Search: p.SearchQuery}
}

type client struct {
	id     string
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	paused atomic.Bool
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// StatusSource reports feed health for /healthz.
type StatusSource interface {
	Statuses() map[string]port.FeedStatus
	Healthy() bool
}

type Server struct {
	store      *market.Store
	feeds      StatusSource
	addr       string
	sendBuffer int
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	dropped atomic.Int64
}

func NewServer(store *market.Store, addr string, sendBuffer int) *Server {
	// initial snapshots need two slots
	if sendBuffer < 2 {
		sendBuffer = 2
	}
	return &Server{
		store:      store,
		addr:       addr,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(*http.Request) bool { return true },
			EnableCompression: true,
		},
		clients: make(map[string]*client),
	}
}

// SetStatusSource must be called before serving.
func (s *Server) SetStatusSource(src StatusSource) { s.feeds = src }

// Attach subscribes the server to both partitions. The returned func detaches.
func (s *Server) Attach() func() {
	u1 := s.store.SubscribeCrypto(func(snap map[string]domain.CryptoPrice) {
		s.broadcast(Message{Type: "update", Class: domain.ClassCrypto, Data: snap}, true)
	})
	u2 := s.store.SubscribeStocks(func(snap map[string]domain.AssetPrice) {
		s.broadcast(Message{Type: "update", Class: domain.ClassStocks, Data: snap}, true)
	})
	return func() { u1(); u2() }
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok", "clients": s.Clients()}
		if s.feeds != nil {
			body["feeds"] = s.feeds.Statuses()
			if !s.feeds.Healthy() {
				body["status"] = "degraded"
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		writeJSON(w, body)
	})
	mux.HandleFunc("/api/prices", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"crypto": s.store.Crypto(),
			"stocks": s.store.Stocks(),
			"prefs":  viewOf(s.store.Prefs()),
		})
	})
	return mux
}

// Run serves until ctx is done, then shuts down and drops every client.
func (s *Server) Run(ctx context.Context) error {
	detach := s.Attach()
	defer detach()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	// hijacked connections are not closed by Shutdown
	s.closeAll()
	log.Info().Int64("dropped", s.Dropped()).Msg("gateway stopped")
	return err
}

func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped counts messages discarded because a client's buffer was full.
func (s *Server) Dropped() int64 { return s.dropped.Load() }

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, s.sendBuffer),
		done: make(chan struct{}),
	}

	// register and queue snapshots under one lock so no update slips in between
	s.mu.Lock()
	s.clients[cl.id] = cl
	s.send(cl, Message{Type: "snapshot", Class: domain.ClassCrypto, Data: s.store.Crypto()})
	s.send(cl, Message{Type: "snapshot", Class: domain.ClassStocks, Data: s.store.Stocks()})
	s.mu.Unlock()

	log.Info().Str("client", cl.id).Str("remote", r.RemoteAddr).Msg("gateway client connected")

	go s.writePump(cl)
	s.readPump(cl)
	s.remove(cl)
}

func (s *Server) remove(cl *client) {
	s.mu.Lock()
	delete(s.clients, cl.id)
	s.mu.Unlock()
	cl.close()
	_ = cl.conn.Close()
	log.Info().Str("client", cl.id).Msg("gateway client disconnected")
}

func (s *Server) closeAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cl := range s.clients {
		_ = cl.conn.Close()
	}
}

func (s *Server) broadcast(m Message, skipPaused bool) {
	b, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("type", m.Type).Msg("gateway encode failed")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cl := range s.clients {
		if skipPaused && cl.paused.Load() {
			continue
		}
		s.push(cl, b)
	}
}

func (s *Server) send(cl *client, m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("type", m.Type).Msg("gateway encode failed")
		return
	}
	s.push(cl, b)
}

// push never blocks: a slow client loses messages instead of stalling feeds.
func (s *Server) push(cl *client, b []byte) {
	select {
	case cl.out <- b:
	default:
		s.dropped.Add(1)
		log.Debug().Str("client", cl.id).Msg("gateway send buffer full, message dropped")
	}
}

func (s *Server) writePump(cl *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case b := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				_ = cl.conn.Close()
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = cl.conn.Close()
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (s *Server) readPump(cl *client) {
	cl.conn.SetReadLimit(maxInbound)
	_ = cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		mt, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl controlMsg
		if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
			s.status(cl, "expected a control message")
			continue
		}
		s.control(cl, ctrl)
	}
}

func (s *Server) control(cl *client, ctrl controlMsg) {
	switch ctrl.Action {
	case "pause":
		cl.paused.Store(true)
		s.status(cl, "paused")
		return
	case "resume":
		cl.paused.Store(false)
		s.status(cl, "resumed")
		return
	case "market":
		m, ok := market.ParseMarket(ctrl.Value)
		if !ok {
			s.status(cl, "unknown market "+ctrl.Value)
			return
		}
		s.store.SetActiveMarket(m)
	case "sort":
		f, ok := domain.ParseSortField(ctrl.Value)
		if !ok {
			s.status(cl, "unknown sort field "+ctrl.Value)
			return
		}
		s.store.SetSortField(f)
	case "search":
		s.store.SetSearchQuery(ctrl.Value)
	default:
		s.status(cl, "unknown action "+ctrl.Action)
		return
	}
	s.broadcast(Message{Type: "prefs", Data: viewOf(s.store.Prefs())}, false)
}

func (s *Server) status(cl *client, text string) {
	s.send(cl, Message{Type: "status", Text: text})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("gateway response encode failed")
	}
}
