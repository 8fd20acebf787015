package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"finscope/internal/infrastructure/websocket"
)

var errConnClosed = errors.New("fake conn closed")

// FakeConn is an in-memory websocket.Conn. Frames pushed with Push are
// returned by ReadMessage in order.
type FakeConn struct {
	in    chan []byte
	fail  chan error
	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
	wrote [][]byte
	ctrl  []int
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:   make(chan []byte, 64),
		fail: make(chan error, 1),
		done: make(chan struct{}),
	}
}

func (c *FakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.done:
		return 0, nil, errConnClosed
	default:
	}
	select {
	case b := <-c.in:
		return gorilla.TextMessage, b, nil
	case err := <-c.fail:
		return 0, nil, err
	case <-c.done:
		return 0, nil, errConnClosed
	}
}

func (c *FakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return errConnClosed
	}
	c.wrote = append(c.wrote, append([]byte(nil), data...))
	return nil
}

func (c *FakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctrl = append(c.ctrl, messageType)
	return nil
}

func (c *FakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *FakeConn) SetPongHandler(func(string) error) {}

func (c *FakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *FakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool { return c.isClosed() }

func (c *FakeConn) Push(b []byte) { c.in <- b }

func (c *FakeConn) PushJSON(t testing.TB, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.Push(b)
}

// Drop ends the session from the peer side with the given close code.
func (c *FakeConn) Drop(code int) {
	c.fail <- &gorilla.CloseError{Code: code}
}

// Written returns the data frames written so far.
func (c *FakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.wrote...)
}

// SentClose reports whether a close control frame was written.
func (c *FakeConn) SentClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.ctrl {
		if m == gorilla.CloseMessage {
			return true
		}
	}
	return false
}

// FakeDialer hands out a fresh FakeConn per Dial, or Err when set.
type FakeDialer struct {
	mu     sync.Mutex
	err    error
	urls   []string
	conns  []*FakeConn
	dialed chan *FakeConn
}

func NewFakeDialer() *FakeDialer {
	return &FakeDialer{dialed: make(chan *FakeConn, 32)}
}

func (d *FakeDialer) Dial(_ context.Context, url string) (websocket.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		err := d.err
		d.mu.Unlock()
		d.dialed <- nil
		return nil, err
	}
	c := NewFakeConn()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	d.dialed <- c
	return c, nil
}

func (d *FakeDialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// WaitDial blocks until the next Dial call and returns its conn, which is
// nil for a failed dial.
func (d *FakeDialer) WaitDial(t testing.TB) *FakeConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dial")
		return nil
	}
}

// NoDial fails the test if a Dial happens within d.
func (d *FakeDialer) NoDial(t testing.TB, wait time.Duration) {
	t.Helper()
	select {
	case <-d.dialed:
		t.Fatalf("unexpected dial")
	case <-time.After(wait):
	}
}

// Eventually polls cond until it holds or two seconds pass.
func Eventually(t testing.TB, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
