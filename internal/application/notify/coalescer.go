package notify

import (
	"sync"
	"time"

	"finscope/internal/application/port"
)

// Cadence says how often a feed notifies its subscribers.
type Cadence struct {
	Window time.Duration
}

// OnEveryEvent notifies synchronously for every event.
func OnEveryEvent() Cadence { return Cadence{} }

// Coalesce notifies at most once per window.
func Coalesce(window time.Duration) Cadence { return Cadence{Window: window} }

func (c Cadence) String() string {
	if c.Window <= 0 {
		return "every-event"
	}
	return "coalesce(" + c.Window.String() + ")"
}

// Coalescer runs flush according to a Cadence. With a window, the first
// Trigger arms a timer and triggers that arrive before it fires are absorbed;
// they do not push the deadline out.
type Coalescer struct {
	clock  port.Clock
	window time.Duration
	flush  func()

	mu      sync.Mutex
	timer   port.Timer
	stopped bool
}

func NewCoalescer(clock port.Clock, cadence Cadence, flush func()) *Coalescer {
	if clock == nil {
		clock = port.SystemClock()
	}
	return &Coalescer{clock: clock, window: cadence.Window, flush: flush}
}

func (c *Coalescer) Trigger() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.window <= 0 {
		c.mu.Unlock()
		c.flush()
		return
	}
	if c.timer == nil {
		c.timer = c.clock.AfterFunc(c.window, c.fire)
	}
	c.mu.Unlock()
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	c.timer = nil
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped {
		c.flush()
	}
}

// Stop cancels a pending flush and ignores triggers until Resume.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = false
}

// Pending reports whether a flush is armed.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
