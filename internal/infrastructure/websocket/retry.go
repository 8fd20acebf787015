package websocket

import "time"

// RetryConfig controls the delay between a closed session and the next dial.
// MaxDelay <= InitialDelay gives a fixed delay.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig reconnects every 5s with no growth.
var DefaultRetryConfig = RetryConfig{
	InitialDelay: 5 * time.Second,
	MaxDelay:     5 * time.Second,
}

type backoff struct {
	cfg  RetryConfig
	next time.Duration
}

func (b *backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.cfg.InitialDelay
	}
	d := b.next
	ceiling := b.cfg.MaxDelay
	if ceiling < b.cfg.InitialDelay {
		ceiling = b.cfg.InitialDelay
	}
	b.next = minDur(b.next*2, ceiling)
	return d
}

func (b *backoff) Reset() { b.next = 0 }

// FailureConfig: Threshold failed sessions inside Window mark the feed
// degraded. A session fails if it never delivered a message. Threshold <= 0
// disables detection.
type FailureConfig struct {
	Threshold int
	Window    time.Duration
}

var DefaultFailureConfig = FailureConfig{
	Threshold: 5,
	Window:    2 * time.Minute,
}

type failureDetector struct {
	cfg      FailureConfig
	stamps   []time.Time
	degraded bool
}

// fail records a failed session and reports whether this one tripped the
// detector.
func (d *failureDetector) fail(now time.Time) bool {
	if d.cfg.Threshold <= 0 {
		return false
	}
	if d.cfg.Window > 0 {
		cutoff := now.Add(-d.cfg.Window)
		kept := d.stamps[:0]
		for _, ts := range d.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		d.stamps = kept
	}
	d.stamps = append(d.stamps, now)
	if !d.degraded && len(d.stamps) >= d.cfg.Threshold {
		d.degraded = true
		return true
	}
	return false
}

// ok clears the history and reports whether the feed was degraded.
func (d *failureDetector) ok() bool {
	d.stamps = d.stamps[:0]
	was := d.degraded
	d.degraded = false
	return was
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
