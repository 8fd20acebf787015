package websocket

import (
	"testing"
	"time"
)

func TestBackoffFixedByDefault(t *testing.T) {
	b := backoff{cfg: DefaultRetryConfig}
	for i := 0; i < 4; i++ {
		if d := b.Next(); d != 5*time.Second {
			t.Fatalf("attempt %d: expected 5s, got %v", i, d)
		}
	}
}

func TestBackoffGrowsToCeiling(t *testing.T) {
	b := backoff{cfg: RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second}}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if d := b.Next(); d != w {
			t.Fatalf("attempt %d: expected %v, got %v", i, w, d)
		}
	}
	b.Reset()
	if d := b.Next(); d != time.Second {
		t.Fatalf("expected reset to initial delay, got %v", d)
	}
}

func TestFailureDetectorWindow(t *testing.T) {
	d := failureDetector{cfg: FailureConfig{Threshold: 2, Window: 10 * time.Second}}
	now := time.Unix(0, 0)

	if d.fail(now) {
		t.Fatalf("tripped on first failure")
	}
	// outside the window, the first failure no longer counts
	if d.fail(now.Add(11 * time.Second)) {
		t.Fatalf("tripped with stale failure")
	}
	if !d.fail(now.Add(12 * time.Second)) {
		t.Fatalf("expected trip")
	}
	if d.fail(now.Add(13 * time.Second)) {
		t.Fatalf("should trip only once")
	}
	if !d.ok() || d.degraded {
		t.Fatalf("expected recovery")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("wss://ws.finnhub.io?token=abc")
	if got != "wss://ws.finnhub.io?token=%2A%2A%2A" {
		t.Fatalf("unexpected %q", got)
	}
}
