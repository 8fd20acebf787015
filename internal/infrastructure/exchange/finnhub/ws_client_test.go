package finnhub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"finscope/internal/domain"
	"finscope/internal/testutils"
)

func tradeFrame(ticks ...string) []byte {
	return []byte(fmt.Sprintf(`{"type":"trade","data":[%s]}`, joinTicks(ticks)))
}

func joinTicks(ticks []string) string {
	out := ""
	for i, t := range ticks {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

func tick(symbol string, price, volume float64) string {
	return fmt.Sprintf(`{"s":"%s","p":%v,"v":%v,"t":1700000000000}`, symbol, price, volume)
}

func newTestFeed(t *testing.T, symbols ...string) (*TradeFeed, *testutils.FakeDialer, *testutils.FakeClock) {
	t.Helper()
	dialer := testutils.NewFakeDialer()
	clock := testutils.NewFakeClock()
	f, err := NewTradeFeed(Options{Token: "tok", Symbols: symbols, Dialer: dialer, Clock: clock})
	if err != nil {
		t.Fatalf("NewTradeFeed: %v", err)
	}
	t.Cleanup(f.Disconnect)
	return f, dialer, clock
}

func decodeControls(t *testing.T, frames [][]byte) []control {
	t.Helper()
	out := make([]control, 0, len(frames))
	for _, b := range frames {
		var c control
		if err := json.Unmarshal(b, &c); err != nil {
			t.Fatalf("decode %q: %v", b, err)
		}
		out = append(out, c)
	}
	return out
}

func TestSubscribesPerSymbolOnOpen(t *testing.T) {
	f, dialer, _ := newTestFeed(t, "aapl", "OANDA:XAU_USD")

	f.Connect()
	conn := dialer.WaitDial(t)
	if u := dialer.URLs()[0]; u != "wss://ws.finnhub.io?token=tok" {
		t.Fatalf("unexpected url %q", u)
	}
	testutils.Eventually(t, "subscriptions sent", func() bool { return len(conn.Written()) == 2 })

	got := decodeControls(t, conn.Written())
	want := []control{{"subscribe", "AAPL"}, {"subscribe", "OANDA:XAU_USD"}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTicksFoldChangeAndVolume(t *testing.T) {
	f, dialer, _ := newTestFeed(t, "X")

	f.Connect()
	conn := dialer.WaitDial(t)
	conn.Push(tradeFrame(tick("X", 100, 10)))
	testutils.Eventually(t, "first tick", func() bool { _, ok := f.Price("X"); return ok })

	first, _ := f.Price("x")
	if first.Change != 0 || first.ChangePercent != 0 || first.Volume != 10 {
		t.Fatalf("first tick should carry no change, got %+v", first)
	}

	conn.Push(tradeFrame(tick("X", 110, 15)))
	testutils.Eventually(t, "second tick", func() bool { p, _ := f.Price("X"); return p.Price == 110 })

	p, _ := f.Price("X")
	if p.Volume != 25 {
		t.Fatalf("expected accumulated volume 25, got %v", p.Volume)
	}
	if p.Change != 10 || p.ChangePercent != 10 {
		t.Fatalf("expected change 10 / 10%%, got %v / %v", p.Change, p.ChangePercent)
	}
}

func TestNotificationsAreDebounced(t *testing.T) {
	f, dialer, clock := newTestFeed(t, "A", "B")
	ch := make(chan map[string]domain.AssetPrice, 8)
	f.Subscribe(func(m map[string]domain.AssetPrice) { ch <- m })

	f.Connect()
	conn := dialer.WaitDial(t)
	conn.Push(tradeFrame(tick("A", 1, 1)))
	conn.Push(tradeFrame(tick("B", 2, 1), tick("A", 3, 1)))
	testutils.Eventually(t, "ticks applied", func() bool { p, _ := f.Price("A"); return p.Price == 3 })

	clock.Advance(199 * time.Millisecond)
	select {
	case <-ch:
		t.Fatalf("notified before the window closed")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case snap := <-ch:
		if len(snap) != 2 || snap["A"].Price != 3 || snap["B"].Price != 2 {
			t.Fatalf("expected latest merged table, got %+v", snap)
		}
	default:
		t.Fatalf("expected one notification")
	}
	select {
	case <-ch:
		t.Fatalf("expected a single notification for the burst")
	default:
	}
}

func TestInvalidTicksAndProviderErrorsAreSkipped(t *testing.T) {
	f, dialer, _ := newTestFeed(t, "A")

	f.Connect()
	conn := dialer.WaitDial(t)
	conn.Push([]byte(`{"type":"error","msg":"Invalid API key"}`))
	conn.Push([]byte(`{"type":"ping"}`))
	conn.Push([]byte(`garbage`))
	conn.Push(tradeFrame(tick("A", -1, 1), tick("", 5, 1), tick("A", 7, 2)))
	testutils.Eventually(t, "valid tick applied", func() bool { _, ok := f.Price("A"); return ok })

	if n := len(f.Prices()); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
	if p, _ := f.Price("A"); p.Price != 7 || p.Volume != 2 {
		t.Fatalf("unexpected record %+v", p)
	}
}

func TestDisconnectUnsubscribesAndStops(t *testing.T) {
	f, dialer, clock := newTestFeed(t, "A", "B")

	f.Connect()
	conn := dialer.WaitDial(t)
	testutils.Eventually(t, "subscriptions sent", func() bool { return len(conn.Written()) == 2 })

	f.Disconnect()
	got := decodeControls(t, conn.Written())
	if len(got) != 4 || got[2] != (control{"unsubscribe", "A"}) || got[3] != (control{"unsubscribe", "B"}) {
		t.Fatalf("unexpected frames %+v", got)
	}
	if !conn.Closed() {
		t.Fatalf("expected socket closed")
	}
	clock.Advance(time.Minute)
	dialer.NoDial(t, 50*time.Millisecond)
}

func TestReconnectsAfterServerNormalClose(t *testing.T) {
	f, dialer, clock := newTestFeed(t, "A")

	f.Connect()
	conn := dialer.WaitDial(t)
	testutils.Eventually(t, "open", func() bool { return f.Status().State == "open" })
	conn.Drop(gorilla.CloseNormalClosure)
	testutils.Eventually(t, "scheduled", func() bool { return f.Status().State == "reconnect_scheduled" })

	clock.Advance(5 * time.Second)
	next := dialer.WaitDial(t)
	testutils.Eventually(t, "resubscribed", func() bool { return len(next.Written()) == 1 })
}

func TestRepeatedConnectSubscribesOnce(t *testing.T) {
	f, dialer, _ := newTestFeed(t, "A", "B")

	f.Connect()
	f.Connect()
	conn := dialer.WaitDial(t)
	testutils.Eventually(t, "open", func() bool { return f.Status().State == "open" })
	f.Connect()

	testutils.Eventually(t, "subscriptions sent", func() bool { return len(conn.Written()) == 2 })
	dialer.NoDial(t, 50*time.Millisecond)
	if n := len(conn.Written()); n != 2 {
		t.Fatalf("expected one subscribe per symbol, got %d frames", n)
	}
	for _, c := range decodeControls(t, conn.Written()) {
		if c.Type != "subscribe" {
			t.Fatalf("unexpected frame %+v", c)
		}
	}
	if n := dialer.Dials(); n != 1 {
		t.Fatalf("expected one dial, got %d", n)
	}
}
