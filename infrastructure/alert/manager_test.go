package alert

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlertFansOut(t *testing.T) {
	a, b := NewMockChannel(), NewMockChannel()
	m := NewManager([]Channel{a, b}, time.Minute)
	if err := m.SendWarning("book incomplete", map[string]interface{}{"attempt": 2}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(a.Alerts()) != 1 || len(b.Alerts()) != 1 {
		t.Fatalf("expected both channels to receive the alert")
	}
	got := a.Alerts()[0]
	if got.Level != LevelWarning || got.Timestamp.IsZero() || got.Fields["attempt"] != 2 {
		t.Fatalf("unexpected alert %+v", got)
	}
}

func TestThrottlingExceptCritical(t *testing.T) {
	ch := NewMockChannel()
	m := NewManager([]Channel{ch}, time.Hour)
	for i := 0; i < 3; i++ {
		_ = m.SendError("cancel failed", nil)
		_ = m.SendCritical("runaway orders", nil)
	}
	_ = m.SendError("another message", nil)

	var errs, crits int
	for _, a := range ch.Alerts() {
		switch a.Level {
		case LevelError:
			errs++
		case LevelCritical:
			crits++
		}
	}
	if errs != 2 || crits != 3 {
		t.Fatalf("expected 2 errors and 3 criticals, got %d/%d", errs, crits)
	}
}

func TestThrottlerWindow(t *testing.T) {
	th := NewThrottler(10 * time.Second)
	now := time.Unix(0, 0)
	th.now = func() time.Time { return now }
	if !th.Allow("k") || th.Allow("k") {
		t.Fatalf("second send inside window must be throttled")
	}
	now = now.Add(11 * time.Second)
	if !th.Allow("k") {
		t.Fatalf("send after window must pass")
	}
	th.Clear()
	if !th.Allow("k") {
		t.Fatalf("cleared throttler must allow")
	}
}

func TestAllChannelsFailing(t *testing.T) {
	bad := NewMockChannel()
	bad.SetShouldError(true)
	m := NewManager([]Channel{bad}, 0)
	if err := m.SendInfo("x", nil); err == nil {
		t.Fatalf("expected error when every channel fails")
	}
	good := NewMockChannel()
	m.AddChannel(good)
	if err := m.SendInfo("y", nil); err != nil {
		t.Fatalf("partial failure must not error: %v", err)
	}
	if names := m.Channels(); len(names) != 2 {
		t.Fatalf("unexpected channels %v", names)
	}
}

func TestZapChannel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewZapChannel(zap.New(core))
	_ = ch.Send(Alert{Level: LevelCritical, Message: "fatal", Fields: map[string]interface{}{"symbol": "ETH-PERP"}})
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.ErrorLevel || entries[0].ContextMap()["symbol"] != "ETH-PERP" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestConsoleChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := NewConsoleChannel(&buf)
	_ = ch.Send(Alert{Level: LevelInfo, Message: "started", Timestamp: time.Now(), Fields: map[string]interface{}{"b": 2, "a": 1}})
	out := buf.String()
	if !strings.Contains(out, "started") || !strings.Contains(out, "a=1 b=2") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestConcurrentAlerts(t *testing.T) {
	ch := NewMockChannel()
	m := NewManager([]Channel{ch}, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.SendCritical("c", nil)
		}()
	}
	wg.Wait()
	if len(ch.Alerts()) != 20 {
		t.Fatalf("expected 20 alerts, got %d", len(ch.Alerts()))
	}
}
