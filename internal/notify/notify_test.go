package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"schedbot/internal/engine"
	"schedbot/internal/eventbus"
	logx "schedbot/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return &tele.Message{}, nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestNotifierSendsFailureAndOverrun(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	fs := &fakeSender{}
	n := newWithSender(Config{ChatID: 42, RatePerMin: 60}, bus, logx.Nop(), fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()

	// Give Run a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.Publish(eventbus.Event{Type: eventbus.EventRunFailed, Data: engine.RunEvent{Task: "backup", Message: "disk full"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventRunOverrun, Data: engine.RunEvent{Task: "report", Started: time.Now().Add(-time.Minute)}})
	// Lifecycle noise must not produce alerts.
	bus.Publish(eventbus.Event{Type: eventbus.EventRunCompleted, Data: engine.RunEvent{Task: "backup"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventRunStarted, Data: engine.RunEvent{Task: "backup"}})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(fs.messages()) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := fs.messages()
	if len(got) != 2 {
		t.Fatalf("sent = %v, want exactly 2 alerts", got)
	}
	if !strings.Contains(got[0], "backup") || !strings.Contains(got[0], "disk full") {
		t.Fatalf("failure alert = %q", got[0])
	}
	if !strings.Contains(got[1], "report") || !strings.Contains(got[1], "max runtime") {
		t.Fatalf("overrun alert = %q", got[1])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestNotifierRateCapDrops(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	fs := &fakeSender{}
	// 1/min with burst 2: only the first two alerts go out.
	n := newWithSender(Config{ChatID: 42, RatePerMin: 1}, bus, logx.Nop(), fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 10; i++ {
		bus.Publish(eventbus.Event{Type: eventbus.EventRunFailed, Data: engine.RunEvent{Task: "noisy", Message: "boom"}})
	}

	time.Sleep(200 * time.Millisecond)
	if got := len(fs.messages()); got > 2 {
		t.Fatalf("rate cap leaked: %d alerts sent", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Token: "", ChatID: 1}, nil, logx.Nop()); err == nil {
		t.Fatal("empty token must be rejected")
	}
	if _, err := New(Config{Token: "x", ChatID: 0}, nil, logx.Nop()); err == nil {
		t.Fatal("missing chat_id must be rejected")
	}
}
