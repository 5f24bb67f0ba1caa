package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/log"
)

// threadSafeResponseWriter captures SSE output written from the hub goroutine.
type threadSafeResponseWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	headers http.Header
}

func newThreadSafeResponseWriter() *threadSafeResponseWriter {
	return &threadSafeResponseWriter{headers: make(http.Header)}
}

func (w *threadSafeResponseWriter) Header() http.Header { return w.headers }

func (w *threadSafeResponseWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(data)
}

func (w *threadSafeResponseWriter) WriteHeader(statusCode int) {}

func (w *threadSafeResponseWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func testTiming() *config.TimingConfig {
	return &config.TimingConfig{EventBufferSize: 50, HeartbeatInterval: time.Hour}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// subscribe starts an SSE subscription and returns its writer and a stop func.
func subscribe(t *testing.T, hub *Hub, target string, lastID string) (*threadSafeResponseWriter, func()) {
	t.Helper()
	w := newThreadSafeResponseWriter()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if lastID != "" {
		r.Header.Set("Last-Event-ID", lastID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Subscribe(ctx, w, r) }()

	eventually(t, "ready event", func() bool { return strings.Contains(w.String(), "event: ready") })
	return w, func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Subscribe() = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Subscribe did not return after cancel")
		}
	}
}

func TestPublishVehicleBuffersEvents(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())
	defer hub.Stop()

	for i := 0; i < 3; i++ {
		if err := hub.PublishVehicle("sim", Event{Type: EventCommandStarted}); err != nil {
			t.Fatalf("PublishVehicle() = %v", err)
		}
	}
	if err := hub.Publish(Event{Type: EventHeartbeat}); err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	hub.mu.RLock()
	buffer := hub.buffers["sim"]
	_, globalBuffered := hub.buffers[""]
	hub.mu.RUnlock()

	if buffer == nil || buffer.Len() != 3 {
		t.Fatalf("sim buffer = %v, want 3 events", buffer)
	}
	if globalBuffered {
		t.Error("events without a vehicle must not be buffered")
	}

	events := buffer.After(0)
	for i, e := range events {
		if e.ID != int64(i+1) {
			t.Errorf("event %d id = %d, want %d", i, e.ID, i+1)
		}
	}
}

func TestEventBufferDropsOldest(t *testing.T) {
	b := NewEventBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Add(Event{ID: int64(i), Type: "x"})
	}

	if b.Len() != 3 || b.Cap() != 3 {
		t.Fatalf("size/capacity = %d/%d, want 3/3", b.Len(), b.Cap())
	}
	got := b.After(3)
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 5 {
		t.Errorf("After(3) = %v, want ids 4, 5", got)
	}
	if got := b.After(0); got[0].ID != 3 {
		t.Errorf("oldest buffered id = %d, want 3", got[0].ID)
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())
	defer hub.Stop()
	hub.SetSnapshot(func() interface{} { return map[string]bool{"connected": false} })

	w, stop := subscribe(t, hub, "/api/v1/telemetry", "")
	defer stop()

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.String(), `"connected":false`) {
		t.Errorf("ready event carries no snapshot: %s", w.String())
	}

	_ = hub.PublishVehicle("sim", Event{Type: EventCommandCompleted, Data: map[string]interface{}{"command": "arm"}})
	eventually(t, "commandCompleted", func() bool { return strings.Contains(w.String(), "event: commandCompleted") })
	if !strings.Contains(w.String(), `"command":"arm"`) {
		t.Errorf("event data missing: %s", w.String())
	}
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())
	defer hub.Stop()

	for _, typ := range []string{"first", "second", "third"} {
		_ = hub.PublishVehicle("sim", Event{Type: typ})
	}

	w, stop := subscribe(t, hub, "/api/v1/telemetry?vehicle=sim", "1")
	defer stop()

	eventually(t, "replay", func() bool { return strings.Contains(w.String(), "event: third") })
	out := w.String()
	if strings.Contains(out, "event: first") {
		t.Errorf("event 1 replayed although Last-Event-ID was 1:\n%s", out)
	}
	if !strings.Contains(out, "event: second") {
		t.Errorf("event 2 not replayed:\n%s", out)
	}
}

func TestSubscribeFiltersByVehicle(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())
	defer hub.Stop()

	w, stop := subscribe(t, hub, "/api/v1/telemetry?vehicle=alpha", "")
	defer stop()

	_ = hub.PublishVehicle("bravo", Event{Type: "bravoEvent"})
	_ = hub.PublishVehicle("alpha", Event{Type: "alphaEvent"})

	eventually(t, "alpha event", func() bool { return strings.Contains(w.String(), "event: alphaEvent") })
	if strings.Contains(w.String(), "bravoEvent") {
		t.Error("client for alpha received an event for bravo")
	}
}

func TestHeartbeatWhileSubscribed(t *testing.T) {
	timing := testTiming()
	timing.HeartbeatInterval = 5 * time.Millisecond
	hub := NewHub(timing, log.Discard())
	defer hub.Stop()

	w, stop := subscribe(t, hub, "/api/v1/telemetry", "")
	eventually(t, "heartbeat", func() bool { return strings.Contains(w.String(), "event: heartbeat") })
	stop()

	eventually(t, "client removal", func() bool { return hub.ClientCount() == 0 })
	hub.mu.RLock()
	running := hub.heartbeatTicker != nil
	hub.mu.RUnlock()
	if running {
		t.Error("heartbeat still running without clients")
	}
}

func TestStopEndsSubscriptions(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())

	w := newThreadSafeResponseWriter()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry", nil)
	done := make(chan error, 1)
	go func() { done <- hub.Subscribe(context.Background(), w, r) }()
	eventually(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after Stop")
	}
}
