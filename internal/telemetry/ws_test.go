package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flight-control/fcc/internal/log"
)

func TestServeWSStreamsEvents(t *testing.T) {
	hub := NewHub(testTiming(), log.Discard())
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?vehicle=sim"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ready Event
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if ready.Type != EventReady {
		t.Fatalf("first event = %q, want ready", ready.Type)
	}

	_ = hub.PublishVehicle("sim", Event{Type: EventStatusText, Data: map[string]interface{}{"text": "PreArm: Need 3D Fix"}})

	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Type != EventStatusText || got.Vehicle != "sim" || got.Data["text"] != "PreArm: Need 3D Fix" {
		t.Errorf("event = %+v", got)
	}

	conn.Close()
	eventually(t, "client removal", func() bool { return hub.ClientCount() == 0 })
}
