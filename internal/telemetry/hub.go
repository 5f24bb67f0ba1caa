package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/log"
)

// Event types published by fcc.
const (
	EventReady            = "ready"
	EventHeartbeat        = "heartbeat"
	EventSession          = "session"
	EventCommandStarted   = "commandStarted"
	EventCommandCompleted = "commandCompleted"
	EventFault            = "fault"
	EventStatusText       = "statusText"
)

// globalStream keys events that carry no vehicle.
const globalStream = "global"

// Event is one telemetry event.
type Event struct {
	ID      int64                  `json:"id,omitempty"`
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Vehicle string                 `json:"vehicle,omitempty"`
}

// SnapshotFunc returns the payload of the ready event sent to new clients.
type SnapshotFunc func() interface{}

// Client is one subscriber. SSE and websocket clients differ only in send.
// Events is never closed; a client ends through Cancel.
type Client struct {
	ID      string
	Vehicle string
	LastID  int64
	Context context.Context
	Cancel  context.CancelFunc
	Events  chan Event

	send func(Event) error
	mu   sync.Mutex
}

func (c *Client) deliver(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(event)
}

func (c *Client) wants(event Event) bool {
	return c.Vehicle == "" || event.Vehicle == "" || event.Vehicle == c.Vehicle
}

// Hub manages telemetry distribution with per-vehicle buffering.
//
// Lock order: h.mu, then EventBuffer.mu. Client.mu only guards the client's writer.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	counters map[string]*int64
	buffers  map[string]*EventBuffer
	snapshot SnapshotFunc
	nextID   int64

	config *config.TimingConfig
	log    *log.Logger

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub. EventBufferSize and HeartbeatInterval are read from timing.
func NewHub(timing *config.TimingConfig, logger *log.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		counters: make(map[string]*int64),
		buffers:  make(map[string]*EventBuffer),
		config:   timing,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// SetSnapshot sets the function providing the ready event payload.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Subscribe serves one SSE client until it disconnects or the hub stops.
// The "vehicle" query parameter restricts the stream to one vehicle.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	var lastEventID int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := h.newClient(ctx, r.URL.Query().Get("vehicle"), func(event Event) error {
		return writeSSE(w, event)
	})
	client.LastID = lastEventID
	return h.serve(client)
}

// newClient creates a client bound to ctx.
func (h *Hub) newClient(ctx context.Context, vehicle string, send func(Event) error) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:      fmt.Sprintf("client_%d", atomic.AddInt64(&h.nextID, 1)),
		Vehicle: vehicle,
		Context: clientCtx,
		Cancel:  cancel,
		Events:  make(chan Event, 100),
		send:    send,
	}
}

// serve registers client, sends ready and any replay, then pumps events until done.
func (h *Hub) serve(client *Client) error {
	select {
	case <-h.done:
		client.Cancel()
		return nil
	default:
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	if h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	if err := client.deliver(h.readyEvent(client)); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if client.LastID > 0 {
		if err := h.replayEvents(client); err != nil {
			h.unregisterClient(client.ID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.log.Debug("Telemetry client connected", "client", client.ID, "vehicle", client.Vehicle)
	h.handleClient(client)
	h.log.Debug("Telemetry client disconnected", "client", client.ID)
	return nil
}

// Publish delivers an event to every interested client. Vehicle events are buffered for replay.
func (h *Hub) Publish(event Event) error {
	if event.ID == 0 {
		event.ID = h.getNextEventID(event.Vehicle)
	}
	if event.Vehicle != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client.wants(event) {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			h.log.Warn("Dropping telemetry event for slow client", "client", client.ID, "type", event.Type)
		}
	}
	return nil
}

// PublishVehicle publishes an event for one vehicle.
func (h *Hub) PublishVehicle(vehicleID string, event Event) error {
	event.Vehicle = vehicleID
	return h.Publish(event)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readyEvent(client *Client) Event {
	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()

	data := map[string]interface{}{}
	if snapshot != nil {
		data["snapshot"] = snapshot()
	}
	return Event{
		ID:      h.getNextEventID(client.Vehicle),
		Type:    EventReady,
		Data:    data,
		Vehicle: client.Vehicle,
	}
}

// replayEvents sends buffered events after client.LastID.
func (h *Hub) replayEvents(client *Client) error {
	h.mu.RLock()
	buffer, exists := h.buffers[client.Vehicle]
	h.mu.RUnlock()
	if !exists {
		return nil
	}

	for _, event := range buffer.After(client.LastID) {
		if err := client.deliver(event); err != nil {
			return err
		}
	}
	return nil
}

// handleClient delivers queued events until the client goes away.
func (h *Hub) handleClient(client *Client) {
	defer h.unregisterClient(client.ID)

	for {
		select {
		case <-client.Context.Done():
			return
		case <-h.done:
			return
		case event := <-client.Events:
			if err := client.deliver(event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// getNextEventID returns the next monotonic id for a vehicle stream.
func (h *Hub) getNextEventID(vehicleID string) int64 {
	if vehicleID == "" {
		vehicleID = globalStream
	}

	h.mu.RLock()
	counter, exists := h.counters[vehicleID]
	h.mu.RUnlock()
	if exists {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	counter, exists = h.counters[vehicleID]
	if !exists {
		counter = new(int64)
		h.counters[vehicleID] = counter
	}
	h.mu.Unlock()

	return atomic.AddInt64(counter, 1)
}

// bufferEvent adds event to its vehicle's buffer. Buffers are never removed,
// so a reference stays valid after h.mu is released.
func (h *Hub) bufferEvent(event Event) {
	h.mu.Lock()
	buffer, exists := h.buffers[event.Vehicle]
	if !exists {
		buffer = NewEventBuffer(h.config.EventBufferSize)
		h.buffers[event.Vehicle] = buffer
	}
	h.mu.Unlock()

	buffer.Add(event)
}

// startHeartbeat starts the heartbeat goroutine. Caller holds h.mu.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval
	if interval <= 0 {
		return
	}

	h.heartbeatTicker = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})
	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.sendHeartbeat()
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

func (h *Hub) sendHeartbeat() {
	_ = h.Publish(Event{
		Type: EventHeartbeat,
		Data: map[string]interface{}{
			"ts": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Stop disconnects every client and stops the heartbeat. It is safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, client := range h.clients {
			client.Cancel()
		}
		if h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
		}
		if h.stopHeartbeat != nil {
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
		h.mu.Unlock()

		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			h.log.Warn("Telemetry heartbeat did not stop in time")
		}
	})
}

// writeSSE formats one event on the wire and flushes.
func writeSSE(w http.ResponseWriter, event Event) error {
	if event.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
