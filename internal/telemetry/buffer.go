package telemetry

import "sync"

// EventBuffer keeps the most recent events of one vehicle for Last-Event-ID
// replay. Events must be added in increasing ID order.
type EventBuffer struct {
	mu    sync.RWMutex
	ring  []Event
	head  int // index of the oldest event
	count int
}

// NewEventBuffer creates a buffer keeping at most capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer{ring: make([]Event, capacity)}
}

// Add stores event, overwriting the oldest when full.
func (b *EventBuffer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < len(b.ring) {
		b.ring[(b.head+b.count)%len(b.ring)] = event
		b.count++
		return
	}
	b.ring[b.head] = event
	b.head = (b.head + 1) % len(b.ring)
}

// After returns buffered events with an ID greater than lastID, oldest first.
func (b *EventBuffer) After(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for i := 0; i < b.count; i++ {
		event := b.ring[(b.head+i)%len(b.ring)]
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// Cap returns the buffer capacity.
func (b *EventBuffer) Cap() int { return len(b.ring) }

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
