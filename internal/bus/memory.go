// Package bus is a best-effort in-process broadcast to connected listeners.
// Delivery is never guaranteed; slow subscribers miss events rather than
// blocking publishers.
package bus

import "sync"

type Event struct {
	Room    string `json:"room"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan Event)}
}

// Notify fans the event out to the room's subscribers. Full subscriber
// buffers drop the event.
func (b *Memory) Notify(room, eventKind string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[room] {
		select {
		case ch <- Event{Room: room, Kind: eventKind, Payload: payload}:
		default:
		}
	}
}

// Subscribe registers a listener for a room and returns the event channel
// plus a cancel func.
func (b *Memory) Subscribe(room string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[room] = append(b.subs[room], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		listeners := b.subs[room]
		for i, c := range listeners {
			if c == ch {
				b.subs[room] = append(listeners[:i], listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}
