// Package hub fans change events out to per-room subscribers.
package hub

import "sync"

// Hub is a registry of per-room subscriber sets. Publish never blocks:
// a subscriber whose buffer is full is dropped, the same way a slow
// websocket client would be.
type Hub[T any] struct {
	mu     sync.Mutex
	rooms  map[string]map[int]chan T
	nextID int
}

func New[T any]() *Hub[T] {
	return &Hub[T]{rooms: make(map[string]map[int]chan T)}
}

// Subscribe registers a buffered channel on the room's feed and
// returns it with a cancel func. Cancel is idempotent.
func (h *Hub[T]) Subscribe(roomID string, buffer int) (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, buffer)
	id := h.nextID
	h.nextID++

	subs := h.rooms[roomID]
	if subs == nil {
		subs = make(map[int]chan T)
		h.rooms[roomID] = subs
	}
	subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if live, ok := h.rooms[roomID]; ok {
				if c, ok := live[id]; ok {
					delete(live, id)
					close(c)
				}
				if len(live) == 0 {
					delete(h.rooms, roomID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every live subscriber of the room.
func (h *Hub[T]) Publish(roomID string, ev T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.rooms[roomID] {
		select {
		case ch <- ev:
		default:
			// Subscriber stopped draining; cut it loose.
			delete(h.rooms[roomID], id)
			close(ch)
		}
	}
}

// Close drops every subscriber of the room, e.g. when the room row is
// destroyed.
func (h *Hub[T]) Close(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.rooms[roomID] {
		delete(h.rooms[roomID], id)
		close(ch)
	}
	delete(h.rooms, roomID)
}

// NumSubscribers reports the live subscriber count for a room.
func (h *Hub[T]) NumSubscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}
