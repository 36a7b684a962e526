package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventRefreshed EventType = "refreshed"
	EventSignedOut EventType = "signed_out"
)

// Event describes a change in an account's session state. Origin identifies
// the Hub that first published it.
type Event struct {
	Type      EventType `json:"type"`
	AccountID string    `json:"accountId"`
	TokenID   string    `json:"tokenId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// Hub fans session events out to in-process subscribers.
type Hub struct {
	id string

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewHub constructs a Hub with a random instance identifier.
func NewHub() *Hub {
	return &Hub{id: uuid.NewString(), subs: make(map[int]func(Event))}
}

// ID identifies this hub as an event origin.
func (h *Hub) ID() string {
	return h.id
}

// Subscribe registers fn for every future event. The returned function
// removes the subscription and is safe to call more than once.
func (h *Hub) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers event to every subscriber synchronously. Events without an
// origin are stamped with this hub's ID.
func (h *Hub) Publish(event Event) {
	if event.Origin == "" {
		event.Origin = h.id
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.RLock()
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
