package identity

import (
	"sync"

	"github.com/google/uuid"
)

// EventType tags an asynchronous session lifecycle notification.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserDeleted    EventType = "USER_DELETED"
)

// Event is delivered once per subscriber and not persisted. Session and User
// are nil for the signed-out variants.
type Event struct {
	Type    EventType
	Session *Session
	User    *User
}

// Subscription is a cancellable stream of auth events. Holders must call
// Unsubscribe when done so the publisher stops delivering to a defunct
// consumer.
type Subscription struct {
	events chan Event
	cancel func()
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		close(s.events)
	})
}

// NewSubscriptionForTesting wraps an externally fed channel in a
// Subscription. Fake clients use it; production code goes through a hub.
func NewSubscriptionForTesting(events chan Event, cancel func()) *Subscription {
	return &Subscription{events: events, cancel: cancel}
}

// eventHub fans auth events out to subscribers. Delivery is non-blocking; a
// subscriber that stops draining its channel loses events rather than
// stalling the publisher.
type eventHub struct {
	subs map[string]chan Event
	lock sync.RWMutex
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]chan Event)}
}

func (h *eventHub) subscribe() *Subscription {
	h.lock.Lock()
	defer h.lock.Unlock()

	id := uuid.New().String()
	events := make(chan Event, 16)
	h.subs[id] = events

	return &Subscription{
		events: events,
		cancel: func() {
			h.lock.Lock()
			defer h.lock.Unlock()
			delete(h.subs, id)
		},
	}
}

func (h *eventHub) publish(event Event) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, events := range h.subs {
		select {
		case events <- event:
		default:
		}
	}
}
