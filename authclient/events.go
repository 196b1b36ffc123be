package authclient

import "sync"

// EventType identifies an auth state transition.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventTokenRefreshed EventType = "token_refreshed"
	EventLoggedOut      EventType = "logged_out"
)

// Event is one auth state transition broadcast to in-process listeners.
type Event struct {
	Type  EventType
	State AuthState
}

// Emitter fans auth events out to subscribers. Slow subscribers drop events
// rather than block the auth path.
type Emitter struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// NewEmitter returns an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func removes it.
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	ch := make(chan Event, 8)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

// Emit broadcasts ev without blocking.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
