package realtime

import (
	"sync"

	"github.com/jrsteele09/go-realtime-core/identity"
)

type EventType string

const (
	EventConnectionChanged EventType = "connection.changed"
	EventConnectionError   EventType = "connection.error"
	EventCallRing          EventType = "call.ring"
	EventCallEnded         EventType = "call.ended"
	EventCallLeft          EventType = "call.left"
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
)

// Event is a backend notification. Only the fields relevant to Type are set.
type Event struct {
	Type    EventType
	Online  bool
	Err     error
	CallID  string
	From    identity.Identity
	Members []string
}

type Handler func(Event)

// Emitter fans events out to registered handlers. The zero value is ready
// to use.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]Handler
}

func (e *Emitter) On(t EventType, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[EventType]map[int]Handler)
	}
	if e.handlers[t] == nil {
		e.handlers[t] = make(map[int]Handler)
	}
	e.nextID++
	id := e.nextID
	e.handlers[t][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.handlers[t], id)
		})
	}
}

// Emit delivers ev synchronously to a snapshot of the current handlers.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	hs := make([]Handler, 0, len(e.handlers[ev.Type]))
	for _, h := range e.handlers[ev.Type] {
		hs = append(hs, h)
	}
	e.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Count returns the number of handlers registered for t.
func (e *Emitter) Count(t EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[t])
}
