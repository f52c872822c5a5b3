package transport

import (
	"encoding/json"
	"sync"

	"github.com/amoylab/hublink/internal/common/cnst"
)

// ListenerID identifies one attached handler. IDs are never reused by a
// binding, so removing a stale ID is harmless.
type ListenerID uint64

// Event is what a binding hands to its listeners. Data is set for wire
// events, Reason for disconnect and Err for connect_error and
// reconnect_failed.
type Event struct {
	Name   string
	Data   json.RawMessage
	Reason cnst.DisconnectReason
	Err    error
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.Data, v)
}

// Handler receives events. Handlers run on the binding's own goroutine and
// must not block.
type Handler func(Event)

type listener struct {
	id   ListenerID
	fn   Handler
	once bool
}

// emitter is the listener table shared by all bindings.
type emitter struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[string][]listener
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[string][]listener)}
}

func (e *emitter) add(event string, fn Handler, once bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners[event] = append(e.listeners[event], listener{id: e.nextID, fn: fn, once: once})
	return e.nextID
}

func (e *emitter) remove(event string, id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.listeners[event]
	for i, l := range list {
		if l.id != id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(e.listeners, event)
		} else {
			e.listeners[event] = list
		}
		return true
	}
	return false
}

func (e *emitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// dispatch calls every listener of ev.Name in attachment order. Once
// listeners are detached before any handler runs, and handlers run without
// the lock so they may attach or detach listeners themselves.
func (e *emitter) dispatch(ev Event) {
	e.mu.Lock()
	list := e.listeners[ev.Name]
	snapshot := make([]listener, len(list))
	copy(snapshot, list)
	kept := list[:0:0]
	for _, l := range list {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(e.listeners, ev.Name)
	} else if len(kept) != len(list) {
		e.listeners[ev.Name] = kept
	}
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(ev)
	}
}
