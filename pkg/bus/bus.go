// Package bus provides the in-process publish/subscribe hub that connects
// the probe engine, state machine, log store, and broadcaster.
//
// Dispatch is synchronous: Publish invokes every handler registered for the
// event, in subscription order, on the calling goroutine. A handler panic is
// recovered and logged; it never prevents later handlers from running and
// never propagates to the publisher.
package bus

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// historyCap bounds the event history ring across all event names.
	historyCap = 100
	// defaultHistoryLimit is used when History is called with limit <= 0.
	defaultHistoryLimit = 50
)

// Handler receives the payload passed to Publish.
type Handler func(payload any)

// Subscription identifies one registration and is the token for Unsubscribe.
// Go functions are not comparable, so removal goes through this token rather
// than the handler value.
type Subscription struct {
	event string
	id    uint64
}

// Event returns the event name this subscription is registered for.
func (s Subscription) Event() string { return s.event }

// HistoryEntry is one recorded publication.
type HistoryEntry struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type registration struct {
	id   uint64
	h    Handler
	once bool
}

// Bus is a process-local publish/subscribe hub with bounded history.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]registration
	history  []HistoryEntry // ring, oldest first
	logger   *slog.Logger
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[string][]registration),
		logger:   slog.Default(),
	}
}

// Subscribe registers a handler for an event. Handlers for the same event
// are dispatched in subscription order.
func (b *Bus) Subscribe(event string, h Handler) Subscription {
	return b.subscribe(event, h, false)
}

// SubscribeOnce registers a handler that is removed immediately after its
// first invocation, even if the handler panics.
func (b *Bus) SubscribeOnce(event string, h Handler) Subscription {
	return b.subscribe(event, h, true)
}

func (b *Bus) subscribe(event string, h Handler, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[event] = append(b.handlers[event], registration{id: b.nextID, h: h, once: once})
	return Subscription{event: event, id: b.nextID}
}

// Unsubscribe removes the registration identified by sub. It reports whether
// a registration was removed; unsubscribing twice is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[sub.event]
	for i, r := range regs {
		if r.id == sub.id {
			b.handlers[sub.event] = append(regs[:i:i], regs[i+1:]...)
			if len(b.handlers[sub.event]) == 0 {
				delete(b.handlers, sub.event)
			}
			return true
		}
	}
	return false
}

// Publish records the event in history and invokes every registered handler
// in subscription order. Handlers run outside the bus lock so they may
// subscribe, unsubscribe, or publish without deadlocking.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	b.history = append(b.history, HistoryEntry{Event: event, Payload: payload, Timestamp: time.Now()})
	if len(b.history) > historyCap {
		b.history = b.history[len(b.history)-historyCap:]
	}

	regs := b.handlers[event]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)

	// Once-handlers are removed before invocation so they fire at most once
	// even when the handler itself panics.
	if hasOnce(regs) {
		kept := regs[:0]
		for _, r := range regs {
			if !r.once {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(b.handlers, event)
		} else {
			b.handlers[event] = kept
		}
	}
	b.mu.Unlock()

	for _, r := range snapshot {
		b.dispatch(event, r, payload)
	}
}

func (b *Bus) dispatch(event string, r registration, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("Event handler panicked",
				"event", event, "panic", rec)
		}
	}()
	r.h(payload)
}

func hasOnce(regs []registration) bool {
	for _, r := range regs {
		if r.once {
			return true
		}
	}
	return false
}

// History returns up to limit recent entries, newest last. When event is
// non-empty only entries for that event are returned. limit <= 0 means the
// default of 50.
func (b *Bus) History(event string, limit int) []HistoryEntry {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var filtered []HistoryEntry
	if event == "" {
		filtered = b.history
	} else {
		for _, e := range b.history {
			if e.Event == event {
				filtered = append(filtered, e)
			}
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	out := make([]HistoryEntry, len(filtered))
	copy(out, filtered)
	return out
}

// ListenerCount returns the number of handlers registered for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}

// Events returns the names of all events that currently have handlers.
func (b *Bus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	return names
}
