// Package events implements the named event bus feature modules and the
// orchestrator communicate over. Events are plain strings; unknown names are
// auto-registered on first trigger rather than treated as errors.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Callback receives the trigger payload and the event name it was attached to.
type Callback func(data any, event string)

// Bus is a per-session-core registry of named events and their callbacks.
// On returns a token so callers can detach precisely instead of relying on
// function identity.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Callback // event -> token -> callback
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[string]Callback)}
}

// Register creates an empty callback set for each name. Idempotent.
func (b *Bus) Register(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		if _, ok := b.handlers[name]; !ok {
			b.handlers[name] = make(map[string]Callback)
		}
	}
}

// On attaches cb to a registered event and returns a subscription token.
// Attaching to an unknown event is non-fatal: the attachment is dropped and
// an empty token returned.
func (b *Bus) On(event string, cb Callback) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.handlers[event]
	if !ok {
		log.Warn().Str("module", "events").Str("event", event).Msg("listener dropped, event not registered")
		return ""
	}
	token := uuid.NewString()
	set[token] = cb
	return token
}

// OnAll attaches each entry of the map, returning the tokens keyed by event
// name. Used for bulk registration from configuration.
func (b *Bus) OnAll(m map[string]Callback) map[string]string {
	tokens := make(map[string]string, len(m))
	for event, cb := range m {
		tokens[event] = b.On(event, cb)
	}
	return tokens
}

// Off detaches the callback identified by token from the event.
func (b *Bus) Off(event, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.handlers[event]; ok {
		delete(set, token)
	}
}

// OffEvent clears every callback attached to one event.
func (b *Bus) OffEvent(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[event]; ok {
		b.handlers[event] = make(map[string]Callback)
	}
}

// OffAll clears every event's callback set. Event names stay registered.
func (b *Bus) OffAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for event := range b.handlers {
		b.handlers[event] = make(map[string]Callback)
	}
}

// Trigger invokes every callback registered for the event synchronously.
// Unregistered names are auto-created with an informational notice, never an
// error. A panicking callback is recovered so one misbehaving listener
// cannot break session event delivery.
func (b *Bus) Trigger(event string, data any) {
	b.mu.RLock()
	set, ok := b.handlers[event]
	cbs := make([]Callback, 0, len(set))
	for _, cb := range set {
		cbs = append(cbs, cb)
	}
	b.mu.RUnlock()

	if !ok {
		log.Info().Str("module", "events").Str("event", event).Msg("unregistered event triggered, auto-registering")
		b.Register(event)
		return
	}

	for _, cb := range cbs {
		b.invoke(cb, event, data)
	}
}

func (b *Bus) invoke(cb Callback, event string, data any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "events").Str("event", event).Any("panic", r).Msg("listener panicked")
		}
	}()
	cb(data, event)
}
