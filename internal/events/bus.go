// Package events carries named events between processes. The same Bus
// interface is served by an in-process pipe and by a WebSocket connection
// exchanging {"event", "data"} envelopes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

// ErrClosed is returned when emitting on a closed bus
var ErrClosed = errors.New("event bus closed")

// Handler receives the raw payload of one event
type Handler func(ctx context.Context, data json.RawMessage)

// Bus subscribes to and emits named events
type Bus interface {
	// On registers h for name and returns a function removing it
	On(name string, h Handler) (off func())
	// Emit sends data, encoded as JSON, to the peer under name
	Emit(ctx context.Context, name string, data any) error
}

// Envelope is the wire form of one event
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(name string, data any) (Envelope, error) {
	env := Envelope{Event: name}
	if data == nil {
		return env, nil
	}
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return env, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}
	env.Data = raw
	return env, nil
}

// registry is the handler table shared by every Bus implementation
type registry struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string]map[uint64]Handler
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]map[uint64]Handler)}
}

func (r *registry) on(name string, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	key := r.next
	if r.handlers[name] == nil {
		r.handlers[name] = make(map[uint64]Handler)
	}
	r.handlers[name][key] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[name], key)
			if len(r.handlers[name]) == 0 {
				delete(r.handlers, name)
			}
		})
	}
}

// dispatch calls every handler for env and reports whether any ran
func (r *registry) dispatch(ctx context.Context, env Envelope) bool {
	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[env.Event]))
	for _, h := range r.handlers[env.Event] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()

	for _, h := range hs {
		h(ctx, env.Data)
	}
	return len(hs) > 0
}
