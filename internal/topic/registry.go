// Package topic maps topic strings to typed decoders.
//
// Items carry an opaque payload plus a topic naming its decodable type.
// Decoders are registered up front and validated at startup with Require, so
// an unregistered topic fails fast at boot instead of deep inside a replay.
package topic

import (
	"fmt"
	"sort"
	"sync"
)

// DecodeFunc turns a raw payload into a typed value.
type DecodeFunc func(data []byte) (interface{}, error)

// Registry is a concurrency-safe mapping from topic string to decoder.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: map[string]DecodeFunc{}}
}

// Register binds a decoder to a topic. Registering the same topic twice is an
// error: two writers disagreeing about a topic's type is a bug worth failing
// loudly for.
func (r *Registry) Register(topic string, fn DecodeFunc) error {
	if topic == "" {
		return fmt.Errorf("topic: empty topic")
	}
	if fn == nil {
		return fmt.Errorf("topic: nil decoder for %q", topic)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[topic]; exists {
		return fmt.Errorf("topic: %q already registered", topic)
	}
	r.decoders[topic] = fn
	return nil
}

// Decode resolves the topic and runs its decoder.
func (r *Registry) Decode(topic string, data []byte) (interface{}, error) {
	r.mu.RLock()
	fn, ok := r.decoders[topic]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("topic: %q not registered", topic)
	}
	return fn(data)
}

// Known reports whether the topic has a registered decoder.
func (r *Registry) Known(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[topic]
	return ok
}

// Require verifies every listed topic is registered, for fail-fast startup
// validation. All missing topics are reported at once.
func (r *Registry) Require(topics ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, t := range topics {
		if _, ok := r.decoders[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("topic: unregistered topics: %v", missing)
	}
	return nil
}

// Topics returns the registered topic names, sorted.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
