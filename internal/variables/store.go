// Package variables holds the data accumulated during one flow run and
// performs {{dotted.path}} template interpolation.
//
// Keys are flat dotted paths. Node handlers store their result map under
// the node's ID, which makes every node ID an implicit variable namespace:
// downstream templates reference {{<nodeId>.sent}}, {{<nodeId>.error}} and
// so on. This is a documented contract, not an accident of handler code.
package variables

import (
	"strings"
	"time"
)

// maxFlattenDepth bounds recursive expansion of ingested payloads.
const maxFlattenDepth = 5

// Store is the per-run variable store. A run is driven by exactly one
// goroutine at a time, so Store is not safe for concurrent mutation;
// Snapshot produces a copy safe to hand to the suspension registry.
type Store struct {
	values  map[string]any
	baseURL string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBaseURL sets the value resolved for {{system.server_base_url}}.
func WithBaseURL(url string) Option {
	return func(s *Store) { s.baseURL = url }
}

// WithClock overrides the wall clock used for system variables.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		values: make(map[string]any),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeeded creates a Store pre-populated with the given variables.
// The seed map is copied shallowly.
func NewSeeded(seed map[string]any, opts ...Option) *Store {
	s := New(opts...)
	for k, v := range seed {
		s.values[k] = v
	}
	return s
}

// Set stores a single value under a flat key.
func (s *Store) Set(key string, value any) {
	s.values[key] = value
}

// SetResult stores a node's result map under the node's ID, replacing any
// previous result for that node. Handlers call this unconditionally,
// success or not.
func (s *Store) SetResult(nodeID string, fields map[string]any) {
	s.values[nodeID] = fields
}

// Merge shallow-merges the given map into the store. New keys win on
// conflict. Handlers may add keys but never remove them.
func (s *Store) Merge(m map[string]any) {
	for k, v := range m {
		s.values[k] = v
	}
}

// Flatten stores a structured payload under prefix: the value itself, each
// intermediate object, and each leaf get their own dotted key. Recursion
// stops at maxFlattenDepth to bound blow-up on pathological payloads.
// Arrays are stored as single leaf values and never expanded; templates
// depend on {{webhook.body.field}} working but not {{webhook.body.list.0}}.
func (s *Store) Flatten(prefix string, value any) {
	s.flatten(prefix, value, 0)
}

func (s *Store) flatten(prefix string, value any, depth int) {
	s.values[prefix] = value
	if depth >= maxFlattenDepth {
		return
	}
	if m, ok := value.(map[string]any); ok {
		for k, v := range m {
			s.flatten(prefix+"."+k, v, depth+1)
		}
	}
}

// Lookup resolves a dotted path. It prefers an exact flat key; failing
// that it finds the longest stored prefix and descends the remaining
// segments key by key through structured values. The second return is
// false when any segment is missing.
func (s *Store) Lookup(path string) (any, bool) {
	if v, ok := s.values[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		key := strings.Join(parts[:i], ".")
		v, ok := s.values[key]
		if !ok {
			continue
		}
		if out, ok := descend(v, parts[i:]); ok {
			return out, true
		}
	}
	return nil, false
}

func descend(v any, parts []string) (any, bool) {
	cur := v
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// All returns the underlying map. Callers must not retain it across
// suspension points; use Snapshot for that.
func (s *Store) All() map[string]any {
	return s.values
}

// Snapshot returns a shallow copy of the variable map, suitable for
// persisting in a suspension record.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return len(s.values)
}
