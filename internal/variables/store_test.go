package variables

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFlatKey(t *testing.T) {
	s := NewSeeded(map[string]any{"webhook.body.name": "Alice"})

	v, ok := s.Lookup("webhook.body.name")
	require.True(t, ok)
	assert.Equal(t, "Alice", v)
}

func TestLookupDescendsStructuredValues(t *testing.T) {
	s := New()
	s.Set("node-1", map[string]any{
		"sent": true,
		"reply": map[string]any{
			"buttonId": "yes",
		},
	})

	v, ok := s.Lookup("node-1.sent")
	require.True(t, ok)
	assert.Equal(t, true, v)

	v, ok = s.Lookup("node-1.reply.buttonId")
	require.True(t, ok)
	assert.Equal(t, "yes", v)

	_, ok = s.Lookup("node-1.reply.missing")
	assert.False(t, ok)
}

func TestLookupPrefersExactKey(t *testing.T) {
	s := New()
	s.Set("a", map[string]any{"b": "nested"})
	s.Set("a.b", "flat")

	v, ok := s.Lookup("a.b")
	require.True(t, ok)
	assert.Equal(t, "flat", v)
}

func TestMergeNewKeysWin(t *testing.T) {
	s := NewSeeded(map[string]any{"x": 1, "y": 2})
	s.Merge(map[string]any{"y": 20, "z": 30})

	v, _ := s.Lookup("y")
	assert.Equal(t, 20, v)
	v, _ = s.Lookup("z")
	assert.Equal(t, 30, v)
	v, _ = s.Lookup("x")
	assert.Equal(t, 1, v)
}

func TestFlattenObjectsAndLeaves(t *testing.T) {
	s := New()
	s.Flatten("webhook.body", map[string]any{
		"name": "Alice",
		"order": map[string]any{
			"id":    "o-1",
			"total": 42.5,
		},
		"tags": []any{"a", "b"},
	})

	v, ok := s.Lookup("webhook.body.name")
	require.True(t, ok)
	assert.Equal(t, "Alice", v)

	v, ok = s.Lookup("webhook.body.order.total")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)

	// Intermediate objects are stored too.
	v, ok = s.Lookup("webhook.body.order")
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, v)

	// Arrays are single leaf values, never expanded element by element.
	v, ok = s.Lookup("webhook.body.tags")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, v)
	_, ok = s.values["webhook.body.tags.0"]
	assert.False(t, ok)
}

func TestFlattenDepthBound(t *testing.T) {
	// Build an object 10 levels deep.
	leaf := map[string]any{"value": "deep"}
	cur := leaf
	for i := 9; i >= 1; i-- {
		cur = map[string]any{fmt.Sprintf("l%d", i): cur}
	}

	s := New()
	s.Flatten("p", cur)

	// Depth 5 object is stored as a whole value.
	_, ok := s.Lookup("p.l1.l2.l3.l4.l5")
	assert.True(t, ok)

	// No flat key is created beyond depth 5.
	for key := range s.values {
		assert.LessOrEqual(t, countDots(key), 5, "key %q exceeds flatten depth", key)
	}

	// The deeper value remains reachable via structured descent.
	v, ok := s.Lookup("p.l1.l2.l3.l4.l5.l6.l7.l8.l9.value")
	require.True(t, ok)
	assert.Equal(t, "deep", v)
}

func countDots(s string) int {
	n := 0
	for _, r := range s {
		if r == '.' {
			n++
		}
	}
	return n
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewSeeded(map[string]any{"a": 1})
	snap := s.Snapshot()
	s.Set("b", 2)

	_, ok := snap["b"]
	assert.False(t, ok)
	assert.Equal(t, 1, snap["a"])
}

func TestSetResultReplacesPrevious(t *testing.T) {
	s := New()
	s.SetResult("n1", map[string]any{"sent": false, "error": "boom"})
	s.SetResult("n1", map[string]any{"sent": true})

	v, ok := s.Lookup("n1.sent")
	require.True(t, ok)
	assert.Equal(t, true, v)
	_, ok = s.Lookup("n1.error")
	assert.False(t, ok)
}
