package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowCacheNormalizesAndCaches(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateFlow(ctx, &Flow{ID: "f1", Name: "Greeting", Document: sampleDocument()}))

	c := NewFlowCache(s, time.Minute)

	doc, err := c.Flow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", doc.ID)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Edges, 1)

	// Served from cache: a store update is not visible until invalidation.
	newDoc := json.RawMessage(`{"nodes":[{"id":"only","type":"message","config":{"text":"x"}}],"edges":[]}`)
	require.NoError(t, s.UpdateFlow(ctx, "f1", FlowUpdate{Document: newDoc}))

	doc, err = c.Flow(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 2)

	c.Invalidate("f1")
	doc, err = c.Flow(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 1)
}

func TestFlowCacheActiveFlowsSkipsBrokenDocuments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateFlow(ctx, &Flow{ID: "good", Status: FlowStatusActive, Document: sampleDocument()}))
	require.NoError(t, s.CreateFlow(ctx, &Flow{ID: "bad", Status: FlowStatusActive, Document: json.RawMessage(`{"nodes": 42}`)}))
	require.NoError(t, s.CreateFlow(ctx, &Flow{ID: "draft", Status: FlowStatusDraft, Document: sampleDocument()}))

	c := NewFlowCache(s, time.Minute)

	docs, err := c.ActiveFlows(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good", docs[0].ID)
}

func TestFlowCacheLegacyDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	legacy := json.RawMessage(`{
		"startNode": "ask",
		"nodes": {
			"ask": {"type": "message", "text": "hello", "next": "bye"},
			"bye": {"type": "message", "text": "bye"}
		}
	}`)
	require.NoError(t, s.CreateFlow(ctx, &Flow{ID: "old", Document: legacy}))

	c := NewFlowCache(s, time.Minute)
	doc, err := c.Flow(ctx, "old")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, "ask", doc.Edges[0].Source)
	assert.Equal(t, "bye", doc.Edges[0].Target)
}

func TestFlowCacheMissPropagatesNotFound(t *testing.T) {
	c := NewFlowCache(NewMemoryStore(), time.Minute)
	_, err := c.Flow(context.Background(), "nope")
	require.Error(t, err)
}
