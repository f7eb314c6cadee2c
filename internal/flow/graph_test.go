package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/pkg/schema"
)

func linearDoc() *schema.FlowDocument {
	return &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "a", Type: schema.NodeTypeTrigger},
			{ID: "b", Type: schema.NodeTypeMessage},
			{ID: "c", Type: schema.NodeTypeMessage},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
}

func TestParseRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := Parse(&schema.FlowDocument{})
	assert.Error(t, err)

	_, err = Parse(&schema.FlowDocument{Nodes: []schema.Node{{ID: "x"}, {ID: "x"}}})
	assert.Error(t, err)
}

func TestStartNodeResolution(t *testing.T) {
	doc := linearDoc()

	// Explicit startNode wins.
	doc.StartNode = "b"
	g, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "b", g.StartNode())

	// Unknown startNode falls back to the trigger node.
	doc.StartNode = "ghost"
	g, err = Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "a", g.StartNode())

	// Without a trigger node, the first node wins.
	doc = &schema.FlowDocument{Nodes: []schema.Node{
		{ID: "m1", Type: schema.NodeTypeMessage},
		{ID: "m2", Type: schema.NodeTypeMessage},
	}}
	g, err = Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "m1", g.StartNode())
}

func TestNextEdgeFirstMatchWins(t *testing.T) {
	doc := &schema.FlowDocument{
		Nodes: []schema.Node{
			{ID: "q", Type: schema.NodeTypeButtons},
			{ID: "yes", Type: schema.NodeTypeMessage},
			{ID: "no", Type: schema.NodeTypeMessage},
			{ID: "dup", Type: schema.NodeTypeMessage},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "q", SourceHandle: "yes", Target: "yes"},
			{ID: "e2", Source: "q", SourceHandle: "no", Target: "no"},
			// Duplicate (source, handle): must lose to e1 deterministically.
			{ID: "e3", Source: "q", SourceHandle: "yes", Target: "dup"},
		},
	}
	g, err := Parse(doc)
	require.NoError(t, err)

	e := g.NextEdge("q", "yes")
	require.NotNil(t, e)
	assert.Equal(t, "yes", e.Target)

	e = g.NextEdge("q", "no")
	require.NotNil(t, e)
	assert.Equal(t, "no", e.Target)

	assert.Nil(t, g.NextEdge("q", "maybe"))
	assert.Nil(t, g.NextEdge("yes", ""))
}

func TestNextEdgeEmptyHandlePrefersUnconditional(t *testing.T) {
	doc := &schema.FlowDocument{
		Nodes: []schema.Node{
			{ID: "n", Type: schema.NodeTypeButtons},
			{ID: "t1", Type: schema.NodeTypeMessage},
			{ID: "t2", Type: schema.NodeTypeMessage},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "n", SourceHandle: "b1", Target: "t1"},
			{ID: "e2", Source: "n", Target: "t2"},
		},
	}
	g, err := Parse(doc)
	require.NoError(t, err)

	e := g.FirstEdge("n")
	require.NotNil(t, e)
	assert.Equal(t, "t2", e.Target)

	// With only handled edges, the first in document order is used.
	doc.Edges = doc.Edges[:1]
	g, err = Parse(doc)
	require.NoError(t, err)
	e = g.FirstEdge("n")
	require.NotNil(t, e)
	assert.Equal(t, "t1", e.Target)
}

func TestNormalizeCanonicalDocument(t *testing.T) {
	raw, err := json.Marshal(linearDoc())
	require.NoError(t, err)

	doc, err := Normalize(raw)
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 3)
	assert.Len(t, doc.Edges, 2)
	assert.Equal(t, "f1", doc.ID)
}

func TestNormalizeLegacyMapDocument(t *testing.T) {
	raw := []byte(`{
		"id": "legacy-1",
		"nodes": {
			"n2": {"type": "message", "text": "bye"},
			"n1": {"type": "message", "text": "hi", "next": "n2"}
		}
	}`)

	doc, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 2)
	// Sorted by id for determinism.
	assert.Equal(t, "n1", doc.Nodes[0].ID)
	assert.Equal(t, schema.NodeTypeMessage, doc.Nodes[0].Type)
	assert.Equal(t, "n2", doc.Nodes[1].ID)

	require.Len(t, doc.Edges, 1)
	assert.Equal(t, "n1", doc.Edges[0].Source)
	assert.Equal(t, "n2", doc.Edges[0].Target)

	// Inline fields become the node config.
	var cfg schema.MessageConfig
	require.NoError(t, json.Unmarshal(doc.Nodes[0].Config, &cfg))
	assert.Equal(t, "hi", cfg.Text)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte(`{"nodes": 42}`))
	assert.Error(t, err)

	_, err = Normalize([]byte(`not json`))
	assert.Error(t, err)

	_, err = Normalize([]byte(`{"edges": []}`))
	assert.Error(t, err)
}
