// Package flow holds the immutable-per-run graph representation of a flow
// document and the loader that normalizes persisted document shapes.
package flow

import (
	"github.com/chatforge/chatforge/pkg/schema"
)

// Graph is the parsed, indexed form of a FlowDocument. It is built once
// per execution attempt and never mutated afterwards; editor updates to
// the document do not affect an in-flight run.
type Graph struct {
	doc   *schema.FlowDocument
	nodes map[string]*schema.Node
	// edges keeps outgoing edges per source in document order, so that
	// "first match wins" is deterministic.
	edges map[string][]*schema.Edge
	start string
}

// Parse indexes a FlowDocument. Parsing is deliberately lenient: dangling
// edge targets and duplicate (source, handle) pairs are not errors here.
// The interpreter treats a missing node as a terminal graph error for that
// path at execution time, and on duplicate edges the first match wins.
// Use validation.ValidateDocument for authoring-time diagnostics.
func Parse(doc *schema.FlowDocument) (*Graph, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeGraph, "flow document is nil")
	}
	if len(doc.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeGraph, "flow has no nodes")
	}

	g := &Graph{
		doc:   doc,
		nodes: make(map[string]*schema.Node, len(doc.Nodes)),
		edges: make(map[string][]*schema.Edge, len(doc.Edges)),
	}

	for i := range doc.Nodes {
		node := &doc.Nodes[i]
		if node.ID == "" {
			return nil, schema.NewError(schema.ErrCodeGraph, "node with empty id")
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeGraph, "duplicate node id: %s", node.ID)
		}
		g.nodes[node.ID] = node
	}

	for i := range doc.Edges {
		edge := &doc.Edges[i]
		g.edges[edge.Source] = append(g.edges[edge.Source], edge)
	}

	g.start = resolveStart(doc, g.nodes)
	return g, nil
}

// resolveStart picks the start node: the document's explicit startNode if
// it exists, else the first trigger node in document order, else the first
// node (fallback for malformed or legacy documents).
func resolveStart(doc *schema.FlowDocument, nodes map[string]*schema.Node) string {
	if doc.StartNode != "" {
		if _, ok := nodes[doc.StartNode]; ok {
			return doc.StartNode
		}
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].Type.IsTrigger() {
			return doc.Nodes[i].ID
		}
	}
	return doc.Nodes[0].ID
}

// Document returns the underlying flow document.
func (g *Graph) Document() *schema.FlowDocument {
	return g.doc
}

// StartNode returns the resolved start node ID.
func (g *Graph) StartNode() string {
	return g.start
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*schema.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// NextEdge returns the outgoing edge from source matching the given
// handle. With a non-empty handle, the first edge carrying that handle
// wins. With an empty handle, the first edge without a handle wins, and
// failing that the first outgoing edge in document order, since legacy
// documents connect multi-exit nodes without handles.
func (g *Graph) NextEdge(source, handle string) *schema.Edge {
	outgoing := g.edges[source]
	if len(outgoing) == 0 {
		return nil
	}
	if handle != "" {
		for _, e := range outgoing {
			if e.SourceHandle == handle {
				return e
			}
		}
		return nil
	}
	for _, e := range outgoing {
		if e.SourceHandle == "" {
			return e
		}
	}
	return outgoing[0]
}

// FirstEdge returns the edge the resume path advances through: the first
// unconditional (handle-less) edge from the paused node, else the first
// outgoing edge in document order. Branch-specific routing after an
// interactive reply must already be encoded in the resume payload by the
// caller; the registry does not re-apply handle disambiguation.
func (g *Graph) FirstEdge(source string) *schema.Edge {
	return g.NextEdge(source, "")
}

// Outgoing returns all outgoing edges from source in document order.
func (g *Graph) Outgoing(source string) []*schema.Edge {
	return g.edges[source]
}
