// Package diagram renders flow documents as diagrams for the editor and
// for debugging a flow from the command line.
package diagram

import (
	"encoding/json"

	"github.com/chatforge/chatforge/pkg/schema"
)

// NodeKind classifies a diagram node by how it behaves at run time.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindWait      NodeKind = "wait"
	NodeKindDelay     NodeKind = "delay"
)

// Model is the intermediate representation used by renderers.
type Model struct {
	Title string
	Nodes []Node
	Edges []Edge
}

// Node is one diagram node.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind
}

// Edge is one directed connection, optionally labeled with the source
// handle or branch it represents.
type Edge struct {
	From  string
	To    string
	Label string
}

// Build maps a flow document onto the diagram model. Condition branches
// encoded as next pointers inside the node config become labeled edges so
// the diagram shows routing the edge list alone would miss.
func Build(doc *schema.FlowDocument) *Model {
	m := &Model{Title: doc.Name}

	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		m.Nodes = append(m.Nodes, Node{
			ID:    n.ID,
			Label: nodeLabel(n),
			Kind:  classify(n.Type),
		})
		m.Edges = append(m.Edges, branchEdges(n)...)
	}

	for _, e := range doc.Edges {
		m.Edges = append(m.Edges, Edge{From: e.Source, To: e.Target, Label: e.SourceHandle})
	}

	return m
}

func classify(t schema.NodeType) NodeKind {
	switch {
	case t.IsTrigger():
		return NodeKindTrigger
	case t == schema.NodeTypeCondition:
		return NodeKindCondition
	case t == schema.NodeTypeDelay:
		return NodeKindDelay
	case t == schema.NodeTypeButtons, t == schema.NodeTypeList,
		t == schema.NodeTypeFlowForm, t == schema.NodeTypeQuestion,
		t == schema.NodeTypeLocationRequest:
		return NodeKindWait
	default:
		return NodeKindAction
	}
}

func nodeLabel(n *schema.Node) string {
	return n.ID + " (" + string(n.Type) + ")"
}

// branchEdges derives edges from condition next pointers.
func branchEdges(n *schema.Node) []Edge {
	if n.Type != schema.NodeTypeCondition || len(n.Config) == 0 {
		return nil
	}
	var cfg schema.ConditionConfig
	if err := json.Unmarshal(n.Config, &cfg); err != nil {
		return nil
	}

	var edges []Edge
	for _, c := range cfg.Conditions {
		if c.Next != "" {
			edges = append(edges, Edge{From: n.ID, To: c.Next, Label: c.Variable + " " + c.Operator})
		}
	}
	if cfg.DefaultNext != "" {
		edges = append(edges, Edge{From: n.ID, To: cfg.DefaultNext, Label: "default"})
	}
	if cfg.TrueNext != "" {
		edges = append(edges, Edge{From: n.ID, To: cfg.TrueNext, Label: "true"})
	}
	if cfg.FalseNext != "" {
		edges = append(edges, Edge{From: n.ID, To: cfg.FalseNext, Label: "false"})
	}
	return edges
}
