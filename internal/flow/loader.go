package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/chatforge/chatforge/pkg/schema"
)

// Normalize parses a persisted flow document into the canonical
// {nodes[], edges[]} form. Two shapes are accepted:
//
//   - canonical: nodes as an array, edges as an array
//   - legacy: nodes as an id-keyed map where each node carries a "next"
//     pointer instead of the document carrying an edges array
//
// Legacy map conversion derives one edge per next pointer. Map keys are
// processed in sorted order so the derived document is deterministic.
func Normalize(raw json.RawMessage) (*schema.FlowDocument, error) {
	var probe struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		StartNode string          `json:"startNode"`
		Nodes     json.RawMessage `json:"nodes"`
		Edges     []schema.Edge   `json:"edges"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow document is not valid JSON").WithCause(err)
	}
	if len(probe.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow document has no nodes")
	}

	trimmed := bytes.TrimSpace(probe.Nodes)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var doc schema.FlowDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid flow document").WithCause(err)
		}
		return &doc, nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		return normalizeLegacy(&probe)
	default:
		return nil, schema.NewError(schema.ErrCodeValidation, "flow document nodes must be an array or an object")
	}
}

// legacyNodeFields are lifted out of a legacy node object; everything else
// becomes the node's config.
var legacyNodeFields = map[string]bool{
	"id":       true,
	"type":     true,
	"next":     true,
	"position": true,
	"config":   true,
}

func normalizeLegacy(probe *struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartNode string          `json:"startNode"`
	Nodes     json.RawMessage `json:"nodes"`
	Edges     []schema.Edge   `json:"edges"`
}) (*schema.FlowDocument, error) {
	var nodeMap map[string]map[string]any
	if err := json.Unmarshal(probe.Nodes, &nodeMap); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid legacy node map").WithCause(err)
	}

	ids := make([]string, 0, len(nodeMap))
	for id := range nodeMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := &schema.FlowDocument{
		ID:        probe.ID,
		Name:      probe.Name,
		StartNode: probe.StartNode,
		Nodes:     make([]schema.Node, 0, len(nodeMap)),
		Edges:     append([]schema.Edge(nil), probe.Edges...),
	}

	for _, id := range ids {
		fields := nodeMap[id]
		node := schema.Node{ID: id}

		if t, ok := fields["type"].(string); ok {
			node.Type = schema.NodeType(t)
		}
		if pos, ok := fields["position"]; ok {
			if b, err := json.Marshal(pos); err == nil {
				_ = json.Unmarshal(b, &node.Position)
			}
		}

		config := map[string]any{}
		if cfg, ok := fields["config"].(map[string]any); ok {
			config = cfg
		} else {
			for k, v := range fields {
				if !legacyNodeFields[k] {
					config[k] = v
				}
			}
		}
		if len(config) > 0 {
			b, err := json.Marshal(config)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "node %s: cannot encode config", id).WithCause(err)
			}
			node.Config = b
		}
		doc.Nodes = append(doc.Nodes, node)

		if next, ok := fields["next"].(string); ok && next != "" {
			doc.Edges = append(doc.Edges, schema.Edge{
				ID:     fmt.Sprintf("legacy-%s-%s", id, next),
				Source: id,
				Target: next,
			})
		}
	}

	return doc, nil
}
