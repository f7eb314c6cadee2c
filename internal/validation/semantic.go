package validation

import (
	"encoding/json"
	"fmt"

	"github.com/chatforge/chatforge/pkg/schema"
)

// validateSemantic performs graph-level analysis on a flow document.
// Dangling references and duplicate exits are warnings, not errors: the
// interpreter degrades gracefully on both (a missing node ends the path,
// duplicate (source, handle) pairs resolve first-match-wins), but flow
// authors want to hear about them.
func validateSemantic(doc *schema.FlowDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if nodeIDs[n.ID] {
			result.AddError(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodeIDs[n.ID] = true
	}

	if doc.StartNode != "" && !nodeIDs[doc.StartNode] {
		result.AddWarning("startNode", schema.ErrCodeGraph,
			fmt.Sprintf("startNode %q does not exist; the first trigger node will be used", doc.StartNode))
	}

	seenExits := make(map[string]int, len(doc.Edges))
	for i, e := range doc.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if !nodeIDs[e.Source] {
			result.AddWarning(path, schema.ErrCodeGraph,
				fmt.Sprintf("edge source %q does not exist", e.Source))
		}
		if !nodeIDs[e.Target] {
			result.AddWarning(path, schema.ErrCodeGraph,
				fmt.Sprintf("edge target %q does not exist; this path will end there", e.Target))
		}
		exit := e.Source + "\x00" + e.SourceHandle
		if first, dup := seenExits[exit]; dup {
			result.AddWarning(path, schema.ErrCodeGraph,
				fmt.Sprintf("duplicate exit (%s, %q); edges[%d] wins", e.Source, e.SourceHandle, first))
		} else {
			seenExits[exit] = i
		}
	}

	for i := range doc.Nodes {
		validateNodeConfig(&doc.Nodes[i], fmt.Sprintf("nodes[%d]", i), nodeIDs, result)
	}

	return result
}

// validateNodeConfig checks type-specific config constraints for node
// types whose misconfiguration would silently break a live conversation.
func validateNodeConfig(node *schema.Node, path string, nodeIDs map[string]bool, result *schema.ValidationResult) {
	switch node.Type {
	case schema.NodeTypeCondition:
		var cfg schema.ConditionConfig
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			result.AddError(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("condition node %s has invalid config: %v", node.ID, err))
			return
		}
		if len(cfg.Conditions) == 0 && cfg.Expression == "" {
			result.AddWarning(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("condition node %s has no conditions; only default_next can fire", node.ID))
		}
		for j, c := range cfg.Conditions {
			if c.Next != "" && !nodeIDs[c.Next] {
				result.AddWarning(fmt.Sprintf("%s.config.conditions[%d]", path, j), schema.ErrCodeGraph,
					fmt.Sprintf("branch target %q does not exist", c.Next))
			}
		}
		if cfg.DefaultNext != "" && !nodeIDs[cfg.DefaultNext] {
			result.AddWarning(path+".config.default_next", schema.ErrCodeGraph,
				fmt.Sprintf("default branch target %q does not exist", cfg.DefaultNext))
		}

	case schema.NodeTypeDelay:
		var cfg schema.DelayConfig
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			result.AddError(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("delay node %s has invalid config: %v", node.ID, err))
			return
		}
		if cfg.Amount <= 0 {
			result.AddError(path+".config.amount", schema.ErrCodeValidation,
				fmt.Sprintf("delay node %s must have a positive amount", node.ID))
		}
		switch cfg.Unit {
		case "", "seconds", "minutes", "hours", "days":
		default:
			result.AddError(path+".config.unit", schema.ErrCodeValidation,
				fmt.Sprintf("delay node %s has unknown unit %q", node.ID, cfg.Unit))
		}

	case schema.NodeTypeHTTP:
		var cfg schema.HTTPNodeConfig
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			result.AddError(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("http node %s has invalid config: %v", node.ID, err))
			return
		}
		if cfg.URL == "" {
			result.AddError(path+".config.url", schema.ErrCodeValidation,
				fmt.Sprintf("http node %s has no url", node.ID))
		}

	case schema.NodeTypeButtons:
		var cfg schema.ButtonsConfig
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			result.AddError(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("buttons node %s has invalid config: %v", node.ID, err))
			return
		}
		if len(cfg.Buttons) == 0 {
			result.AddError(path+".config.buttons", schema.ErrCodeValidation,
				fmt.Sprintf("buttons node %s has no buttons", node.ID))
		}

	case schema.NodeTypeTransform:
		var cfg schema.TransformConfig
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			result.AddError(path+".config", schema.ErrCodeValidation,
				fmt.Sprintf("transform node %s has invalid config: %v", node.ID, err))
			return
		}
		if cfg.Expression == "" {
			result.AddError(path+".config.expression", schema.ErrCodeValidation,
				fmt.Sprintf("transform node %s has no expression", node.ID))
		}
		switch cfg.Engine {
		case "", "expr", "cel", "jq":
		default:
			result.AddError(path+".config.engine", schema.ErrCodeValidation,
				fmt.Sprintf("transform node %s has unknown engine %q", node.ID, cfg.Engine))
		}
	}
}
