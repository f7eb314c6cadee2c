package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a Model as a Mermaid flowchart string.
func RenderMermaid(m *Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if m.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", m.Title))
	}

	for _, node := range m.Nodes {
		b.WriteString("    " + mermaidNodeDef(node) + "\n")
	}

	for _, edge := range m.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			safeID(edge.From), label, safeID(edge.To)))
	}

	return b.String()
}

// mermaidNodeDef picks a shape per node kind: circles for triggers,
// diamonds for conditions, stadiums for waits.
func mermaidNodeDef(node Node) string {
	id := safeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindTrigger:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindWait:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindDelay:
		return fmt.Sprintf("%s[/%q/]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// safeID converts a node ID to a Mermaid-safe identifier.
func safeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
