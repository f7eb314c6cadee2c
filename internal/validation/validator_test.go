package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/pkg/schema"
)

func validDoc() *schema.FlowDocument {
	return &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "start", Type: schema.NodeTypeTrigger, Config: json.RawMessage(`{"keywords":["hi"]}`)},
			{ID: "greet", Type: schema.NodeTypeMessage, Config: json.RawMessage(`{"text":"hello"}`)},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "start", Target: "greet"},
		},
	}
}

func newValidator(t *testing.T) *DocumentValidator {
	t.Helper()
	dv, err := NewDocumentValidator()
	require.NoError(t, err)
	return dv
}

func TestValidDocumentPasses(t *testing.T) {
	dv := newValidator(t)
	result := dv.Validate(validDoc())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestStructuralFailureShortCircuits(t *testing.T) {
	dv := newValidator(t)
	doc := validDoc()
	doc.Nodes[0].ID = ""

	result := dv.Validate(doc)
	assert.False(t, result.Valid())
}

func TestDanglingEdgeTargetIsWarning(t *testing.T) {
	dv := newValidator(t)
	doc := validDoc()
	doc.Edges = append(doc.Edges, schema.Edge{Source: "greet", Target: "ghost"})

	result := dv.Validate(doc)
	assert.True(t, result.Valid(), "dangling targets degrade at run time, they are not authoring errors")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Message, "ghost")
}

func TestDuplicateExitIsWarning(t *testing.T) {
	dv := newValidator(t)
	doc := validDoc()
	doc.Edges = append(doc.Edges, schema.Edge{Source: "start", Target: "greet"})

	result := dv.Validate(doc)
	assert.True(t, result.Valid())
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Message, "duplicate exit")
}

func TestDelayConfigChecked(t *testing.T) {
	dv := newValidator(t)
	doc := validDoc()
	doc.Nodes = append(doc.Nodes, schema.Node{
		ID:     "wait",
		Type:   schema.NodeTypeDelay,
		Config: json.RawMessage(`{"amount":-5,"unit":"fortnights"}`),
	})

	result := dv.Validate(doc)
	assert.False(t, result.Valid())
	assert.Len(t, result.Errors, 2)
}

func TestTransformConfigChecked(t *testing.T) {
	dv := newValidator(t)
	doc := validDoc()
	doc.Nodes = append(doc.Nodes, schema.Node{
		ID:     "tx",
		Type:   schema.NodeTypeTransform,
		Config: json.RawMessage(`{"engine":"javascript","expression":""}`),
	})

	result := dv.Validate(doc)
	assert.False(t, result.Valid())
}
