// Package validation checks flow documents before they are accepted by
// the loader: structural JSON Schema validation first, then semantic
// graph checks. The engine itself stays lenient at run time; these
// diagnostics exist for authoring surfaces.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/chatforge/chatforge/pkg/schema"
)

// flowSchemaJSON is the JSON Schema for canonical flow documents.
// Embedded as a constant to avoid filesystem dependencies.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://chatforge.dev/schemas/flow.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string" },
    "startNode": { "type": "string" },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "config": {},
        "position": {
          "type": "object",
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "id": { "type": "string" },
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "sourceHandle": { "type": "string" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates canonical flow documents against the
// embedded JSON Schema (Draft 2020-12). Safe for concurrent use.
type JSONSchemaValidator struct {
	flowSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the flow schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	if err := c.AddResource("https://chatforge.dev/schemas/flow.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}

	compiled, err := c.Compile("https://chatforge.dev/schemas/flow.json")
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}

	return &JSONSchemaValidator{flowSchema: compiled}, nil
}

// ValidateDocument validates a flow document against the flow JSON Schema.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.FlowDocument) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "flow document is nil")
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize flow document").WithCause(err)
	}

	if err := v.flowSchema.Validate(value); err != nil {
		return schema.NewError(schema.ErrCodeValidation, err.Error()).WithCause(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so the schema library
// sees json.Number for numbers.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}
