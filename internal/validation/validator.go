package validation

import "github.com/chatforge/chatforge/pkg/schema"

// DocumentValidator orchestrates the two-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (graph references, node configs)
type DocumentValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewDocumentValidator creates a DocumentValidator.
func NewDocumentValidator() (*DocumentValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: the semantic stage is skipped.
func (dv *DocumentValidator) Validate(doc *schema.FlowDocument) *schema.ValidationResult {
	if doc == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "flow document is nil")
		return r
	}

	result := &schema.ValidationResult{}
	if err := dv.jsonSchema.ValidateDocument(doc); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	result.Merge(validateSemantic(doc))
	return result
}

// ValidateDocument returns an error when the document has error-severity
// issues; warnings alone pass.
func (dv *DocumentValidator) ValidateDocument(doc *schema.FlowDocument) error {
	return dv.Validate(doc).ToError()
}
