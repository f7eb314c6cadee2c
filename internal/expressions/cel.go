package expressions

import (
	"context"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/chatforge/chatforge/pkg/schema"
)

// CELEngine implements the Engine interface using Google's Common
// Expression Language. CEL is non-Turing-complete and terminates on every
// input, which makes it the safest choice for untrusted flow authors.
// Compiled programs are cached per expression.
type CELEngine struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a new CEL expression engine.
func NewCELEngine() *CELEngine {
	return &CELEngine{
		cache: make(map[string]cel.Program),
	}
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles (or retrieves from cache) a CEL expression and
// evaluates it. Only the "vars" map is declared in the CEL environment, so
// expressions reference run data as vars["customer.name"] or
// vars.node_id_result.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty cel expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, buildActivation(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"cel evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out.Value(), nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"cel environment setup failed: %s", err.Error()).WithCause(err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"cel compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"cel program construction failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

// buildActivation guarantees the declared "vars" variable is present even
// when the caller passes nil or an incomplete data map.
func buildActivation(data map[string]any) map[string]any {
	activation := map[string]any{
		"vars": map[string]any{},
	}
	for k, v := range data {
		activation[k] = v
	}
	if _, ok := activation["vars"]; !ok || activation["vars"] == nil {
		activation["vars"] = map[string]any{}
	}
	return activation
}

var _ Engine = (*CELEngine)(nil)
