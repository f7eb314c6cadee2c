package expressions

import (
	"strings"
	"sync"

	"github.com/chatforge/chatforge/pkg/schema"
)

// DefaultEngineName is used when a transform or condition node does not
// name an engine.
const DefaultEngineName = "expr"

var (
	enginesOnce sync.Once
	engines     map[string]Engine
)

// ForName returns the shared engine instance for the given name. The empty
// string resolves to the default engine. Engines are singletons so their
// compile caches are shared process-wide.
func ForName(name string) (Engine, error) {
	enginesOnce.Do(func() {
		engines = map[string]Engine{
			"expr": NewExprEngine(),
			"cel":  NewCELEngine(),
			"jq":   NewGoJQEngine(),
		}
	})

	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultEngineName
	}
	eng, ok := engines[key]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", name)
	}
	return eng, nil
}
