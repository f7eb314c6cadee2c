package executor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

const defaultHTTPTimeout = 30 * time.Second

// executeHTTP calls an external API and stores the response in the
// variable store under the configured variable prefix (default: the node
// ID). JSON responses are flattened so later nodes can reference
// {{<prefix>.body.some.field}}; non-JSON bodies are stored raw. Network
// and non-2xx failures are soft: the run continues with
// <prefix>.success=false.
func (ex *Executor) executeHTTP(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.HTTPNodeConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}
	if cfg.URL == "" {
		ex.recordFailure(ctx, node, vars,
			schema.NewError(schema.ErrCodeValidation, "http node has no url").WithNode(node.ID))
		return advance()
	}

	prefix := cfg.Variable
	if prefix == "" {
		prefix = node.ID
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "GET"
	}

	timeout := defaultHTTPTimeout
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := ex.http.R().SetContext(callCtx)

	for k, v := range cfg.Headers {
		req.SetHeader(k, vars.Interpolate(v))
	}
	applyAuth(req, cfg.Auth, vars)

	if cfg.Body != nil && method != "GET" {
		body := vars.InterpolateAny(cfg.Body)
		if s, ok := body.(string); ok {
			// A string body that parses as JSON is sent as JSON, anything
			// else goes out raw.
			var parsed any
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				req.SetBody(parsed)
			} else {
				req.SetBody(s)
			}
		} else {
			req.SetBody(body)
		}
	}

	resp, err := req.Execute(method, vars.Interpolate(cfg.URL))
	if err != nil {
		ex.recordFailure(ctx, node, vars,
			schema.NewErrorf(schema.ErrCodeAdapter, "http call failed: %s", err.Error()).
				WithNode(node.ID).WithCause(err))
		if prefix != node.ID {
			vars.Set(prefix+".success", false)
			vars.Set(prefix+".error", err.Error())
		}
		return advance()
	}

	storeResponse(vars, prefix, resp)
	if prefix != node.ID {
		// Keep the node ID namespace populated too, the contract every
		// other node type honors.
		vars.SetResult(node.ID, map[string]any{
			"success": resp.IsSuccess(),
			"status":  resp.StatusCode(),
		})
	}
	return advance()
}

func storeResponse(vars *variables.Store, prefix string, resp *resty.Response) {
	vars.Set(prefix+".success", resp.IsSuccess())
	vars.Set(prefix+".status", resp.StatusCode())
	vars.Set(prefix+".statusText", resp.Status())

	raw := resp.Body()
	var parsed any
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		vars.Flatten(prefix+".body", parsed)
	} else {
		vars.Set(prefix+".body", string(raw))
	}
}

func applyAuth(req *resty.Request, auth schema.HTTPAuth, vars *variables.Store) {
	switch auth.Type {
	case "bearer":
		req.SetAuthToken(vars.Interpolate(auth.Token))
	case "basic":
		req.SetBasicAuth(vars.Interpolate(auth.Username), vars.Interpolate(auth.Password))
	case "api-key", "api_key":
		name := auth.HeaderName
		if name == "" {
			name = "X-Api-Key"
		}
		req.SetHeader(name, vars.Interpolate(auth.HeaderValue))
	}
}
