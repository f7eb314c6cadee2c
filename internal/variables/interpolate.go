package variables

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Interpolate replaces every {{dotted.path}} occurrence in template.
// Each match is resolved independently. Unresolved placeholders are left
// verbatim in the output; missing variables degrade gracefully rather
// than failing the step. There is no escaping mechanism for a literal
// "{{"; this is a documented limitation.
func (s *Store) Interpolate(template string) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var result strings.Builder
	result.Grow(len(template))

	i := 0
	for i < len(template) {
		idx := strings.Index(template[i:], "{{")
		if idx == -1 {
			result.WriteString(template[i:])
			break
		}
		start := i + idx
		result.WriteString(template[i:start])

		end := strings.Index(template[start+2:], "}}")
		if end == -1 {
			// Unclosed placeholder: keep the rest as-is.
			result.WriteString(template[start:])
			break
		}
		end = start + 2 + end

		path := strings.TrimSpace(template[start+2 : end])
		if v, ok := s.Resolve(path); ok {
			result.WriteString(Stringify(v))
		} else {
			result.WriteString(template[start : end+2])
		}
		i = end + 2
	}

	return result.String()
}

// Resolve looks up a single dotted path. System variables take precedence
// over flow variables of the same key and are computed fresh on every
// call, so current-date values reflect actual invocation time.
func (s *Store) Resolve(path string) (any, bool) {
	if v, ok := s.systemValue(path); ok {
		return v, true
	}
	return s.Lookup(path)
}

// systemValue resolves the fixed system.* namespace from the wall clock
// and environment. Never cached.
func (s *Store) systemValue(path string) (any, bool) {
	if !strings.HasPrefix(path, "system.") {
		return nil, false
	}
	now := s.now()
	switch path {
	case "system.current_date":
		return now.Format("2006-01-02"), true
	case "system.current_time":
		return now.Format("15:04:05"), true
	case "system.current_date_time":
		return now.Format("2006-01-02 15:04:05"), true
	case "system.timestamp":
		return now.UnixMilli(), true
	case "system.server_base_url":
		if s.baseURL == "" {
			return nil, false
		}
		return s.baseURL, true
	default:
		return nil, false
	}
}

// InterpolateAny applies Interpolate to every string reachable from v:
// strings directly, map values and slice elements recursively. Non-string
// scalars pass through unchanged.
func (s *Store) InterpolateAny(v any) any {
	switch val := v.(type) {
	case string:
		return s.Interpolate(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = s.InterpolateAny(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.InterpolateAny(item)
		}
		return out
	default:
		return v
	}
}

// InterpolateStringMap interpolates every value of a string map.
func (s *Store) InterpolateStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = s.Interpolate(v)
	}
	return out
}

// InterpolateSlice interpolates every element of a string slice.
func (s *Store) InterpolateSlice(vals []string) []string {
	if vals == nil {
		return nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = s.Interpolate(v)
	}
	return out
}

// Stringify renders a resolved value for template substitution: strings
// as-is, scalars via their plain string form, structured values as JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
