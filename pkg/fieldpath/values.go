package fieldpath

import (
	"encoding/json"
	"strings"
)

// Outputs is the result of a model calculation. Values may be scalars or
// nested maps, addressed by dot-path.
type Outputs map[string]any

// Value resolves a dot-path through nested maps.
func (o Outputs) Value(path string) (any, bool) {
	var current any = map[string]any(o)
	for _, part := range strings.Split(path, ".") {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case Outputs:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]float64:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// Lookup resolves a dot-path to a number. Missing paths and non-numeric
// values report false.
func (o Outputs) Lookup(path string) (float64, bool) {
	v, ok := o.Value(path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat converts the numeric types produced by Go code, YAML and JSON
// decoding to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFloatSlice converts []float64 or a slice of numbers decoded as []any.
// The result is always a fresh slice.
func ToFloatSlice(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return append([]float64(nil), s...), true
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, ok := ToFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
