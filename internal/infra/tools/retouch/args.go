package retouch

import (
	"fmt"

	"retouch/internal/domain/agent/ports"
	jsonx "retouch/internal/shared/json"
)

// FloatArg parses a float-like argument, returning (0,false) if absent or
// invalid.
func FloatArg(args map[string]any, key string) (float64, bool) {
	if args == nil {
		return 0, false
	}
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case jsonx.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

// TripleArg returns a three-number argument already normalised by the
// dispatcher. Missing keys report false.
func TripleArg(args map[string]any, key string) ([3]float64, bool) {
	var out [3]float64
	if args == nil {
		return out, false
	}
	switch v := args[key].(type) {
	case [3]float64:
		return v, true
	case []float64:
		if len(v) == 3 {
			copy(out[:], v)
			return out, true
		}
	case []any:
		if len(v) != 3 {
			return out, false
		}
		for i, item := range v {
			f, ok := FloatArg(map[string]any{"v": item}, "v")
			if !ok {
				return out, false
			}
			out[i] = f
		}
		return out, true
	}
	return out, false
}

func requireFloat(call ports.ToolCall, key string) (float64, error) {
	value, ok := FloatArg(call.Arguments, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s requires numeric %q", ports.ErrInvalidArguments, call.Name, key)
	}
	return value, nil
}
