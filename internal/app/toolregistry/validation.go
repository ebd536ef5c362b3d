package toolregistry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"retouch/internal/domain/agent/ports"
	jsonx "retouch/internal/shared/json"
)

// neutralTriple replaces a per-band value that could not be parsed.
var neutralTriple = []float64{0, 0, 0}

// normalizeArguments coerces and validates args against schema. It returns a
// new map; args is not modified. Structured-value parse failures are
// recovered with a neutral default and reported as warnings wrapping
// ports.ErrStructuredArgument. Extra fields not in the schema are kept.
func normalizeArguments(schema ports.ParameterSchema, args map[string]any) (map[string]any, []error, error) {
	out := make(map[string]any, len(args))
	for key, val := range args {
		out[key] = val
	}

	for _, req := range schema.Required {
		val, ok := out[req]
		if !ok || val == nil {
			return nil, nil, fmt.Errorf("%w: missing required argument %q", ports.ErrInvalidArguments, req)
		}
	}

	var warnings []error
	for key, val := range out {
		prop, ok := schema.Properties[key]
		if !ok || val == nil {
			continue
		}
		if prop.Format == ports.FormatHSLTriple {
			triple, err := parseTriple(val)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: argument %q: %v; using [0, 0, 0]", ports.ErrStructuredArgument, key, err))
				triple = neutralTriple
			}
			for _, component := range triple {
				if component < -100 || component > 100 {
					return nil, warnings, fmt.Errorf("%w: argument %q: %v outside [-100, 100]", ports.ErrInvalidArguments, key, component)
				}
			}
			out[key] = triple
			continue
		}
		coerced, err := coerce(key, prop.Type, val)
		if err != nil {
			return nil, warnings, err
		}
		if err := checkRange(key, prop, coerced); err != nil {
			return nil, warnings, err
		}
		out[key] = coerced
	}
	return out, warnings, nil
}

func coerce(key, expectedType string, val any) (any, error) {
	switch strings.ToLower(expectedType) {
	case "number", "integer":
		f, ok := toFloat(val)
		if !ok {
			return nil, fmt.Errorf("%w: argument %q: expected number, got %T", ports.ErrInvalidArguments, key, val)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: argument %q: not a finite number", ports.ErrInvalidArguments, key)
		}
		return f, nil
	case "string":
		if s, ok := val.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: argument %q: expected string, got %T", ports.ErrInvalidArguments, key, val)
	case "boolean":
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, nil
			}
		}
		return nil, fmt.Errorf("%w: argument %q: expected boolean, got %T", ports.ErrInvalidArguments, key, val)
	case "array":
		if _, ok := val.([]any); !ok {
			return nil, fmt.Errorf("%w: argument %q: expected array, got %T", ports.ErrInvalidArguments, key, val)
		}
	}
	return val, nil
}

// toFloat accepts JSON numbers and numeric strings such as "+12" or "-3.5".
func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case jsonx.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func checkRange(key string, prop ports.Property, val any) error {
	f, ok := val.(float64)
	if !ok {
		return nil
	}
	if prop.Minimum != nil && f < *prop.Minimum {
		return fmt.Errorf("%w: argument %q: %v below minimum %v", ports.ErrInvalidArguments, key, f, *prop.Minimum)
	}
	if prop.Maximum != nil && f > *prop.Maximum {
		return fmt.Errorf("%w: argument %q: %v above maximum %v", ports.ErrInvalidArguments, key, f, *prop.Maximum)
	}
	return nil
}

// parseTriple reads three numbers from an array or from text such as
// "[10, -5, 0]", "(10,-5,0)" or a damaged "[10, -5, 0,".
func parseTriple(val any) ([]float64, error) {
	var items []any
	switch v := val.(type) {
	case []float64:
		items = make([]any, len(v))
		for i, f := range v {
			items[i] = f
		}
	case []any:
		items = v
	case string:
		text := strings.TrimSpace(v)
		var decoded []any
		if err := jsonx.UnmarshalLenient(text, &decoded); err == nil && decoded != nil {
			items = decoded
			break
		}
		text = strings.Trim(text, "[](){} ")
		for _, part := range strings.Split(text, ",") {
			items = append(items, strings.TrimSpace(part))
		}
	default:
		return nil, fmt.Errorf("unsupported value %T", val)
	}
	if len(items) != 3 {
		return nil, fmt.Errorf("expected 3 numbers, got %d", len(items))
	}
	out := make([]float64, 3)
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("item %d (%v) is not a number", i, item)
		}
		out[i] = f
	}
	return out, nil
}
