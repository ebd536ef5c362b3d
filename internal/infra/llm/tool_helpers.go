package llm

import (
	"regexp"
	"strings"

	"retouch/internal/domain/agent/ports"
	jsonx "retouch/internal/shared/json"
)

var validToolNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func isValidToolName(name string) bool {
	return validToolNamePattern.MatchString(strings.TrimSpace(name))
}

func normalizeToolSchema(schema ports.ParameterSchema) ports.ParameterSchema {
	normalized := schema
	if strings.TrimSpace(normalized.Type) == "" {
		normalized.Type = "object"
	}
	if normalized.Properties == nil {
		normalized.Properties = map[string]ports.Property{}
	}
	return normalized
}

// DecodeArguments parses a tool call's JSON arguments, repairing malformed
// model output before giving up.
func DecodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if err := jsonx.UnmarshalLenient(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// EncodeArguments renders arguments for replay; nil becomes "{}".
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := jsonx.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
