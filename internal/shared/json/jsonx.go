// Package jsonx routes all JSON work through goccy/go-json.
package jsonx

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"
)

var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewEncoder    = json.NewEncoder
)

type Number = json.Number

// UnmarshalLenient decodes data into v, repairing the usual damage found in
// model output (single quotes, trailing commas, unquoted keys, truncation)
// when the strict decode fails. Blank input leaves v untouched.
func UnmarshalLenient(data string, v any) error {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil
	}
	strictErr := json.Unmarshal([]byte(data), v)
	if strictErr == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(data)
	if err != nil {
		return strictErr
	}
	return json.Unmarshal([]byte(repaired), v)
}
