package toolregistry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/agent/ports"
	jsonx "retouch/internal/shared/json"
)

func testSchema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"amount": ports.Bounds("amount", -100, 100),
			"reason": {Type: "string"},
			"keep":   {Type: "boolean"},
			"red":    {Type: "string", Format: ports.FormatHSLTriple},
		},
		Required: []string{"amount", "reason"},
	}
}

func TestNormalizeArgumentsMissingRequired(t *testing.T) {
	_, _, err := normalizeArguments(testSchema(), map[string]any{"amount": 1.0})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)
	assert.Contains(t, err.Error(), `"reason"`)

	_, _, err = normalizeArguments(testSchema(), map[string]any{"amount": nil, "reason": "x"})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)
}

func TestNormalizeArgumentsCoercesNumericStrings(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  float64
	}{
		{name: "explicit plus", input: "+12", want: 12},
		{name: "padded negative", input: " -3.5 ", want: -3.5},
		{name: "plain string", input: "7", want: 7},
		{name: "int", input: 4, want: 4},
		{name: "json number", input: jsonx.Number("42"), want: 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args, _, err := normalizeArguments(testSchema(), map[string]any{"amount": tc.input, "reason": "r"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, args["amount"])
		})
	}
}

func TestNormalizeArgumentsRejectsOutOfRange(t *testing.T) {
	for _, value := range []any{101.0, -100.5, "250"} {
		_, _, err := normalizeArguments(testSchema(), map[string]any{"amount": value, "reason": "r"})
		require.ErrorIs(t, err, ports.ErrInvalidArguments, "value %v", value)
	}
	args, _, err := normalizeArguments(testSchema(), map[string]any{"amount": 100.0, "reason": "r"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, args["amount"])
}

func TestNormalizeArgumentsRejectsWrongTypes(t *testing.T) {
	_, _, err := normalizeArguments(testSchema(), map[string]any{"amount": "lots", "reason": "r"})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)

	_, _, err = normalizeArguments(testSchema(), map[string]any{"amount": 1.0, "reason": 3})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)

	args, _, err := normalizeArguments(testSchema(), map[string]any{"amount": 1.0, "reason": "r", "keep": "true"})
	require.NoError(t, err)
	assert.Equal(t, true, args["keep"])
}

func TestNormalizeArgumentsParsesTriples(t *testing.T) {
	for _, input := range []any{"[10, -20, 5]", "(10,-20,5)", "10, -20, 5", []any{10.0, "-20", 5}} {
		args, warnings, err := normalizeArguments(testSchema(), map[string]any{"amount": 0.0, "reason": "r", "red": input})
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, []float64{10, -20, 5}, args["red"], "input %v", input)
	}
}

func TestNormalizeArgumentsRepairsDamagedTriples(t *testing.T) {
	for _, input := range []string{"[10, -5, 0", "[10, -5, 0,]", "{10,-5,0}"} {
		args, warnings, err := normalizeArguments(testSchema(), map[string]any{"amount": 0.0, "reason": "r", "red": input})
		require.NoError(t, err)
		assert.Empty(t, warnings, "input %q", input)
		assert.Equal(t, []float64{10, -5, 0}, args["red"], "input %q", input)
	}
}

func TestNormalizeArgumentsRecoversMalformedTriple(t *testing.T) {
	args, warnings, err := normalizeArguments(testSchema(), map[string]any{"amount": 0.0, "reason": "r", "red": "warmer please"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, args["red"])
	require.Len(t, warnings, 1)
	assert.True(t, errors.Is(warnings[0], ports.ErrStructuredArgument))
}

func TestNormalizeArgumentsRejectsOutOfRangeTriple(t *testing.T) {
	_, _, err := normalizeArguments(testSchema(), map[string]any{"amount": 0.0, "reason": "r", "red": "[0, 150, 0]"})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)
}

func TestNormalizeArgumentsDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"amount": "+5", "reason": "r", "extra": "kept"}
	args, _, err := normalizeArguments(testSchema(), input)
	require.NoError(t, err)
	assert.Equal(t, "+5", input["amount"])
	assert.Equal(t, "kept", args["extra"])
}
