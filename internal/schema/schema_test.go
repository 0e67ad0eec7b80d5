package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculatorParams() *Schema {
	return Object(
		F("a", Number().Describe("first operand")),
		F("b", Number().Describe("second operand")),
		F("op", Enum("add", "sub", "mul", "div").Default("add")),
		F("note", String().Optional()),
	)
}

func TestModifiersDoNotMutate(t *testing.T) {
	base := String()
	opt := base.Optional()

	assert.False(t, base.IsOptional())
	assert.True(t, opt.IsOptional())
	assert.Equal(t, KindString, opt.Kind())
}

func TestToJSONSchema(t *testing.T) {
	text, err := ToJSONSchema(calculatorParams())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &doc))

	assert.Equal(t, draft, doc["$schema"])
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.ElementsMatch(t, []any{"a", "b"}, doc["required"])

	props := doc["properties"].(map[string]any)
	a := props["a"].(map[string]any)
	assert.Equal(t, "number", a["type"])
	assert.Equal(t, "first operand", a["description"])

	op := props["op"].(map[string]any)
	assert.Equal(t, "add", op["default"])
	assert.Len(t, op["enum"], 4)
}

func TestToJSONSchemaNil(t *testing.T) {
	_, err := ToJSONSchema(nil)
	assert.ErrorIs(t, err, ErrNilSchema)
}

func TestJSONSchemaNullable(t *testing.T) {
	text, err := ToJSONSchema(Int().Min(1).Nullable())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	anyOf := doc["anyOf"].([]any)
	require.Len(t, anyOf, 2)
	assert.Equal(t, "integer", anyOf[0].(map[string]any)["type"])
	assert.Equal(t, float64(1), anyOf[0].(map[string]any)["minimum"])
	assert.Equal(t, "null", anyOf[1].(map[string]any)["type"])
}

func TestToTSDefinition(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		schema *Schema
		want   string
	}{
		{
			name:   "empty object",
			tool:   "ping",
			schema: Object(),
			want:   "type PingParameters = {};",
		},
		{
			name: "described and optional fields",
			tool: "calculator",
			schema: Object(
				F("a", Number().Describe("first operand")),
				F("note", String().Optional()),
			),
			want: "type CalculatorParameters = {\n" +
				"    /** first operand */\n" +
				"    a: number;\n" +
				"    note?: string | undefined;\n" +
				"};",
		},
		{
			name: "quoted keys and union arrays",
			tool: "mixed",
			schema: Object(
				F("x-y", Array(Union(String(), Number()))),
				F("tag", Literal("v1").Nullable()),
			),
			want: "type MixedParameters = {\n" +
				"    \"x-y\": (string | number)[];\n" +
				"    tag: \"v1\" | null;\n" +
				"};",
		},
		{
			name: "nested record",
			tool: "env",
			schema: Object(
				F("vars", Record(String())),
			),
			want: "type EnvParameters = {\n" +
				"    vars: {\n" +
				"        [x: string]: string;\n" +
				"    };\n" +
				"};",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToTSDefinition(tt.tool, tt.schema))
		})
	}
}

func TestSerializeKeepsPropertyOrder(t *testing.T) {
	text, err := Serialize(Object(
		F("zeta", Int().Min(0)),
		F("alpha", String().Optional().Describe("first letter")),
	))
	require.NoError(t, err)

	assert.Less(t, strings.Index(text, `"zeta"`), strings.Index(text, `"alpha"`))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	assert.Equal(t, "object", doc["type"])

	props := doc["properties"].(map[string]any)
	zeta := props["zeta"].(map[string]any)
	assert.Equal(t, "number", zeta["type"])
	assert.Equal(t, true, zeta["isInt"])
	assert.Equal(t, float64(0), zeta["min"])

	alpha := props["alpha"].(map[string]any)
	assert.Equal(t, true, alpha["isOptional"])
	assert.Equal(t, "first letter", alpha["description"])
}

func TestValidate(t *testing.T) {
	s := calculatorParams()

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{name: "valid", value: map[string]any{"a": 1, "b": 2, "op": "mul"}},
		{name: "missing required", value: map[string]any{"a": 1}, wantErr: true},
		{name: "wrong type", value: map[string]any{"a": "1", "b": 2}, wantErr: true},
		{name: "unknown enum", value: map[string]any{"a": 1, "b": 2, "op": "pow"}, wantErr: true},
		{name: "extra property", value: map[string]any{"a": 1, "b": 2, "c": 3}, wantErr: true},
		{name: "not an object", value: []int{1, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(s, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	data, err := Parse(calculatorParams(), map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	obj := data.(map[string]any)
	assert.Equal(t, "add", obj["op"])
	assert.Equal(t, int64(1), obj["a"])
	assert.NotContains(t, obj, "note")
}

func TestSafeParse(t *testing.T) {
	ok := SafeParse(calculatorParams(), map[string]any{"a": 1, "b": 2})
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)

	bad := SafeParse(calculatorParams(), map[string]any{"b": 2})
	assert.False(t, bad.Success)
	assert.NotEmpty(t, bad.Error)
	assert.Nil(t, bad.Data)
}
