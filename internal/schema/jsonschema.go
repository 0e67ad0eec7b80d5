package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
)

// draft is the JSON Schema dialect emitted at the document root
const draft = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema converts s into a JSON Schema document
func JSONSchema(s *Schema) *jsonschema.Schema {
	root := build(s)
	root.Version = draft
	return root
}

// ToJSONSchema renders s as indented JSON Schema text
func ToJSONSchema(s *Schema) (string, error) {
	if s == nil {
		return "", ErrNilSchema
	}
	out, err := json.MarshalIndent(JSONSchema(s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode json schema: %w", err)
	}
	return string(out), nil
}

// MarshalJSON encodes the schema as its JSON Schema document
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(JSONSchema(s))
}

func build(s *Schema) *jsonschema.Schema {
	var out *jsonschema.Schema

	switch s.kind {
	case KindString:
		out = &jsonschema.Schema{Type: "string"}
		out.MinLength = lengthBound(s.min)
		out.MaxLength = lengthBound(s.max)
	case KindNumber, KindInt:
		out = &jsonschema.Schema{Type: "number"}
		if s.kind == KindInt {
			out.Type = "integer"
		}
		out.Minimum = numberBound(s.min)
		out.Maximum = numberBound(s.max)
	case KindBoolean:
		out = &jsonschema.Schema{Type: "boolean"}
	case KindNull:
		out = &jsonschema.Schema{Type: "null"}
	case KindLiteral:
		out = &jsonschema.Schema{Const: s.literal}
		if t := scalarType(s.literal); t != "" {
			out.Type = t
		}
	case KindEnum:
		out = &jsonschema.Schema{Type: "string"}
		for _, v := range s.values {
			out.Enum = append(out.Enum, v)
		}
	case KindArray:
		out = &jsonschema.Schema{Type: "array", Items: build(s.element)}
		out.MinItems = lengthBound(s.min)
		out.MaxItems = lengthBound(s.max)
	case KindObject:
		out = &jsonschema.Schema{
			Type:                 "object",
			Properties:           jsonschema.NewProperties(),
			AdditionalProperties: jsonschema.FalseSchema,
		}
		for _, f := range s.fields {
			out.Properties.Set(f.Name, build(f.Schema))
			if f.Schema.required() {
				out.Required = append(out.Required, f.Name)
			}
		}
	case KindRecord:
		out = &jsonschema.Schema{Type: "object", AdditionalProperties: build(s.element)}
	case KindUnion:
		out = &jsonschema.Schema{}
		for _, o := range s.options {
			out.AnyOf = append(out.AnyOf, build(o))
		}
	default:
		out = &jsonschema.Schema{}
	}

	if s.nullable {
		out = &jsonschema.Schema{AnyOf: []*jsonschema.Schema{out, {Type: "null"}}}
	}
	if s.description != "" {
		out.Description = s.description
	}
	if s.hasDefault {
		out.Default = s.def
	}
	return out
}

func lengthBound(v *float64) *uint64 {
	if v == nil || *v < 0 {
		return nil
	}
	n := uint64(math.Floor(*v))
	return &n
}

func numberBound(v *float64) json.Number {
	if v == nil {
		return ""
	}
	return json.Number(strconv.FormatFloat(*v, 'f', -1, 64))
}

func scalarType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, float32, float64:
		return "number"
	case nil:
		return "null"
	}
	return ""
}
