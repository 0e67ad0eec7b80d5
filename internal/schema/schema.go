package schema

import (
	"fmt"
)

// Kind identifies the shape a Schema describes
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInt     Kind = "int"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindAny     Kind = "any"
	KindLiteral Kind = "literal"
	KindEnum    Kind = "enum"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindRecord  Kind = "record"
	KindUnion   Kind = "union"
)

// Field is a named object property
type Field struct {
	Name   string
	Schema *Schema
}

// F is shorthand for building object fields
func F(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// Schema describes a JSON value. Values are never mutated after construction.
type Schema struct {
	kind        Kind
	description string
	optional    bool
	nullable    bool
	hasDefault  bool
	def         any
	min         *float64
	max         *float64
	literal     any
	values      []string
	element     *Schema
	fields      []Field
	options     []*Schema
}

func String() *Schema  { return &Schema{kind: KindString} }
func Number() *Schema  { return &Schema{kind: KindNumber} }
func Int() *Schema     { return &Schema{kind: KindInt} }
func Boolean() *Schema { return &Schema{kind: KindBoolean} }
func Null() *Schema    { return &Schema{kind: KindNull} }
func Any() *Schema     { return &Schema{kind: KindAny} }

// Literal matches exactly one JSON scalar
func Literal(v any) *Schema {
	return &Schema{kind: KindLiteral, literal: v}
}

// Enum matches one of a fixed set of strings
func Enum(values ...string) *Schema {
	return &Schema{kind: KindEnum, values: append([]string(nil), values...)}
}

// Array matches a list whose items all match element
func Array(element *Schema) *Schema {
	return &Schema{kind: KindArray, element: element}
}

// Object matches an object with the given properties, in declaration order
func Object(fields ...Field) *Schema {
	return &Schema{kind: KindObject, fields: append([]Field(nil), fields...)}
}

// Record matches an object with arbitrary keys whose values match value
func Record(value *Schema) *Schema {
	return &Schema{kind: KindRecord, element: value}
}

// Union matches any of the options
func Union(options ...*Schema) *Schema {
	return &Schema{kind: KindUnion, options: append([]*Schema(nil), options...)}
}

func (s *Schema) clone() *Schema {
	c := *s
	return &c
}

// Optional marks the schema as not required when used as an object field
func (s *Schema) Optional() *Schema {
	c := s.clone()
	c.optional = true
	return c
}

// Nullable additionally accepts null
func (s *Schema) Nullable() *Schema {
	c := s.clone()
	c.nullable = true
	return c
}

// Describe attaches a human readable description
func (s *Schema) Describe(text string) *Schema {
	c := s.clone()
	c.description = text
	return c
}

// Default declares the value used when an object field is missing
func (s *Schema) Default(v any) *Schema {
	c := s.clone()
	c.hasDefault = true
	c.def = v
	return c
}

// Min bounds numbers by value and strings and arrays by length
func (s *Schema) Min(n float64) *Schema {
	c := s.clone()
	c.min = &n
	return c
}

// Max bounds numbers by value and strings and arrays by length
func (s *Schema) Max(n float64) *Schema {
	c := s.clone()
	c.max = &n
	return c
}

// Kind returns the schema kind
func (s *Schema) Kind() Kind { return s.kind }

// IsOptional reports whether the schema was marked optional
func (s *Schema) IsOptional() bool { return s.optional }

// Fields returns a copy of the object properties
func (s *Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

func (s *Schema) String() string {
	return fmt.Sprintf("schema(%s)", s.kind)
}

func (s *Schema) required() bool {
	return !s.optional && !s.hasDefault
}
