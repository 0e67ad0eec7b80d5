package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrNilSchema is returned when an operation receives no schema
var ErrNilSchema = errors.New("schema is nil")

const resourceURL = "schema.json"

// compiled caches validators by schema identity. Schemas are immutable so a
// pointer is a stable key.
var compiled sync.Map

// ParseResult mirrors the non-throwing parse outcome exposed to plugins
type ParseResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func validator(s *Schema) (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(s); ok {
		return v.(*jsonschema.Schema), nil
	}

	text, err := ToJSONSchema(s)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to decode json schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	actual, _ := compiled.LoadOrStore(s, sch)
	return actual.(*jsonschema.Schema), nil
}

// Validate checks value against s without applying defaults
func Validate(s *Schema, value any) error {
	if s == nil {
		return ErrNilSchema
	}
	sch, err := validator(s)
	if err != nil {
		return err
	}
	inst, err := normalize(value)
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

// Parse fills in declared defaults and then validates the result. The
// returned value is the normalized instance with defaults applied.
func Parse(s *Schema, value any) (any, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	inst, err := normalize(value)
	if err != nil {
		return nil, err
	}
	inst = applyDefaults(s, inst)

	sch, err := validator(s)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(inst); err != nil {
		return nil, err
	}
	return plain(inst), nil
}

// SafeParse is Parse without an error return
func SafeParse(s *Schema, value any) ParseResult {
	data, err := Parse(s, value)
	if err != nil {
		return ParseResult{Error: err.Error()}
	}
	return ParseResult{Success: true, Data: data}
}

// Parse is the method form of the package level Parse
func (s *Schema) Parse(value any) (any, error) {
	return Parse(s, value)
}

// SafeParse is the method form of the package level SafeParse
func (s *Schema) SafeParse(value any) ParseResult {
	return SafeParse(s, value)
}

// normalize round-trips value through JSON so the validator sees only
// maps, slices, strings, bools, json.Number and nil.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return inst, nil
}

func applyDefaults(s *Schema, v any) any {
	switch s.kind {
	case KindObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for _, f := range s.fields {
			cur, present := obj[f.Name]
			if !present {
				if f.Schema.hasDefault {
					if def, err := normalize(f.Schema.def); err == nil {
						obj[f.Name] = def
					}
				}
				continue
			}
			obj[f.Name] = applyDefaults(f.Schema, cur)
		}
		return obj
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return v
		}
		for i := range items {
			items[i] = applyDefaults(s.element, items[i])
		}
		return items
	case KindRecord:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for k, item := range obj {
			obj[k] = applyDefaults(s.element, item)
		}
		return obj
	}
	return v
}

// plain replaces json.Number with int64 or float64
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = plain(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = plain(item)
		}
		return t
	}
	return v
}
