package schema

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// node is the structural form produced by Serialize. Field order is fixed so
// the output is stable across runs.
type node struct {
	Type         string                                `json:"type"`
	Value        json.RawMessage                       `json:"value,omitempty"`
	Values       []string                              `json:"values,omitempty"`
	IsInt        bool                                  `json:"isInt,omitempty"`
	Min          *float64                              `json:"min,omitempty"`
	Max          *float64                              `json:"max,omitempty"`
	MinLength    *float64                              `json:"minLength,omitempty"`
	MaxLength    *float64                              `json:"maxLength,omitempty"`
	Element      *node                                 `json:"element,omitempty"`
	Key          *node                                 `json:"key,omitempty"`
	Properties   *orderedmap.OrderedMap[string, *node] `json:"properties,omitempty"`
	Options      []*node                               `json:"options,omitempty"`
	IsOptional   bool                                  `json:"isOptional,omitempty"`
	IsNullable   bool                                  `json:"isNullable,omitempty"`
	Description  string                                `json:"description,omitempty"`
	DefaultValue json.RawMessage                       `json:"defaultValue,omitempty"`
}

// Serialize renders the structure of s as indented JSON
func Serialize(s *Schema) (string, error) {
	if s == nil {
		return "", ErrNilSchema
	}
	n, err := toNode(s)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema: %w", err)
	}
	return string(out), nil
}

func toNode(s *Schema) (*node, error) {
	n := &node{
		Type:        string(s.kind),
		IsOptional:  s.optional,
		IsNullable:  s.nullable,
		Description: s.description,
	}

	switch s.kind {
	case KindInt:
		n.Type = string(KindNumber)
		n.IsInt = true
		n.Min, n.Max = s.min, s.max
	case KindNumber:
		n.Min, n.Max = s.min, s.max
	case KindString:
		n.MinLength, n.MaxLength = s.min, s.max
	case KindLiteral:
		raw, err := json.Marshal(s.literal)
		if err != nil {
			return nil, fmt.Errorf("literal is not serializable: %w", err)
		}
		n.Value = raw
	case KindEnum:
		n.Values = append([]string(nil), s.values...)
	case KindArray:
		elem, err := toNode(s.element)
		if err != nil {
			return nil, err
		}
		n.Element = elem
		n.MinLength, n.MaxLength = s.min, s.max
	case KindRecord:
		val, err := toNode(s.element)
		if err != nil {
			return nil, err
		}
		n.Key = &node{Type: string(KindString)}
		n.Element = val
	case KindObject:
		n.Properties = orderedmap.New[string, *node]()
		for _, f := range s.fields {
			child, err := toNode(f.Schema)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", f.Name, err)
			}
			n.Properties.Set(f.Name, child)
		}
	case KindUnion:
		for _, o := range s.options {
			child, err := toNode(o)
			if err != nil {
				return nil, err
			}
			n.Options = append(n.Options, child)
		}
	}

	if s.hasDefault {
		raw, err := json.Marshal(s.def)
		if err != nil {
			return nil, fmt.Errorf("default is not serializable: %w", err)
		}
		n.DefaultValue = raw
	}
	return n, nil
}
