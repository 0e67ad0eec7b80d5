package schema

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const tsIndent = "    "

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ToTSDefinition renders s as a TypeScript type alias. The alias is named
// after name with its first letter upper-cased and a "Parameters" suffix.
func ToTSDefinition(name string, s *Schema) string {
	if s == nil {
		s = Any()
	}
	return "type " + aliasName(name) + " = " + tsType(s, 0) + ";"
}

func aliasName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "Parameters"
	}
	return string(unicode.ToUpper(r)) + name[size:] + "Parameters"
}

func tsType(s *Schema, depth int) string {
	t := tsBase(s, depth)
	if s.nullable {
		t += " | null"
	}
	return t
}

func tsBase(s *Schema, depth int) string {
	switch s.kind {
	case KindString:
		return "string"
	case KindNumber, KindInt:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	case KindLiteral:
		b, err := json.Marshal(s.literal)
		if err != nil {
			return "unknown"
		}
		return string(b)
	case KindEnum:
		parts := make([]string, len(s.values))
		for i, v := range s.values {
			b, _ := json.Marshal(v)
			parts[i] = string(b)
		}
		return strings.Join(parts, " | ")
	case KindArray:
		elem := tsType(s.element, depth)
		if strings.Contains(elem, " | ") {
			elem = "(" + elem + ")"
		}
		return elem + "[]"
	case KindObject:
		return tsObject(s, depth)
	case KindRecord:
		pad := strings.Repeat(tsIndent, depth)
		return "{\n" + pad + tsIndent + "[x: string]: " + tsType(s.element, depth+1) + ";\n" + pad + "}"
	case KindUnion:
		parts := make([]string, len(s.options))
		for i, o := range s.options {
			parts[i] = tsType(o, depth)
		}
		return strings.Join(parts, " | ")
	}
	return "any"
}

func tsObject(s *Schema, depth int) string {
	if len(s.fields) == 0 {
		return "{}"
	}
	pad := strings.Repeat(tsIndent, depth+1)
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, f := range s.fields {
		if f.Schema.description != "" {
			sb.WriteString(pad + "/** " + f.Schema.description + " */\n")
		}
		sb.WriteString(pad + propertyName(f.Name))
		t := tsType(f.Schema, depth+1)
		if f.Schema.optional {
			sb.WriteString("?: " + t + " | undefined;\n")
		} else {
			sb.WriteString(": " + t + ";\n")
		}
	}
	sb.WriteString(strings.Repeat(tsIndent, depth) + "}")
	return sb.String()
}

func propertyName(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	b, _ := json.Marshal(name)
	return string(b)
}
