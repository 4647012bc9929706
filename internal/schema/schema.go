// Package schema describes the structured output expected from a
// generative backend. A Schema is a flat list of field descriptors used
// three ways: to render prompt instructions, to validate a parsed object,
// and to backfill missing required fields with declared defaults.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldKind is the shape of a single schema field.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindBool       FieldKind = "bool"
	KindNumber     FieldKind = "number"
	KindStringList FieldKind = "string_list"
	KindObject     FieldKind = "object"
)

// Field describes one field of a structured output object.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`

	// Default is returned by DefaultValue when set. When nil the kind's
	// zero value is used instead.
	Default any `json:"default,omitempty"`

	// Description is included in rendered prompt instructions.
	Description string `json:"description,omitempty"`
}

// DefaultValue returns the field's declared default, or the zero value
// for its kind when no default is declared.
func (f Field) DefaultValue() any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Kind {
	case KindString:
		return ""
	case KindBool:
		return false
	case KindNumber:
		return float64(0)
	case KindStringList:
		return []any{}
	case KindObject:
		return map[string]any{}
	default:
		return nil
	}
}

// Conforms reports whether value has the field's kind. Values are the
// dynamic types produced by encoding/json unmarshalling into any.
func (f Field) Conforms(value any) bool {
	switch f.Kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindNumber:
		_, ok := value.(float64)
		return ok
	case KindStringList:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

// Schema is an ordered set of field descriptors for one phase artifact.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// New creates a schema from the given fields.
func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// Field returns the descriptor for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the required field descriptors in declaration order.
func (s *Schema) Required() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks that every required field is present and every present
// field conforms to its declared kind. Unknown fields are allowed.
func (s *Schema) Validate(obj map[string]any) error {
	if obj == nil {
		return fmt.Errorf("schema %s: nil object", s.Name)
	}
	for _, f := range s.Fields {
		value, present := obj[f.Name]
		if !present {
			if f.Required {
				return fmt.Errorf("schema %s: missing required field %q", s.Name, f.Name)
			}
			continue
		}
		if !f.Conforms(value) {
			return fmt.Errorf("schema %s: field %q is not a %s", s.Name, f.Name, f.Kind)
		}
	}
	return nil
}

// Backfill returns a copy of obj with every missing or non-conforming
// required field replaced by its default. Fields that already conform are
// copied unchanged, so backfilling a fully-valid object is a no-op.
func (s *Schema) Backfill(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj)+len(s.Fields))
	for k, v := range obj {
		out[k] = v
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		value, present := out[f.Name]
		if !present || value == nil || !f.Conforms(value) {
			out[f.Name] = f.DefaultValue()
		}
	}
	return out
}

// DefaultObject returns an object with every required field set to its
// default value.
func (s *Schema) DefaultObject() map[string]any {
	obj := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			obj[f.Name] = f.DefaultValue()
		}
	}
	return obj
}

// CoverageCount returns how many required fields are present in obj with a
// conforming value.
func (s *Schema) CoverageCount(obj map[string]any) int {
	n := 0
	for _, f := range s.Required() {
		if value, ok := obj[f.Name]; ok && f.Conforms(value) {
			n++
		}
	}
	return n
}

// Instructions renders the schema as literal prompt instructions asking
// the backend to reply with nothing but the structured object.
func (s *Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Please provide your response as a JSON object with the following fields:\n")
	for _, f := range s.Fields {
		b.WriteString(fmt.Sprintf("  %q: %s", f.Name, kindExample(f.Kind)))
		if f.Required {
			b.WriteString(" (required)")
		}
		if f.Description != "" {
			b.WriteString(" - " + f.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIMPORTANT INSTRUCTIONS:\n")
	b.WriteString("1. Return ONLY valid, complete JSON, no additional text or explanation\n")
	b.WriteString("2. Make sure all strings are properly escaped and quoted\n")
	b.WriteString("3. Make sure to close all brackets and braces properly\n")
	b.WriteString("4. Do not include code blocks or markdown formatting in your JSON\n")
	b.WriteString("5. Do not truncate the JSON object\n")
	return b.String()
}

// kindExample renders a placeholder value for prompt instructions.
func kindExample(kind FieldKind) string {
	switch kind {
	case KindString:
		return `"string"`
	case KindBool:
		return "true|false"
	case KindNumber:
		return "number"
	case KindStringList:
		return `["string", ...]`
	case KindObject:
		return "{...}"
	default:
		return "value"
	}
}

// FieldNames returns all declared field names sorted alphabetically.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
