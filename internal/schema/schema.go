// Package schema loads the optional relationship schema: the declared
// relationship types and the node labels their endpoints must carry.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Relationship declares one relationship type and its endpoint labels.
// Empty labels disable the corresponding check.
type Relationship struct {
	Type string `yaml:"type"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type document struct {
	Relationships []Relationship `yaml:"relationships"`
}

// Schema is the loaded relationship declarations. The zero value is an
// open schema: every type is allowed, no endpoints are checked.
type Schema struct {
	byType map[string]Relationship
	types  []string
}

// Load reads a schema document from path. A missing file yields an open
// schema, not an error.
func Load(path string) (*Schema, error) {
	if path == "" {
		return &Schema{}, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Schema{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a schema document.
func Parse(raw []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	s := &Schema{byType: make(map[string]Relationship, len(doc.Relationships))}
	for _, rel := range doc.Relationships {
		if rel.Type == "" {
			return nil, fmt.Errorf("schema declares a relationship without a type")
		}
		if _, ok := s.byType[rel.Type]; ok {
			return nil, fmt.Errorf("schema declares relationship type %q twice", rel.Type)
		}
		s.byType[rel.Type] = rel
		s.types = append(s.types, rel.Type)
	}
	return s, nil
}

// Open reports whether the schema declares nothing, allowing every
// relationship type.
func (s *Schema) Open() bool {
	return len(s.byType) == 0
}

// Types returns the declared relationship types in declaration order.
func (s *Schema) Types() []string {
	out := make([]string, len(s.types))
	copy(out, s.types)
	return out
}

// Allows reports whether typeName may be written. Open schemas allow
// everything.
func (s *Schema) Allows(typeName string) bool {
	if s.Open() {
		return true
	}
	_, ok := s.byType[typeName]
	return ok
}

// EndpointLabel returns the label the far endpoint of typeName must
// carry, or "" when unchecked.
func (s *Schema) EndpointLabel(typeName string) string {
	return s.byType[typeName].To
}

// OriginLabel returns the label the origin endpoint of typeName must
// carry, or "" when unchecked.
func (s *Schema) OriginLabel(typeName string) string {
	return s.byType[typeName].From
}
