package timeline

import "fmt"

// Schema is the ordered registry of queries a timeline evaluates.
//
// A built schema is frozen. New queries can only be added by extending it,
// which yields a new schema that keeps every earlier registration.
type Schema struct {
	parent *Schema
	names  []string
	built  bool
}

// Builder registers queries for a schema under construction.
type Builder struct {
	schema *Schema
}

// NewBuilder starts an empty schema.
func NewBuilder() *Builder {
	return &Builder{schema: &Schema{}}
}

// Extend starts a schema that continues s. Queries registered on s remain
// valid on timelines of the extended schema.
func (s *Schema) Extend() *Builder {
	if !s.built {
		panic("timeline: extend of a schema that is not built")
	}
	names := make([]string, len(s.names))
	copy(names, s.names)
	return &Builder{schema: &Schema{parent: s, names: names}}
}

// Build freezes the schema. Registering on the builder afterwards panics.
func (b *Builder) Build() *Schema {
	b.schema.built = true
	return b.schema
}

// Len returns the number of registered queries.
func (s *Schema) Len() int { return len(s.names) }

// Names returns query names in registration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// includes reports whether other is s or one of its ancestors.
func (s *Schema) includes(other *Schema) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Register allocates the next query index on b.
func Register[E, F, M any](b *Builder, name string, projection Projection[E, F], applicator Applicator[F, M]) *Query[E, F, M] {
	if b.schema.built {
		panic(fmt.Sprintf("timeline: register %q on a built schema", name))
	}
	q := &Query[E, F, M]{
		schema:     b.schema,
		index:      len(b.schema.names),
		name:       name,
		projection: projection,
		applicator: applicator,
	}
	b.schema.names = append(b.schema.names, name)
	return q
}
