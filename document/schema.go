package document

import (
	"errors"
	"fmt"
)

// ErrNilState is returned when a State is missing or bound to a nil target.
var ErrNilState = errors.New("actorstate: nil state")

// FieldError reports the field whose value could not be encoded or decoded.
type FieldError struct {
	Schema string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Schema, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Schema is the declared field table of a state type S. Every declared
// field is persisted; nothing else about S is consulted.
type Schema[S any] struct {
	name   string
	fields []field[S]
	names  map[string]struct{}
}

type field[S any] struct {
	name   string
	encode func(m *Mapper, s *S) (any, error)
	// decode returns the assignment to apply once every field decoded.
	decode func(m *Mapper, raw any) (func(*S), error)
}

// NewSchema starts an empty field table for S.
func NewSchema[S any](name string) *Schema[S] {
	return &Schema[S]{name: name, names: make(map[string]struct{})}
}

// Field declares the stored field name of the value at returns. Declaring
// IDField, an empty name or the same name twice panics.
func Field[S, V any](s *Schema[S], name string, at func(*S) *V, c Codec[V]) *Schema[S] {
	if name == "" || name == IDField {
		panic(fmt.Sprintf("document: schema %s: invalid field name %q", s.name, name))
	}
	if _, dup := s.names[name]; dup {
		panic(fmt.Sprintf("document: schema %s: duplicate field %q", s.name, name))
	}
	s.names[name] = struct{}{}
	s.fields = append(s.fields, field[S]{
		name: name,
		encode: func(m *Mapper, st *S) (any, error) {
			return c.Encode(m, *at(st))
		},
		decode: func(m *Mapper, raw any) (func(*S), error) {
			v, err := c.Decode(m, raw)
			if err != nil {
				return nil, err
			}
			return func(st *S) { *at(st) = v }, nil
		},
	})
	return s
}

// Bind pairs a caller-owned target with the schema.
func (s *Schema[S]) Bind(target *S) State {
	return bound[S]{schema: s, target: target}
}

func (s *Schema[S]) encode(m *Mapper, st *S) (Document, error) {
	doc := make(Document, len(s.fields))
	for _, f := range s.fields {
		v, err := f.encode(m, st)
		if err != nil {
			return nil, &FieldError{Schema: s.name, Field: f.name, Err: err}
		}
		doc[f.name] = v
	}
	return doc, nil
}

// merge decodes every field present in doc, then assigns them. Fields absent
// from doc keep their current value; on error st is not modified.
func (s *Schema[S]) merge(m *Mapper, st *S, doc Document) error {
	assign := make([]func(*S), 0, len(s.fields))
	for _, f := range s.fields {
		raw, ok := doc[f.name]
		if !ok {
			continue
		}
		set, err := f.decode(m, raw)
		if err != nil {
			return &FieldError{Schema: s.name, Field: f.name, Err: err}
		}
		assign = append(assign, set)
	}
	for _, set := range assign {
		set(st)
	}
	return nil
}

// State is a state object bound to its schema, as accepted by the Mapper.
type State interface {
	// Schema names the field table the state is bound to.
	Schema() string
	encode(m *Mapper) (Document, error)
	merge(m *Mapper, doc Document) error
}

type bound[S any] struct {
	schema *Schema[S]
	target *S
}

func (b bound[S]) Schema() string { return b.schema.name }

func (b bound[S]) encode(m *Mapper) (Document, error) {
	if b.target == nil {
		return nil, ErrNilState
	}
	return b.schema.encode(m, b.target)
}

func (b bound[S]) merge(m *Mapper, doc Document) error {
	if b.target == nil {
		return ErrNilState
	}
	return b.schema.merge(m, b.target, doc)
}
