package document

import (
	"errors"
	"fmt"

	"github.com/rickKoch/actorstate/actor"
)

// Field names of an encoded actor reference.
const (
	RefInterfaceField = "interface"
	RefIDField        = "id"
)

// ErrUnknownInterface is returned for a reference whose interface type has
// no registered key parser.
var ErrUnknownInterface = errors.New("actorstate: unregistered reference interface")

// RefRegistry maps actor interface types to the parser that rebuilds their
// keys, so reference-valued fields round-trip as usable references.
type RefRegistry struct {
	parsers map[string]actor.KeyParser
}

func NewRefRegistry() *RefRegistry {
	return &RefRegistry{parsers: make(map[string]actor.KeyParser)}
}

// Register adds or replaces the key parser of iface.
func (r *RefRegistry) Register(iface string, parse actor.KeyParser) *RefRegistry {
	r.parsers[iface] = parse
	return r
}

// Registered reports whether iface has a key parser.
func (r *RefRegistry) Registered(iface string) bool {
	_, ok := r.parsers[iface]
	return ok
}

func (r *RefRegistry) clone() *RefRegistry {
	out := NewRefRegistry()
	for k, v := range r.parsers {
		out.parsers[k] = v
	}
	return out
}

func (r *RefRegistry) encode(ref actor.Ref) (Document, error) {
	if ref.Interface == "" && ref.ID == nil {
		return nil, nil
	}
	if !r.Registered(ref.Interface) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, ref.Interface)
	}
	_, id, err := actor.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return Document{RefInterfaceField: ref.Interface, RefIDField: id}, nil
}

func (r *RefRegistry) decode(raw any) (actor.Ref, error) {
	if raw == nil {
		return actor.Ref{}, nil
	}
	doc, ok := asDocument(raw)
	if !ok {
		return actor.Ref{}, typeError("actor reference", raw)
	}
	iface, ok := doc[RefInterfaceField].(string)
	if !ok {
		return actor.Ref{}, fmt.Errorf("actor reference without %q", RefInterfaceField)
	}
	id, ok := doc[RefIDField].(string)
	if !ok {
		return actor.Ref{}, fmt.Errorf("actor reference without %q", RefIDField)
	}
	parse, ok := r.parsers[iface]
	if !ok {
		return actor.Ref{}, fmt.Errorf("%w: %q", ErrUnknownInterface, iface)
	}
	key, err := parse(id)
	if err != nil {
		return actor.Ref{}, fmt.Errorf("actor reference %s/%s: %w", iface, id, err)
	}
	return actor.NewRef(iface, key), nil
}

// Mapper converts bound state objects to documents and back. It is built
// once and is safe for concurrent use.
type Mapper struct {
	refs *RefRegistry
}

// NewMapper snapshots refs; later registrations on refs are not seen.
func NewMapper(refs *RefRegistry) *Mapper {
	if refs == nil {
		refs = NewRefRegistry()
	}
	return &Mapper{refs: refs.clone()}
}

// ToDocument encodes every declared field of st. The result never carries IDField.
func (m *Mapper) ToDocument(st State) (Document, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return st.encode(m)
}

// MergeInto updates st in place from doc. IDField is ignored and fields
// absent from doc are left unchanged.
func (m *Mapper) MergeInto(st State, doc Document) error {
	if st == nil {
		return ErrNilState
	}
	return st.merge(m, doc.WithoutID())
}
