// Package document maps actor state objects to and from schemaless
// documents using declared field tables instead of reflection.
package document

import (
	"go.mongodb.org/mongo-driver/bson"
)

// IDField is the reserved identity field of every stored document.
const IDField = "_id"

// Document is the stored representation of one actor's state.
type Document map[string]any

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// WithID returns a copy of d whose IDField is set to id.
func (d Document) WithID(id string) Document {
	out := d.Clone()
	out[IDField] = id
	return out
}

// WithoutID returns a copy of d without IDField.
func (d Document) WithoutID() Document {
	out := d.Clone()
	delete(out, IDField)
	return out
}

// asDocument accepts the map shapes produced by the stores: plain maps,
// bson.M and the ordered bson.D.
func asDocument(raw any) (Document, bool) {
	switch v := raw.(type) {
	case Document:
		return v, true
	case map[string]any:
		return Document(v), true
	case bson.M:
		return Document(v), true
	case bson.D:
		out := make(Document, len(v))
		for _, e := range v {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asSlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case bson.A:
		return v, true
	case []Document:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	return nil, false
}
