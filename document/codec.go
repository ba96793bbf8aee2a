package document

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rickKoch/actorstate/actor"
)

// Codec converts one field value to and from its stored form. Decode must
// accept every representation a store may hand back for what Encode produced.
type Codec[V any] interface {
	Encode(m *Mapper, v V) (any, error)
	Decode(m *Mapper, raw any) (V, error)
}

type funcCodec[V any] struct {
	enc func(m *Mapper, v V) (any, error)
	dec func(m *Mapper, raw any) (V, error)
}

func (c funcCodec[V]) Encode(m *Mapper, v V) (any, error)   { return c.enc(m, v) }
func (c funcCodec[V]) Decode(m *Mapper, raw any) (V, error) { return c.dec(m, raw) }

func identity[V any](_ *Mapper, v V) (any, error) { return v, nil }

func typeError(want string, raw any) error {
	return fmt.Errorf("cannot decode %T into %s", raw, want)
}

// String stores a string as is.
func String() Codec[string] {
	return funcCodec[string]{enc: identity[string], dec: func(_ *Mapper, raw any) (string, error) {
		s, ok := raw.(string)
		if !ok {
			return "", typeError("string", raw)
		}
		return s, nil
	}}
}

// Bool stores a bool as is.
func Bool() Codec[bool] {
	return funcCodec[bool]{enc: identity[bool], dec: func(_ *Mapper, raw any) (bool, error) {
		b, ok := raw.(bool)
		if !ok {
			return false, typeError("bool", raw)
		}
		return b, nil
	}}
}

// Int64 stores a 64-bit integer. Decoding accepts any integer type and
// integral floats, as returned by JSON-ish stores.
func Int64() Codec[int64] {
	return funcCodec[int64]{enc: identity[int64], dec: func(_ *Mapper, raw any) (int64, error) {
		return toInt64(raw)
	}}
}

// Int stores an int as a 64-bit integer.
func Int() Codec[int] {
	return funcCodec[int]{
		enc: func(_ *Mapper, v int) (any, error) { return int64(v), nil },
		dec: func(_ *Mapper, raw any) (int, error) {
			n, err := toInt64(raw)
			if err != nil {
				return 0, err
			}
			if n < math.MinInt || n > math.MaxInt {
				return 0, fmt.Errorf("value %d overflows int", n)
			}
			return int(n), nil
		},
	}
}

// Float64 stores a float64. Integers decode into floats.
func Float64() Codec[float64] {
	return funcCodec[float64]{enc: identity[float64], dec: func(_ *Mapper, raw any) (float64, error) {
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int, int8, int16, int32, int64:
			n, _ := toInt64(v)
			return float64(n), nil
		}
		return 0, typeError("float64", raw)
	}}
}

// Bytes stores a byte slice as binary data.
func Bytes() Codec[[]byte] {
	return funcCodec[[]byte]{enc: identity[[]byte], dec: func(_ *Mapper, raw any) ([]byte, error) {
		switch v := raw.(type) {
		case nil:
			return nil, nil
		case []byte:
			return append([]byte(nil), v...), nil
		case primitive.Binary:
			return append([]byte(nil), v.Data...), nil
		}
		return nil, typeError("[]byte", raw)
	}}
}

// Time stores a time.Time. MongoDB keeps millisecond precision only.
func Time() Codec[time.Time] {
	return funcCodec[time.Time]{enc: identity[time.Time], dec: func(_ *Mapper, raw any) (time.Time, error) {
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case primitive.DateTime:
			return v.Time().UTC(), nil
		case string:
			return time.Parse(time.RFC3339Nano, v)
		}
		return time.Time{}, typeError("time.Time", raw)
	}}
}

// UUID stores a uuid in its canonical string form.
func UUID() Codec[uuid.UUID] {
	return funcCodec[uuid.UUID]{
		enc: func(_ *Mapper, v uuid.UUID) (any, error) { return v.String(), nil },
		dec: func(_ *Mapper, raw any) (uuid.UUID, error) {
			s, ok := raw.(string)
			if !ok {
				return uuid.Nil, typeError("uuid", raw)
			}
			return uuid.Parse(s)
		},
	}
}

// SliceOf stores a slice element by element. A stored null decodes to a nil slice.
func SliceOf[V any](elem Codec[V]) Codec[[]V] {
	return funcCodec[[]V]{
		enc: func(m *Mapper, vs []V) (any, error) {
			if vs == nil {
				return nil, nil
			}
			out := make([]any, len(vs))
			for i, v := range vs {
				enc, err := elem.Encode(m, v)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
				out[i] = enc
			}
			return out, nil
		},
		dec: func(m *Mapper, raw any) ([]V, error) {
			if raw == nil {
				return nil, nil
			}
			items, ok := asSlice(raw)
			if !ok {
				return nil, typeError("slice", raw)
			}
			out := make([]V, len(items))
			for i, item := range items {
				v, err := elem.Decode(m, item)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
				out[i] = v
			}
			return out, nil
		},
	}
}

// MapOf stores a string keyed map as a sub-document.
func MapOf[V any](elem Codec[V]) Codec[map[string]V] {
	return funcCodec[map[string]V]{
		enc: func(m *Mapper, vs map[string]V) (any, error) {
			if vs == nil {
				return nil, nil
			}
			out := make(Document, len(vs))
			for k, v := range vs {
				enc, err := elem.Encode(m, v)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", k, err)
				}
				out[k] = enc
			}
			return out, nil
		},
		dec: func(m *Mapper, raw any) (map[string]V, error) {
			if raw == nil {
				return nil, nil
			}
			doc, ok := asDocument(raw)
			if !ok {
				return nil, typeError("map", raw)
			}
			out := make(map[string]V, len(doc))
			for k, item := range doc {
				v, err := elem.Decode(m, item)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", k, err)
				}
				out[k] = v
			}
			return out, nil
		},
	}
}

// Pointer stores *V as V, or null for a nil pointer.
func Pointer[V any](elem Codec[V]) Codec[*V] {
	return funcCodec[*V]{
		enc: func(m *Mapper, v *V) (any, error) {
			if v == nil {
				return nil, nil
			}
			return elem.Encode(m, *v)
		},
		dec: func(m *Mapper, raw any) (*V, error) {
			if raw == nil {
				return nil, nil
			}
			v, err := elem.Decode(m, raw)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	}
}

// Nested stores a struct as a sub-document described by its own schema.
// Decoding starts from the zero value: fields missing from the stored
// sub-document stay zero.
func Nested[T any](s *Schema[T]) Codec[T] {
	return funcCodec[T]{
		enc: func(m *Mapper, v T) (any, error) {
			doc, err := s.encode(m, &v)
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
		dec: func(m *Mapper, raw any) (T, error) {
			var out T
			doc, ok := asDocument(raw)
			if !ok {
				return out, typeError(s.name, raw)
			}
			err := s.merge(m, &out, doc)
			return out, err
		},
	}
}

// Ref stores an actor reference as {"interface": ..., "id": ...}. The
// interface type must be registered with the mapper's RefRegistry.
func Ref() Codec[actor.Ref] {
	return funcCodec[actor.Ref]{
		enc: func(m *Mapper, ref actor.Ref) (any, error) {
			doc, err := m.refs.encode(ref)
			if err != nil || doc == nil {
				return nil, err
			}
			return doc, nil
		},
		dec: func(m *Mapper, raw any) (actor.Ref, error) {
			return m.refs.decode(raw)
		},
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	}
	return 0, typeError("integer", raw)
}
