package actor

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidReference is returned for a reference without an interface type
// or without a usable id.
var ErrInvalidReference = errors.New("actorstate: invalid actor reference")

// Key is the identity value of an actor instance. String returns its
// canonical form: the same key always renders identically and two distinct
// keys of the same kind never render the same.
type Key interface {
	String() string
	isKey()
}

// StringKey is a free form string id.
type StringKey string

func (k StringKey) String() string { return string(k) }
func (StringKey) isKey()           {}

// IntKey is a numeric id rendered in base 10.
type IntKey int64

func (k IntKey) String() string { return strconv.FormatInt(int64(k), 10) }
func (IntKey) isKey()           {}

// UUIDKey renders in the canonical lower-case hyphenated form.
type UUIDKey uuid.UUID

func (k UUIDKey) String() string { return uuid.UUID(k).String() }
func (UUIDKey) isKey()           {}

// CompositeKey is an ordered tuple of keys. Parts are escaped before being
// joined so that e.g. ("a/b") and ("a", "b") stay distinct.
type CompositeKey []Key

const (
	compositeSep    = '/'
	compositeEscape = '\\'
)

func (k CompositeKey) String() string {
	var b strings.Builder
	for i, part := range k {
		if i > 0 {
			b.WriteByte(compositeSep)
		}
		if part == nil {
			continue
		}
		for _, r := range part.String() {
			if r == compositeSep || r == compositeEscape {
				b.WriteByte(compositeEscape)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (CompositeKey) isKey() {}

// KeyParser rebuilds a Key from its canonical form.
type KeyParser func(s string) (Key, error)

// ParseStringKey is the KeyParser for StringKey.
func ParseStringKey(s string) (Key, error) {
	return StringKey(s), nil
}

// ParseIntKey is the KeyParser for IntKey.
func ParseIntKey(s string) (Key, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return IntKey(n), nil
}

// ParseUUIDKey is the KeyParser for UUIDKey.
func ParseUUIDKey(s string) (Key, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return UUIDKey(u), nil
}

// ParseCompositeKey returns a KeyParser for a CompositeKey whose parts are
// parsed, in order, by parts.
func ParseCompositeKey(parts ...KeyParser) KeyParser {
	return func(s string) (Key, error) {
		raw, err := splitComposite(s)
		if err != nil {
			return nil, err
		}
		if len(raw) != len(parts) {
			return nil, errors.New("actorstate: composite key has " + strconv.Itoa(len(raw)) +
				" parts, want " + strconv.Itoa(len(parts)))
		}
		out := make(CompositeKey, len(parts))
		for i, p := range parts {
			k, err := p(raw[i])
			if err != nil {
				return nil, err
			}
			out[i] = k
		}
		return out, nil
	}
}

// errDanglingEscape is returned for a composite id ending in a lone escape.
var errDanglingEscape = errors.New("actorstate: composite key ends with a dangling escape")

func splitComposite(s string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == compositeEscape:
			escaped = true
		case r == compositeSep:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		return nil, errDanglingEscape
	}
	return append(out, cur.String()), nil
}

// Ref identifies an actor instance: its declared interface type and its id.
type Ref struct {
	Interface string
	ID        Key
}

// NewRef is a convenience constructor.
func NewRef(iface string, id Key) Ref {
	return Ref{Interface: iface, ID: id}
}

// String renders the reference for logs and error messages.
func (r Ref) String() string {
	if r.ID == nil {
		return r.Interface + "/<nil>"
	}
	return r.Interface + "/" + r.ID.String()
}
