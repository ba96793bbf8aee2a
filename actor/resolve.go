package actor

import "strings"

// Resolve derives where the state of ref lives: the collection is the
// declared interface name and the document id is the canonical key.
func Resolve(ref Ref) (collection, documentID string, err error) {
	if strings.TrimSpace(ref.Interface) == "" || !validKey(ref.ID) {
		return "", "", ErrInvalidReference
	}
	documentID = ref.ID.String()
	if documentID == "" {
		return "", "", ErrInvalidReference
	}
	return ref.Interface, documentID, nil
}

func validKey(k Key) bool {
	switch k := k.(type) {
	case nil:
		return false
	case CompositeKey:
		if len(k) == 0 {
			return false
		}
		for _, part := range k {
			if !validKey(part) {
				return false
			}
		}
	}
	return true
}
