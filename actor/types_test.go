package actor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestResolveUsesInterfaceAndCanonicalID(t *testing.T) {
	coll, id, err := Resolve(NewRef("Player", IntKey(42)))
	require.NoError(t, err)
	require.Equal(t, "Player", coll)
	require.Equal(t, "42", id)

	u := uuid.MustParse("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	_, id, err = Resolve(NewRef("Player", UUIDKey(u)))
	require.NoError(t, err)
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id)
}

func TestResolveIsStableAndDistinct(t *testing.T) {
	seen := make(map[string]int64)
	for i := int64(-50); i < 50; i++ {
		_, a, err := Resolve(NewRef("Counter", IntKey(i)))
		require.NoError(t, err)
		_, b, err := Resolve(NewRef("Counter", IntKey(i)))
		require.NoError(t, err)
		require.Equal(t, a, b)
		if prev, ok := seen[a]; ok {
			t.Fatalf("ids %d and %d both resolved to %q", prev, i, a)
		}
		seen[a] = i
	}
}

func TestResolveRejectsInvalidReferences(t *testing.T) {
	cases := []Ref{
		{},
		{Interface: "Player"},
		{Interface: "  ", ID: StringKey("x")},
		{Interface: "Player", ID: StringKey("")},
		{Interface: "Player", ID: CompositeKey{}},
		{Interface: "Player", ID: CompositeKey{StringKey("a"), nil}},
	}
	for i, ref := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, _, err := Resolve(ref)
			require.True(t, errors.Is(err, ErrInvalidReference), "got %v", err)
		})
	}
}

func TestCompositeKeysDoNotCollide(t *testing.T) {
	a := CompositeKey{StringKey("a/b")}
	b := CompositeKey{StringKey("a"), StringKey("b")}
	c := CompositeKey{StringKey(`a\`), StringKey("b")}
	require.NotEqual(t, a.String(), b.String())
	require.NotEqual(t, b.String(), c.String())
	require.NotEqual(t, a.String(), c.String())
}

func TestParseCompositeRoundTrip(t *testing.T) {
	parse := ParseCompositeKey(ParseStringKey, ParseIntKey)
	in := CompositeKey{StringKey(`re/gion\1`), IntKey(7)}
	out, err := parse(in.String())
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = parse("only-one")
	require.Error(t, err)

	_, err = ParseCompositeKey(ParseStringKey)(`a\`)
	require.ErrorIs(t, err, errDanglingEscape)
	_, err = ParseCompositeKey(ParseStringKey, ParseStringKey)(`a/b\`)
	require.ErrorIs(t, err, errDanglingEscape)
}

func TestParseScalarKeys(t *testing.T) {
	k, err := ParseIntKey("-12")
	require.NoError(t, err)
	require.Equal(t, IntKey(-12), k)

	_, err = ParseIntKey("twelve")
	require.Error(t, err)

	_, err = ParseUUIDKey("not-a-uuid")
	require.Error(t, err)
}

func TestRefString(t *testing.T) {
	a := NewRef("Room", CompositeKey{StringKey("eu"), IntKey(1)})
	require.Equal(t, "Room/eu/1", a.String())
	require.Equal(t, "Room/<nil>", Ref{Interface: "Room"}.String())
}
