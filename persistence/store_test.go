package persistence

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/rickKoch/actorstate/document"
)

// exerciseCollection checks the find/upsert/remove contract shared by all stores.
func exerciseCollection(t *testing.T, conn Conn) {
	t.Helper()
	ctx := context.Background()
	coll := conn.Database("game").Collection("Player")

	_, found, err := coll.FindByID(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, coll.UpsertByID(ctx, "1", document.Document{"name": "ada", "level": int64(3)}))
	doc, found, err := coll.FindByID(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", doc[document.IDField])
	require.Equal(t, "ada", doc["name"])

	// full replace: "level" must not survive
	require.NoError(t, coll.UpsertByID(ctx, "1", document.Document{"name": "bob"}))
	doc, _, err = coll.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "bob", doc["name"])
	require.NotContains(t, doc, "level")

	// same id in another collection or database is independent
	_, found, err = conn.Database("game").Collection("Guild").FindByID(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = conn.Database("other").Collection("Player").FindByID(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, coll.RemoveByID(ctx, "1"))
	require.NoError(t, coll.RemoveByID(ctx, "1"))
	_, found, err = coll.FindByID(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryCollection(t *testing.T) {
	c := NewMemoryConnector()
	conn, err := c.Connect(context.Background(), nil, nil)
	require.NoError(t, err)
	exerciseCollection(t, conn)
	require.Equal(t, 0, c.Len())
}

func TestMemoryCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryConnector()
	conn, _ := c.Connect(ctx, nil, nil)
	coll := conn.Database("game").Collection("Player")

	tags := []any{"a"}
	in := document.Document{"tags": tags}
	require.NoError(t, coll.UpsertByID(ctx, "1", in))
	tags[0] = "mutated"
	require.NotContains(t, in, document.IDField)

	out, _, err := coll.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []any{"a"}, out["tags"])

	out["tags"].([]any)[0] = "again"
	raw, ok, err := c.Document("game", "Player", "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []any{"a"}, raw["tags"])
}

func TestMemoryClosedConnection(t *testing.T) {
	ctx := context.Background()
	conn, _ := NewMemoryConnector().Connect(ctx, nil, nil)
	coll := conn.Database("game").Collection("Player")
	require.NoError(t, conn.Close(ctx))

	_, _, err := coll.FindByID(ctx, "1")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, coll.UpsertByID(ctx, "1", document.Document{}), ErrClosed)
	require.ErrorIs(t, coll.RemoveByID(ctx, "1"), ErrClosed)
}

func TestPebbleCollection(t *testing.T) {
	conn, err := PebbleConnector{Path: "state", FS: vfs.NewMem()}.Connect(context.Background(), nil, nil)
	require.NoError(t, err)
	defer conn.Close(context.Background())
	exerciseCollection(t, conn)
}

func TestPebblePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	c := PebbleConnector{Path: t.TempDir()}

	conn, err := c.Connect(ctx, nil, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Database("game").Collection("Player").UpsertByID(ctx, "7", document.Document{"level": int64(9)}))
	require.NoError(t, conn.Close(ctx))
	require.NoError(t, conn.Close(ctx))

	_, _, err = conn.Database("game").Collection("Player").FindByID(ctx, "7")
	require.True(t, errors.Is(err, ErrClosed))

	conn, err = c.Connect(ctx, nil, nil)
	require.NoError(t, err)
	defer conn.Close(ctx)
	doc, found, err := conn.Database("game").Collection("Player").FindByID(ctx, "7")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(9), doc["level"])
}

func TestPebbleRequiresPath(t *testing.T) {
	_, err := PebbleConnector{}.Connect(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestMongoClientOptions(t *testing.T) {
	c := MongoConnector{}
	opts := c.ClientOptions([]Endpoint{{Host: "h1", Port: 1000}}, nil)
	require.Equal(t, []string{"h1:1000"}, opts.Hosts)
	require.NotNil(t, opts.Direct)
	require.True(t, *opts.Direct)
	require.Nil(t, opts.Auth)

	opts = c.ClientOptions(
		[]Endpoint{{Host: "h1", Port: 1000}, {Host: "::1", Port: 2000}},
		&Credentials{User: "u", Password: "p", Database: "game"},
	)
	require.Equal(t, []string{"h1:1000", "[::1]:2000"}, opts.Hosts)
	require.Nil(t, opts.Direct)
	require.Equal(t, "u", opts.Auth.Username)
	require.Equal(t, "game", opts.Auth.AuthSource)
}

// TestMongoCollection runs against a live server when ACTORSTATE_MONGO_HOSTS
// is set, e.g. "localhost:27017".
func TestMongoCollection(t *testing.T) {
	hosts := os.Getenv("ACTORSTATE_MONGO_HOSTS")
	if hosts == "" {
		t.Skip("ACTORSTATE_MONGO_HOSTS not set")
	}
	var eps []Endpoint
	for _, h := range strings.Split(hosts, ",") {
		host, port, ok := strings.Cut(h, ":")
		require.True(t, ok)
		p, err := strconv.Atoi(port)
		require.NoError(t, err)
		eps = append(eps, Endpoint{Host: host, Port: p})
	}
	ctx := context.Background()
	conn, err := MongoConnector{}.Connect(ctx, eps, nil)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_ = conn.Database("game").Collection("Player").RemoveByID(ctx, "1")
	exerciseCollection(t, conn)
}
