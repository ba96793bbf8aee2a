package persistence

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/rickKoch/actorstate/document"
)

// PebbleConnector stores documents BSON-encoded in an embedded Pebble
// database under Path. Endpoints and credentials are ignored.
type PebbleConnector struct {
	Path string
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

func (c PebbleConnector) Connect(_ context.Context, _ []Endpoint, _ *Credentials) (Conn, error) {
	if c.Path == "" {
		return nil, errors.New("pebble: empty path")
	}
	opts := &pebble.Options{FS: c.FS}
	db, err := pebble.Open(c.Path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: open %s", c.Path)
	}
	return &pebbleConn{db: db}, nil
}

type pebbleConn struct {
	db     *pebble.DB
	closed atomic.Bool
}

func (c *pebbleConn) Database(name string) Database {
	return pebbleDatabase{conn: c, name: name}
}

func (c *pebbleConn) Close(context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Wrap(c.db.Close(), "pebble: close")
}

type pebbleDatabase struct {
	conn *pebbleConn
	name string
}

func (d pebbleDatabase) Collection(name string) Collection {
	return pebbleCollection{conn: d.conn, database: d.name, name: name}
}

type pebbleCollection struct {
	conn     *pebbleConn
	database string
	name     string
}

func (c pebbleCollection) key(id string) []byte {
	return []byte(storeKey(c.database, c.name, id))
}

func (c pebbleCollection) FindByID(_ context.Context, id string) (document.Document, bool, error) {
	if c.conn.closed.Load() {
		return nil, false, ErrClosed
	}
	val, closer, err := c.conn.db.Get(c.key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "pebble: get %s/%s", c.name, id)
	}
	raw := append([]byte(nil), val...)
	_ = closer.Close()

	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, false, errors.Wrapf(err, "pebble: decode %s/%s", c.name, id)
	}
	return document.Document(m), true, nil
}

func (c pebbleCollection) UpsertByID(_ context.Context, id string, doc document.Document) error {
	if c.conn.closed.Load() {
		return ErrClosed
	}
	raw, err := bson.Marshal(doc.WithID(id))
	if err != nil {
		return errors.Wrapf(err, "pebble: encode %s/%s", c.name, id)
	}
	return errors.Wrapf(c.conn.db.Set(c.key(id), raw, pebble.Sync), "pebble: set %s/%s", c.name, id)
}

func (c pebbleCollection) RemoveByID(_ context.Context, id string) error {
	if c.conn.closed.Load() {
		return ErrClosed
	}
	return errors.Wrapf(c.conn.db.Delete(c.key(id), pebble.Sync), "pebble: delete %s/%s", c.name, id)
}
