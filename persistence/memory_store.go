package persistence

import (
	"context"
	"sync/atomic"

	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/rickKoch/actorstate/document"
)

// MemoryConnector keeps documents in process memory. Data outlives
// individual connections, so a restarted extension sees earlier writes.
type MemoryConnector struct {
	docs *xsync.MapOf[string, document.Document]
}

func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{docs: xsync.NewMapOf[string, document.Document]()}
}

func (c *MemoryConnector) Connect(_ context.Context, _ []Endpoint, _ *Credentials) (Conn, error) {
	return &memoryConn{owner: c}, nil
}

// Document returns a copy of the raw stored document, including its id field.
func (c *MemoryConnector) Document(database, collection, id string) (document.Document, bool, error) {
	doc, ok := c.docs.Load(storeKey(database, collection, id))
	if !ok {
		return nil, false, nil
	}
	out, err := copyDocument(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Len is the number of stored documents across all databases.
func (c *MemoryConnector) Len() int { return c.docs.Size() }

type memoryConn struct {
	owner  *MemoryConnector
	closed atomic.Bool
}

func (c *memoryConn) Database(name string) Database {
	return memoryDatabase{conn: c, name: name}
}

func (c *memoryConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

type memoryDatabase struct {
	conn *memoryConn
	name string
}

func (d memoryDatabase) Collection(name string) Collection {
	return memoryCollection{conn: d.conn, database: d.name, name: name}
}

type memoryCollection struct {
	conn     *memoryConn
	database string
	name     string
}

func (c memoryCollection) FindByID(_ context.Context, id string) (document.Document, bool, error) {
	if c.conn.closed.Load() {
		return nil, false, ErrClosed
	}
	doc, ok := c.conn.owner.docs.Load(storeKey(c.database, c.name, id))
	if !ok {
		return nil, false, nil
	}
	out, err := copyDocument(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c memoryCollection) UpsertByID(_ context.Context, id string, doc document.Document) error {
	if c.conn.closed.Load() {
		return ErrClosed
	}
	stored, err := copyDocument(doc.WithID(id))
	if err != nil {
		return err
	}
	c.conn.owner.docs.Store(storeKey(c.database, c.name, id), stored)
	return nil
}

func (c memoryCollection) RemoveByID(_ context.Context, id string) error {
	if c.conn.closed.Load() {
		return ErrClosed
	}
	c.conn.owner.docs.Delete(storeKey(c.database, c.name, id))
	return nil
}

func copyDocument(doc document.Document) (document.Document, error) {
	cp, err := copystructure.Copy(doc)
	if err != nil {
		return nil, errors.Wrap(err, "memory: copy document")
	}
	return cp.(document.Document), nil
}

// storeKey joins the three coordinates with NUL, which cannot appear in
// collection or database names.
func storeKey(database, collection, id string) string {
	return database + "\x00" + collection + "\x00" + id
}
