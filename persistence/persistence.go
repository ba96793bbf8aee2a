// Package persistence defines the connection collaborator used by the
// storage extension and ships MongoDB, Pebble and in-memory implementations.
package persistence

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/rickKoch/actorstate/document"
)

// ErrClosed is returned by collections used after their connection closed.
var ErrClosed = errors.New("actorstate: connection closed")

// Endpoint is one host:port pair of the store.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials authenticate against Database.
type Credentials struct {
	User      string
	Password  string
	Database  string
	Mechanism string
}

// Connector opens connections. creds is nil when no authentication is configured.
type Connector interface {
	Connect(ctx context.Context, endpoints []Endpoint, creds *Credentials) (Conn, error)
}

// Conn is a pooled client, safe for concurrent use until Close.
type Conn interface {
	Database(name string) Database
	Close(ctx context.Context) error
}

// Database hands out collection handles.
type Database interface {
	Collection(name string) Collection
}

// Collection stores one document per id.
type Collection interface {
	// FindByID returns the stored document, or false when there is none.
	FindByID(ctx context.Context, id string) (document.Document, bool, error)
	// UpsertByID inserts doc or fully replaces the stored one.
	UpsertByID(ctx context.Context, id string, doc document.Document) error
	// RemoveByID deletes the document; a missing document is not an error.
	RemoveByID(ctx context.Context, id string) error
}
