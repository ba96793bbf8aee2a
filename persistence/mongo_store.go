package persistence

import (
	"context"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rickKoch/actorstate/document"
)

// MongoConnector connects with the official MongoDB driver.
type MongoConnector struct {
	// Configure, when set, tunes the client options before connecting
	// (timeouts, pool size, TLS).
	Configure func(*options.ClientOptions)
}

// ClientOptions builds the driver options for endpoints and creds. A single
// endpoint is dialed directly, a list is treated as a replica set seed list.
func (c MongoConnector) ClientOptions(endpoints []Endpoint, creds *Credentials) *options.ClientOptions {
	hosts := make([]string, len(endpoints))
	for i, ep := range endpoints {
		hosts[i] = ep.String()
	}
	opts := options.Client().SetHosts(hosts)
	if len(hosts) == 1 {
		opts.SetDirect(true)
	}
	if creds != nil {
		opts.SetAuth(options.Credential{
			AuthMechanism: creds.Mechanism,
			AuthSource:    creds.Database,
			Username:      creds.User,
			Password:      creds.Password,
		})
	}
	if c.Configure != nil {
		c.Configure(opts)
	}
	return opts
}

func (c MongoConnector) Connect(ctx context.Context, endpoints []Endpoint, creds *Credentials) (Conn, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("mongo: no endpoints")
	}
	client, err := mongo.Connect(ctx, c.ClientOptions(endpoints, creds))
	if err != nil {
		return nil, errors.Wrap(err, "mongo: connect")
	}
	return &mongoConn{client: client, dbs: xsync.NewMapOf[string, *mongoDatabase]()}, nil
}

type mongoConn struct {
	client *mongo.Client
	dbs    *xsync.MapOf[string, *mongoDatabase]
}

func (c *mongoConn) Database(name string) Database {
	db, _ := c.dbs.LoadOrCompute(name, func() *mongoDatabase {
		return &mongoDatabase{
			db:    c.client.Database(name),
			colls: xsync.NewMapOf[string, mongoCollection](),
		}
	})
	return db
}

func (c *mongoConn) Close(ctx context.Context) error {
	return errors.Wrap(c.client.Disconnect(ctx), "mongo: disconnect")
}

type mongoDatabase struct {
	db    *mongo.Database
	colls *xsync.MapOf[string, mongoCollection]
}

func (d *mongoDatabase) Collection(name string) Collection {
	coll, _ := d.colls.LoadOrCompute(name, func() mongoCollection {
		return mongoCollection{coll: d.db.Collection(name)}
	})
	return coll
}

type mongoCollection struct {
	coll *mongo.Collection
}

func byID(id string) bson.M { return bson.M{document.IDField: id} }

func (c mongoCollection) FindByID(ctx context.Context, id string) (document.Document, bool, error) {
	var m bson.M
	err := c.coll.FindOne(ctx, byID(id)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "mongo: find %s/%s", c.coll.Name(), id)
	}
	return document.Document(m), true, nil
}

func (c mongoCollection) UpsertByID(ctx context.Context, id string, doc document.Document) error {
	_, err := c.coll.ReplaceOne(ctx, byID(id), doc.WithID(id), options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "mongo: upsert %s/%s", c.coll.Name(), id)
}

func (c mongoCollection) RemoveByID(ctx context.Context, id string) error {
	_, err := c.coll.DeleteOne(ctx, byID(id))
	return errors.Wrapf(err, "mongo: remove %s/%s", c.coll.Name(), id)
}
