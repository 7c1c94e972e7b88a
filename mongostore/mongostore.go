// Package mongostore runs queries against a MongoDB server.
package mongostore

import (
	"context"

	"github.com/gaswelder/sqlmongo"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Store is a connected database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect connects to the database named in the URI path. Credentials in
// the URI are used to authenticate.
func Connect(ctx context.Context, uri string) (*Store, error) {
	name, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &sqlmongo.StoreError{Op: "connect", Database: name, Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, &sqlmongo.StoreError{Op: "ping", Database: name, Err: err}
	}
	return &Store{client, client.Database(name)}, nil
}

// DatabaseName returns the database named in a connection URI.
func DatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", errors.Wrap(err, "invalid uri")
	}
	if cs.Database == "" {
		return "", errors.New("uri has no database name")
	}
	return cs.Database, nil
}

// Disconnect closes the connection.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Collection(name string) sqlmongo.Collection {
	return &collection{s.db.Collection(name)}
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Find(ctx context.Context, spec sqlmongo.FindSpec) (sqlmongo.Cursor, error) {
	filter := spec.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := c.coll.Find(ctx, filter, findOptions(spec))
	if err != nil {
		return nil, err
	}
	return &cursor{cur}, nil
}

func findOptions(spec sqlmongo.FindSpec) *options.FindOptions {
	opts := options.Find()
	if spec.Projection != nil {
		opts.SetProjection(spec.Projection)
	}
	if spec.Sort != nil {
		opts.SetSort(spec.Sort)
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	return opts
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) (bson.D, bool, error) {
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	var doc bson.D
	if err := c.cur.Decode(&doc); err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
