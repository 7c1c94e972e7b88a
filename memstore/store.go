// Package memstore is an in-memory document store. It runs finds with the
// same filter, projection, sort and limit rules as MongoDB for the subset of
// operators the query language produces.
package memstore

import (
	"context"
	"sync"

	"github.com/gaswelder/sqlmongo"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Store holds collections of documents.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]bson.D
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: map[string][]bson.D{}}
}

// Insert appends documents to a collection, creating it if needed.
func (s *Store) Insert(name string, docs ...bson.D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = append(s.collections[name], docs...)
}

// Collection returns a handle to a collection. Missing collections are empty.
func (s *Store) Collection(name string) sqlmongo.Collection {
	return &collection{s, name}
}

func (s *Store) snapshot(name string) []bson.D {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[name]
	return docs[:len(docs):len(docs)]
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Find(ctx context.Context, spec sqlmongo.FindSpec) (sqlmongo.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matched []bson.D
	for _, doc := range c.store.snapshot(c.name) {
		ok, err := match(doc, spec.Filter)
		if err != nil {
			return nil, errors.Wrapf(err, "bad filter for %s", c.name)
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	if len(spec.Sort) > 0 {
		sortDocs(matched, spec.Sort)
	}
	if spec.Limit > 0 && int64(len(matched)) > spec.Limit {
		matched = matched[:spec.Limit]
	}
	proj, err := newProjection(spec.Projection)
	if err != nil {
		return nil, errors.Wrapf(err, "bad projection for %s", c.name)
	}
	docs := make([]bson.D, len(matched))
	for i, doc := range matched {
		docs[i] = proj.apply(doc)
	}
	return &cursor{docs: docs}, nil
}

type cursor struct {
	docs   []bson.D
	pos    int
	closed bool
}

func (c *cursor) Next(ctx context.Context) (bson.D, bool, error) {
	if c.closed {
		return nil, false, errors.New("cursor is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if c.pos >= len(c.docs) {
		return nil, true, nil
	}
	doc := c.docs[c.pos]
	c.pos++
	return doc, false, nil
}

func (c *cursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}
