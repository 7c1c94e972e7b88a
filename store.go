package sqlmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Database is a document store addressed by collection name.
type Database interface {
	Collection(name string) Collection
}

// Collection runs finds against one collection.
type Collection interface {
	Find(ctx context.Context, spec FindSpec) (Cursor, error)
}

// FindSpec is a find operation. Nil documents and a zero limit mean no
// filter, projection, sort or limit.
type FindSpec struct {
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Limit      int64
}

// Cursor is an open result set. Next returns done=true when there are no
// more documents. Close must be called once the cursor isn't needed.
type Cursor interface {
	Next(ctx context.Context) (bson.D, bool, error)
	Close(ctx context.Context) error
}
