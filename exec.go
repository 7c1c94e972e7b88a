package sqlmongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
)

// Engine parses queries and runs them against a document store.
type Engine struct {
	db        Database
	log       *slog.Logger
	parseOpts []ParseOption
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Every find is logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithParseOptions sets the options ExecString parses queries with.
func WithParseOptions(opts ...ParseOption) Option {
	return func(e *Engine) {
		e.parseOpts = opts
	}
}

// New returns a new engine over the given database.
func New(db Database, opts ...Option) *Engine {
	e := &Engine{
		db:  db,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RowsStream is the lazy result of a query. It must be closed if it isn't
// read to the end.
type RowsStream struct {
	// Fields is the select list. It is empty for "select *".
	Fields []SelectedField
	rows   *Stream[Row]
}

// Next returns the next row, or done=true after the last one.
func (s *RowsStream) Next() (Row, bool, error) {
	return s.rows.Next()
}

// Close releases the open cursors.
func (s *RowsStream) Close() error {
	return s.rows.Close()
}

// Consume reads all remaining rows.
func (s *RowsStream) Consume() ([]Row, error) {
	return s.rows.Consume()
}

// ExecString parses a query and runs it.
func (e *Engine) ExecString(ctx context.Context, query string) (*RowsStream, error) {
	plan, err := Parse(query, e.parseOpts...)
	if err != nil {
		return nil, err
	}
	return e.Exec(ctx, plan)
}

// Exec runs a query plan. Sort and limit apply to the main collection. With
// a join, each main document is followed by one find on the joined
// collection.
func (e *Engine) Exec(ctx context.Context, plan *QueryPlan) (*RowsStream, error) {
	filter, err := plan.Main.Filter("", nil)
	if err != nil {
		return nil, err
	}
	spec := FindSpec{
		Filter:     filter,
		Projection: plan.Main.Projection.Doc(),
		Sort:       plan.SortDoc(),
	}
	if plan.Limit.Set {
		spec.Limit = int64(plan.Limit.Value)
	}
	outer, err := e.find(ctx, &plan.Main, spec)
	if err != nil {
		return nil, err
	}

	var rows *Stream[Row]
	if plan.Join == nil {
		rows = mapStream(outer, func(doc bson.D) (Row, error) {
			return newRow(plan.Main.Alias, doc), nil
		})
	} else {
		rows = e.join(ctx, plan, outer)
	}
	return &RowsStream{Fields: plan.Fields, rows: rows}, nil
}

func (e *Engine) find(ctx context.Context, c *CollectionInfo, spec FindSpec) (*Stream[bson.D], error) {
	e.log.Debug("find", "query", formatFind(c.Name, spec))
	cur, err := e.db.Collection(c.Name).Find(ctx, spec)
	if err != nil {
		return nil, &StoreError{Op: "find", Collection: c.Name, Err: err}
	}
	return cursorStream(ctx, c.Name, cur), nil
}

type joinState int

const (
	awaitOuter joinState = iota
	drainInner
	exhausted
)

// join pairs every outer document with the documents of the joined
// collection that match the join conditions. An outer document without
// matches is paired with an empty document. Only one inner cursor is open
// at a time.
func (e *Engine) join(ctx context.Context, plan *QueryPlan, outer *Stream[bson.D]) *Stream[Row] {
	state := awaitOuter
	var current bson.D
	var inner *Stream[bson.D]
	matched := false

	closeAll := func() error {
		state = exhausted
		var err error
		if inner != nil {
			err = inner.Close()
			inner = nil
		}
		if oerr := outer.Close(); err == nil {
			err = oerr
		}
		return err
	}
	fail := func(err error) (Row, bool, error) {
		closeAll()
		return Row{}, false, err
	}
	pair := func(joined bson.D) Row {
		return joinedRow(plan.Main.Alias, current, plan.Join.Alias, joined)
	}

	gen := func() (Row, bool, error) {
		for {
			switch state {
			case exhausted:
				return Row{}, true, nil

			case awaitOuter:
				doc, done, err := outer.Next()
				if err != nil {
					return fail(err)
				}
				if done {
					state = exhausted
					continue
				}
				filter, err := plan.Join.Filter(plan.Main.Alias, doc)
				if err != nil {
					return fail(err)
				}
				inner, err = e.find(ctx, plan.Join, FindSpec{
					Filter:     filter,
					Projection: plan.Join.Projection.Doc(),
				})
				if err != nil {
					return fail(err)
				}
				current = doc
				matched = false
				state = drainInner

			case drainInner:
				doc, done, err := inner.Next()
				if err != nil {
					return fail(err)
				}
				if !done {
					matched = true
					return pair(doc), false, nil
				}
				inner = nil
				state = awaitOuter
				if !matched {
					return pair(bson.D{}), false, nil
				}
			}
		}
	}
	return &Stream[Row]{gen, closeAll}
}
