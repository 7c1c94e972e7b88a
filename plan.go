package sqlmongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// QueryPlan is the parsed form of a query, ready to run against a document
// store.
type QueryPlan struct {
	Main CollectionInfo
	Join *CollectionInfo
	// Fields is the SELECT list in order. It is empty for "select *".
	Fields []SelectedField
	Sort   []SortField
	Limit  struct {
		Set   bool
		Value int
	}
}

// SelectedField is one entry of the SELECT list.
type SelectedField struct {
	Alias string
	Path  Path
}

// SortField is one entry of ORDER BY. Paths are local to the main collection.
type SortField struct {
	Path Path
	Desc bool
}

// CollectionInfo describes what is read from one collection.
type CollectionInfo struct {
	Alias string
	Name  string
	// Conditions are ANDed. Paths are local to the collection.
	Conditions []Condition
	Projection Projection
}

// Operator is a comparison operator.
type Operator int

const (
	Eq Operator = iota
	Ne
	Lt
	Lte
	Gt
	Gte
)

var operators = map[string]Operator{
	"=":  Eq,
	"!=": Ne,
	"<":  Lt,
	"<=": Lte,
	">":  Gt,
	">=": Gte,
}

// Mongo returns the query operator name.
func (op Operator) Mongo() string {
	switch op {
	case Eq:
		return "$eq"
	case Ne:
		return "$ne"
	case Lt:
		return "$lt"
	case Lte:
		return "$lte"
	case Gt:
		return "$gt"
	case Gte:
		return "$gte"
	default:
		panic(fmt.Errorf("unexpected operator %d", op))
	}
}

// Condition is "path operator value".
type Condition struct {
	Path  Path
	Op    Operator
	Value Value
}

// Filter renders the conditions as a filter document. Equality is a bare
// value; other operators are operator documents. Conditions on the same path
// are merged into one operator document; an operator repeated on a path is
// kept in a top-level $and.
//
// FieldRef values are looked up in outer, a document of the collection
// aliased outerAlias. Missing fields become nulls.
func (c *CollectionInfo) Filter(outerAlias string, outer bson.D) (bson.D, error) {
	return c.render(func(v Value) (any, error) {
		return substitute(v, outerAlias, outer)
	})
}

// Template renders the filter with field references left in place as
// FieldRef values.
func (c *CollectionInfo) Template() bson.D {
	filter, _ := c.render(func(v Value) (any, error) {
		if x, ok := native(v); ok {
			return x, nil
		}
		return v, nil
	})
	return filter
}

func (c *CollectionInfo) render(resolve func(Value) (any, error)) (bson.D, error) {
	counts := map[string]int{}
	for _, cond := range c.Conditions {
		counts[cond.Path.String()]++
	}
	filter := bson.D{}
	slots := map[string]int{}
	// A repeated operator on a path can't share the path's operator
	// document, so it goes to a top-level $and.
	var rest bson.A
	for _, cond := range c.Conditions {
		v, err := resolve(cond.Value)
		if err != nil {
			return nil, err
		}
		key := cond.Path.String()
		if cond.Op == Eq && counts[key] == 1 {
			filter = append(filter, bson.E{Key: key, Value: v})
			continue
		}
		i, ok := slots[key]
		if !ok {
			i = len(filter)
			slots[key] = i
			filter = append(filter, bson.E{Key: key, Value: bson.D{}})
		}
		ops := filter[i].Value.(bson.D)
		if hasKey(ops, cond.Op.Mongo()) {
			rest = append(rest, bson.D{{Key: key, Value: bson.D{{Key: cond.Op.Mongo(), Value: v}}}})
			continue
		}
		filter[i].Value = append(ops, bson.E{Key: cond.Op.Mongo(), Value: v})
	}
	if len(rest) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: rest})
	}
	return filter, nil
}

// References returns the FieldRef paths used by the conditions.
func (c *CollectionInfo) References() []Path {
	var refs []Path
	for _, cond := range c.Conditions {
		if ref, ok := cond.Value.(FieldRef); ok {
			refs = append(refs, Path(ref))
		}
	}
	return refs
}

func substitute(v Value, outerAlias string, outer bson.D) (any, error) {
	if x, ok := native(v); ok {
		return x, nil
	}
	ref := Path(v.(FieldRef))
	local, ok := ref.trimAlias(outerAlias)
	if !ok || outer == nil {
		return nil, &SemanticError{Msg: fmt.Sprintf("field reference %s has no outer row to read from", ref)}
	}
	return Lookup(outer, local)
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Projection is an ordered set of paths marked for inclusion or exclusion.
// An empty projection returns whole documents.
type Projection []ProjectionField

// ProjectionField is one entry of a projection.
type ProjectionField struct {
	Path    string
	Include bool
}

// touches reports whether the projection mentions path or a field under it.
func (p Projection) touches(path string) bool {
	for _, f := range p {
		if f.Path == path || strings.HasPrefix(f.Path, path+".") {
			return true
		}
	}
	return false
}

func (p Projection) set(path string, include bool) Projection {
	for i := range p {
		if p[i].Path == path {
			p[i].Include = include
			return p
		}
	}
	return append(p, ProjectionField{path, include})
}

// cover includes path unless it or one of its parents is already included.
// Included children of path are replaced by it.
func (p Projection) cover(path string) Projection {
	var r Projection
	placed := false
	place := func() {
		if !placed {
			r = append(r, ProjectionField{path, true})
			placed = true
		}
	}
	for _, f := range p {
		switch {
		case f.Include && (f.Path == path || strings.HasPrefix(path, f.Path+".")):
			return p
		case f.Path == path:
			place()
		case f.Include && strings.HasPrefix(f.Path, path+"."):
			place()
		default:
			r = append(r, f)
		}
	}
	place()
	return r
}

// Doc renders the projection as a document, or nil if it's empty.
func (p Projection) Doc() bson.D {
	if len(p) == 0 {
		return nil
	}
	d := make(bson.D, len(p))
	for i, f := range p {
		v := 0
		if f.Include {
			v = 1
		}
		d[i] = bson.E{Key: f.Path, Value: v}
	}
	return d
}

// SortDoc renders ORDER BY as a sort document, or nil without one.
func (q *QueryPlan) SortDoc() bson.D {
	if len(q.Sort) == 0 {
		return nil
	}
	d := make(bson.D, len(q.Sort))
	for i, s := range q.Sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d[i] = bson.E{Key: s.Path.String(), Value: dir}
	}
	return d
}

// AllFields reports whether the query is "select *".
func (q *QueryPlan) AllFields() bool {
	return len(q.Fields) == 0
}
