package sqlmongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Row is one result of a query: the main collection's document and, for
// joined queries, the joined document paired with it. The joined document
// is empty when the main document had no matches.
type Row struct {
	aliases []string
	docs    map[string]bson.D
}

func newRow(main string, doc bson.D) Row {
	return Row{[]string{main}, map[string]bson.D{main: doc}}
}

func joinedRow(main string, doc bson.D, join string, joined bson.D) Row {
	return Row{[]string{main, join}, map[string]bson.D{main: doc, join: joined}}
}

func (r Row) joined() bool {
	return len(r.aliases) > 1
}

// Doc returns the document of the collection with the given alias.
func (r Row) Doc(alias string) bson.D {
	return r.docs[alias]
}

// Get returns the value at a dotted path. In a joined row the first segment
// may name a collection alias; other paths are read from the main document.
// Missing values are nil.
func (r Row) Get(path string) (any, error) {
	p := ParsePath(path)
	main := r.docs[r.aliases[0]]
	if !r.joined() {
		return Lookup(main, p)
	}
	if doc, ok := r.docs[p.Head()]; ok && len(p) > 1 {
		return Lookup(doc, p.Tail())
	}
	return Lookup(main, p)
}

// Keys returns the top-level keys of the row's documents. Keys are qualified
// with the alias in joined rows.
func (r Row) Keys() []string {
	var keys []string
	for _, alias := range r.aliases {
		for _, e := range r.docs[alias] {
			if r.joined() {
				keys = append(keys, alias+"."+e.Key)
			} else {
				keys = append(keys, e.Key)
			}
		}
	}
	return keys
}

// Values returns the values of the given fields in order.
func (r Row) Values(fields []SelectedField) ([]any, error) {
	vals := make([]any, len(fields))
	for i, f := range fields {
		v, err := r.Get(f.Path.String())
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (r Row) String() string {
	b := strings.Builder{}
	b.WriteString("Row {")
	for i, alias := range r.aliases {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s=%v", alias, r.docs[alias]))
	}
	b.WriteString("}")
	return b.String()
}

// Lookup walks a path through nested documents. It returns nil if a segment
// is missing or null and fails if it meets a value that isn't a document.
func Lookup(doc any, path Path) (any, error) {
	cur := doc
	for i, key := range path {
		var ok bool
		switch d := cur.(type) {
		case nil:
			return nil, nil
		case bson.D:
			cur, ok = lookupD(d, key)
		case bson.M:
			cur, ok = d[key]
		case map[string]any:
			cur, ok = d[key]
		default:
			return nil, &SemanticError{Msg: fmt.Sprintf("can't read %s: %s is %T, not a document", path, path[:i], cur)}
		}
		if !ok {
			return nil, nil
		}
	}
	return cur, nil
}

func lookupD(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
