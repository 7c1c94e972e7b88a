package memstore

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// match reports whether doc satisfies every entry of the filter.
func match(doc bson.D, filter bson.D) (bool, error) {
	for _, e := range filter {
		if e.Key == "$and" {
			ok, err := matchAll(doc, e.Value)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(e.Key, "$") {
			return false, fmt.Errorf("unsupported top-level operator %s", e.Key)
		}
		vals := values(doc, strings.Split(e.Key, "."))
		ops, ok := operatorDoc(e.Value)
		if !ok {
			ops = bson.D{{Key: "$eq", Value: e.Value}}
		}
		for _, op := range ops {
			ok, err := matchOp(vals, op.Key, normalize(op.Value))
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// matchAll is $and: every clause of the array must match.
func matchAll(doc bson.D, clauses any) (bool, error) {
	arr, ok := clauses.(bson.A)
	if !ok {
		return false, fmt.Errorf("$and needs an array, got %T", clauses)
	}
	for _, c := range arr {
		filter, ok := c.(bson.D)
		if !ok {
			return false, fmt.Errorf("$and clause must be a document, got %T", c)
		}
		ok, err := match(doc, filter)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// operatorDoc returns v as an operator document if all its keys are
// operators.
func operatorDoc(v any) (bson.D, bool) {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchOp(vals []any, op string, want any) (bool, error) {
	switch op {
	case "$eq":
		return equals(vals, want), nil
	case "$ne":
		return !equals(vals, want), nil
	case "$lt":
		return anyCandidate(vals, want, func(c int) bool { return c < 0 }), nil
	case "$lte":
		return anyCandidate(vals, want, func(c int) bool { return c <= 0 }), nil
	case "$gt":
		return anyCandidate(vals, want, func(c int) bool { return c > 0 }), nil
	case "$gte":
		return anyCandidate(vals, want, func(c int) bool { return c >= 0 }), nil
	default:
		return false, fmt.Errorf("unsupported operator %s", op)
	}
}

// equals is $eq: null matches missing fields, and arrays match if any of
// their elements does.
func equals(vals []any, want any) bool {
	if want == nil && len(vals) == 0 {
		return true
	}
	return anyCandidate(vals, want, func(c int) bool { return c == 0 })
}

// anyCandidate applies a comparison to the values and the elements of array
// values. Values of different types never compare.
func anyCandidate(vals []any, want any, ok func(int) bool) bool {
	for _, v := range vals {
		candidates := []any{v}
		if arr, isArr := array(v); isArr {
			candidates = append(candidates, arr...)
		}
		for _, c := range candidates {
			c = normalize(c)
			if typeRank(c) != typeRank(want) {
				continue
			}
			if ok(compare(c, want)) {
				return true
			}
		}
	}
	return false
}

// values returns every value reachable by the path. Arrays of documents
// along the way are descended into element by element.
func values(doc any, path []string) []any {
	if len(path) == 0 {
		return []any{doc}
	}
	if arr, ok := array(doc); ok {
		var r []any
		for _, item := range arr {
			r = append(r, values(item, path)...)
		}
		return r
	}
	v, ok := field(doc, path[0])
	if !ok {
		return nil
	}
	return values(v, path[1:])
}

func field(doc any, key string) (any, bool) {
	switch d := doc.(type) {
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value, true
			}
		}
	case bson.M:
		v, ok := d[key]
		return v, ok
	case map[string]any:
		v, ok := d[key]
		return v, ok
	}
	return nil, false
}

func array(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	}
	return nil, false
}

// normalize maps driver-specific representations onto the types compare
// understands.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time()
	case primitive.Null, primitive.Undefined:
		return nil
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

// typeRank orders values of different types the way MongoDB does.
func typeRank(v any) int {
	switch v.(type) {
	case primitive.MinKey:
		return 0
	case nil:
		return 1
	case float64, primitive.Decimal128:
		return 2
	case string, primitive.Symbol:
		return 3
	case bson.D, bson.M, map[string]any:
		return 4
	case bson.A, []any:
		return 5
	case primitive.Binary:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case time.Time:
		return 9
	case primitive.Timestamp:
		return 10
	case primitive.Regex:
		return 11
	case primitive.MaxKey:
		return 13
	default:
		return 12
	}
}

// compare is a total order over normalized values.
func compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case nil:
		return 0
	case float64:
		y, ok := b.(float64)
		if !ok {
			break
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case primitive.ObjectID:
		y := b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:])
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	case bson.D:
		if y, ok := b.(bson.D); ok {
			return compareDocs(x, y)
		}
	case bson.A:
		if y, ok := b.(bson.A); ok {
			return compareArrays(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareDocs(a, b bson.D) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := compare(normalize(a[i].Value), normalize(b[i].Value)); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareArrays(a, b bson.A) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compare(normalize(a[i]), normalize(b[i])); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// sortDocs sorts documents by a sort specification. Missing fields sort as
// null.
func sortDocs(docs []bson.D, spec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range spec {
			path := strings.Split(key.Key, ".")
			c := compare(sortValue(docs[i], path), sortValue(docs[j], path))
			if c == 0 {
				continue
			}
			if direction(key.Value) < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sortValue(doc bson.D, path []string) any {
	vals := values(doc, path)
	if len(vals) == 0 {
		return nil
	}
	return normalize(vals[0])
}

func direction(v any) float64 {
	if f, ok := normalize(v).(float64); ok {
		return f
	}
	return 1
}
