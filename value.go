package sqlmongo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Value is a literal from a query. The set of implementations is closed:
// Str, Num, Bool, Date, ID and FieldRef.
type Value interface {
	String() string
	value()
}

type (
	// Str is a string literal.
	Str string
	// Num is a numeric literal. All numbers are doubles.
	Num float64
	// Bool is true or false.
	Bool bool
	// Date is a Date('...') literal.
	Date time.Time
	// ID is an Id('...') literal.
	ID primitive.ObjectID
	// FieldRef is a reference to a field of the outer row of a join. It only
	// appears on the right-hand side of an ON condition.
	FieldRef Path
)

func (Str) value()      {}
func (Num) value()      {}
func (Bool) value()     {}
func (Date) value()     {}
func (ID) value()       {}
func (FieldRef) value() {}

func (v Str) String() string      { return strconv.Quote(string(v)) }
func (v Num) String() string      { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v Bool) String() string     { return strconv.FormatBool(bool(v)) }
func (v Date) String() string     { return fmt.Sprintf("ISODate(%q)", time.Time(v).Format(time.RFC3339)) }
func (v ID) String() string       { return fmt.Sprintf("ObjectId(%q)", primitive.ObjectID(v).Hex()) }
func (v FieldRef) String() string { return Path(v).String() }

// Equal reports whether both dates are the same instant.
func (v Date) Equal(o Date) bool {
	return time.Time(v).Equal(time.Time(o))
}

// native converts a literal to the Go value the document store expects.
// FieldRef has no value of its own and reports false.
func native(v Value) (any, bool) {
	switch v := v.(type) {
	case Str:
		return string(v), true
	case Num:
		return float64(v), true
	case Bool:
		return bool(v), true
	case Date:
		return time.Time(v), true
	case ID:
		return primitive.ObjectID(v), true
	case FieldRef:
		return nil, false
	default:
		panic(fmt.Errorf("unexpected value type %T", v))
	}
}

// Path is a dotted field path. It always has at least one segment.
type Path []string

// ParsePath splits a dotted path.
func ParsePath(s string) Path {
	return Path(strings.Split(s, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Head returns the first segment.
func (p Path) Head() string {
	return p[0]
}

// Tail returns the path without its first segment, or nil for a single
// segment path.
func (p Path) Tail() Path {
	if len(p) < 2 {
		return nil
	}
	return p[1:]
}

// trimAlias strips a leading alias segment. Single segment paths are
// returned as they are.
func (p Path) trimAlias(alias string) (Path, bool) {
	if len(p) > 1 && p[0] == alias {
		return p[1:], true
	}
	return p, false
}
