package sqlmongo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FormatPlan renders a plan the way it would be typed into the mongo shell.
// The joined find is shown on a second line with its field references.
func FormatPlan(q *QueryPlan) string {
	r := strings.Builder{}
	spec := FindSpec{
		Filter:     q.Main.Template(),
		Projection: q.Main.Projection.Doc(),
		Sort:       q.SortDoc(),
	}
	if q.Limit.Set {
		spec.Limit = int64(q.Limit.Value)
	}
	r.WriteString(formatFind(q.Main.Name, spec))
	if q.Join != nil {
		r.WriteString(fmt.Sprintf("\n%8s %s: ", "join", q.Join.Alias))
		r.WriteString(formatFind(q.Join.Name, FindSpec{
			Filter:     q.Join.Template(),
			Projection: q.Join.Projection.Doc(),
		}))
	}
	return r.String()
}

func formatFind(collection string, spec FindSpec) string {
	r := strings.Builder{}
	if isPlainKey(collection) {
		r.WriteString("db." + collection)
	} else {
		r.WriteString(fmt.Sprintf("db.getCollection(%q)", collection))
	}
	r.WriteString(".find(")
	r.WriteString(formatShell(spec.Filter))
	if spec.Projection != nil {
		r.WriteString(", ")
		r.WriteString(formatShell(spec.Projection))
	}
	r.WriteString(")")
	if spec.Sort != nil {
		r.WriteString(".sort(" + formatShell(spec.Sort) + ")")
	}
	if spec.Limit > 0 {
		r.WriteString(fmt.Sprintf(".limit(%d)", spec.Limit))
	}
	return r.String()
}

// formatShell renders a value in mongo shell syntax.
func formatShell(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bson.D:
		b := strings.Builder{}
		b.WriteString("{")
		for i, e := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			if isPlainKey(e.Key) {
				b.WriteString(e.Key)
			} else {
				b.WriteString(strconv.Quote(e.Key))
			}
			b.WriteString(": ")
			b.WriteString(formatShell(e.Value))
		}
		b.WriteString("}")
		return b.String()
	case bson.A:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = formatShell(x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return Date(v).String()
	case primitive.ObjectID:
		return ID(v).String()
	case Value:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isPlainKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return true
}
