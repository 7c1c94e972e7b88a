package sqlmongo

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFormatter(t *testing.T) {
	type tcase struct {
		input, want string
	}
	cc := []tcase{
		{
			`select a, b as bb from t where a = 1 and b != 'x' order by a desc limit 5`,
			`db.t.find({a: 1, b: {$ne: "x"}}, {a: 1, b: 1, _id: 0}).sort({a: -1}).limit(5)`,
		},
		{
			`select a from t where a > 5 and a > 1`,
			`db.t.find({a: {$gt: 5}, $and: [{a: {$gt: 1}}]}, {a: 1, _id: 0})`,
		},
		{
			`select * from t`,
			`db.t.find({})`,
		},
		{
			`select t._id, j.name from t join j on j.ref = t._id`,
			"db.t.find({}, {_id: 1})\n    join j: db.j.find({ref: t._id}, {name: 1, _id: 0})",
		},
	}
	for _, c := range cc {
		q, err := Parse(c.input)
		if err != nil {
			t.Error(err)
			continue
		}
		got := FormatPlan(q)
		diff := cmp.Diff(c.want, got)
		if diff != "" {
			t.Errorf("\nwanted:\n%s\ngot:\n%s\ndiff:\n%s\n", c.want, got, diff)
		}
	}
}

func TestFormatLiterals(t *testing.T) {
	q, err := Parse(`select a.b from t where a.b > 1 and a.b <= 3 and c = Date('2020-01-02') and d = Id('5f1d7f3b9d3e2a1b2c3d4e5f') and e = -2.5`,
		WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	want := `db.t.find({"a.b": {$gt: 1, $lte: 3}, c: ISODate("2020-01-02T00:00:00Z"), d: ObjectId("5f1d7f3b9d3e2a1b2c3d4e5f"), e: -2.5}, {"a.b": 1, _id: 0})`
	if diff := cmp.Diff(want, FormatPlan(q)); diff != "" {
		t.Error(diff)
	}
}

func TestFormatCollectionName(t *testing.T) {
	got := formatFind("odd-name", FindSpec{Filter: nil, Limit: 2})
	want := `db.getCollection("odd-name").find({}).limit(2)`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Error(diff)
	}
}
