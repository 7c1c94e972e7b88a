package memstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gaswelder/sqlmongo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func find(t *testing.T, s *Store, name string, spec sqlmongo.FindSpec) []bson.D {
	t.Helper()
	ctx := context.Background()
	cur, err := s.Collection(name).Find(ctx, spec)
	require.NoError(t, err)
	var docs []bson.D
	for {
		doc, done, err := cur.Next(ctx)
		require.NoError(t, err)
		if done {
			break
		}
		docs = append(docs, doc)
	}
	require.NoError(t, cur.Close(ctx))
	return docs
}

func cars() *Store {
	s := New()
	s.Insert("cars",
		bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "Kia Soul"}, {Key: "hp", Value: int32(124)}, {Key: "spec", Value: bson.D{{Key: "doors", Value: 5}, {Key: "color", Value: "red"}}}},
		bson.D{{Key: "_id", Value: 2}, {Key: "name", Value: "BMW Z4"}, {Key: "hp", Value: 255.0}, {Key: "spec", Value: bson.D{{Key: "doors", Value: 2}}}},
		bson.D{{Key: "_id", Value: 3}, {Key: "name", Value: "Cadillac SRX"}, {Key: "hp", Value: int64(308)}, {Key: "tags", Value: bson.A{"suv", "us"}}},
		bson.D{{Key: "_id", Value: 4}, {Key: "name", Value: "Unknown"}, {Key: "hp", Value: nil}},
	)
	return s
}

func ids(docs []bson.D) []any {
	var r []any
	for _, d := range docs {
		r = append(r, d[0].Value)
	}
	return r
}

func TestFindFilters(t *testing.T) {
	s := cars()
	cases := []struct {
		name   string
		filter bson.D
		want   []any
	}{
		{"all", nil, []any{1, 2, 3, 4}},
		{"equality across number types", bson.D{{Key: "hp", Value: 124.0}}, []any{1}},
		{"gt", bson.D{{Key: "hp", Value: bson.D{{Key: "$gt", Value: 200.0}}}}, []any{2, 3}},
		{"range", bson.D{{Key: "hp", Value: bson.D{{Key: "$gte", Value: 124.0}, {Key: "$lt", Value: 300.0}}}}, []any{1, 2}},
		{"ne includes missing and null", bson.D{{Key: "hp", Value: bson.D{{Key: "$ne", Value: 255.0}}}}, []any{1, 3, 4}},
		{"null matches null and missing", bson.D{{Key: "tags", Value: nil}}, []any{1, 2, 4}},
		{"nested path", bson.D{{Key: "spec.doors", Value: 2.0}}, []any{2}},
		{"array element", bson.D{{Key: "tags", Value: "suv"}}, []any{3}},
		{"strings compare", bson.D{{Key: "name", Value: bson.D{{Key: "$lte", Value: "C"}}}}, []any{2}},
		{"types don't mix", bson.D{{Key: "name", Value: bson.D{{Key: "$gt", Value: 1.0}}}}, nil},
		{"conjunction", bson.D{{Key: "hp", Value: bson.D{{Key: "$gt", Value: 100.0}}}, {Key: "spec.color", Value: "red"}}, []any{1}},
		{"and", bson.D{
			{Key: "hp", Value: bson.D{{Key: "$gt", Value: 100.0}}},
			{Key: "$and", Value: bson.A{bson.D{{Key: "hp", Value: bson.D{{Key: "$gt", Value: 300.0}}}}}},
		}, []any{3}},
		{"and of contradictions", bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "hp", Value: bson.D{{Key: "$eq", Value: 124.0}}}},
			bson.D{{Key: "hp", Value: bson.D{{Key: "$eq", Value: 255.0}}}},
		}}}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := find(t, s, "cars", sqlmongo.FindSpec{Filter: c.filter})
			assert.Equal(t, c.want, ids(got))
		})
	}
}

func TestFindUnsupportedOperator(t *testing.T) {
	_, err := cars().Collection("cars").Find(context.Background(), sqlmongo.FindSpec{
		Filter: bson.D{{Key: "hp", Value: bson.D{{Key: "$regex", Value: "x"}}}},
	})
	assert.ErrorContains(t, err, "unsupported operator $regex")
}

func TestFindBadAnd(t *testing.T) {
	_, err := cars().Collection("cars").Find(context.Background(), sqlmongo.FindSpec{
		Filter: bson.D{{Key: "$and", Value: bson.D{{Key: "hp", Value: 1.0}}}},
	})
	assert.ErrorContains(t, err, "$and needs an array")
}

func TestFindSortAndLimit(t *testing.T) {
	s := cars()
	got := find(t, s, "cars", sqlmongo.FindSpec{
		Sort: bson.D{{Key: "hp", Value: -1}},
	})
	assert.Equal(t, []any{3, 2, 1, 4}, ids(got))

	got = find(t, s, "cars", sqlmongo.FindSpec{
		Sort:  bson.D{{Key: "name", Value: 1}},
		Limit: 2,
	})
	assert.Equal(t, []any{2, 3}, ids(got))

	got = find(t, s, "cars", sqlmongo.FindSpec{
		Filter: bson.D{{Key: "hp", Value: bson.D{{Key: "$gt", Value: 0.0}}}},
		Sort:   bson.D{{Key: "spec.doors", Value: 1}, {Key: "_id", Value: -1}},
	})
	assert.Equal(t, []any{3, 2, 1}, ids(got))
}

func TestFindProjection(t *testing.T) {
	s := cars()
	got := find(t, s, "cars", sqlmongo.FindSpec{
		Filter:     bson.D{{Key: "_id", Value: 1}},
		Projection: bson.D{{Key: "name", Value: 1}, {Key: "spec.doors", Value: 1}, {Key: "_id", Value: 0}},
	})
	assert.Equal(t, []bson.D{{
		{Key: "name", Value: "Kia Soul"},
		{Key: "spec", Value: bson.D{{Key: "doors", Value: 5}}},
	}}, got)

	got = find(t, s, "cars", sqlmongo.FindSpec{
		Filter:     bson.D{{Key: "_id", Value: 1}},
		Projection: bson.D{{Key: "hp", Value: 0}, {Key: "spec.color", Value: 0}},
	})
	assert.Equal(t, []bson.D{{
		{Key: "_id", Value: 1},
		{Key: "name", Value: "Kia Soul"},
		{Key: "spec", Value: bson.D{{Key: "doors", Value: 5}}},
	}}, got)

	got = find(t, s, "cars", sqlmongo.FindSpec{
		Filter:     bson.D{{Key: "_id", Value: 3}},
		Projection: bson.D{{Key: "_id", Value: 1}},
	})
	assert.Equal(t, []bson.D{{{Key: "_id", Value: 3}}}, got)

	_, err := s.Collection("cars").Find(context.Background(), sqlmongo.FindSpec{
		Projection: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 0}},
	})
	assert.ErrorContains(t, err, "cannot mix inclusion and exclusion")
}

func TestMissingCollectionIsEmpty(t *testing.T) {
	assert.Empty(t, find(t, New(), "nothing", sqlmongo.FindSpec{}))
}

func TestCursorRespectsContext(t *testing.T) {
	s := cars()
	ctx, cancel := context.WithCancel(context.Background())
	cur, err := s.Collection("cars").Find(ctx, sqlmongo.FindSpec{})
	require.NoError(t, err)
	cancel()
	_, _, err = cur.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	input := `{"_id": {"$oid": "5f1d7f3b9d3e2a1b2c3d4e5f"}, "name": "one", "at": {"$date": "2020-01-02T00:00:00Z"}}

{"_id": {"$oid": "5f1d7f3b9d3e2a1b2c3d4e60"}, "name": "two", "n": 2.5}
`
	s := New()
	require.NoError(t, s.Load("t", strings.NewReader(input)))

	id, err := primitive.ObjectIDFromHex("5f1d7f3b9d3e2a1b2c3d4e5f")
	require.NoError(t, err)
	got := find(t, s, "t", sqlmongo.FindSpec{Filter: bson.D{{Key: "_id", Value: id}}})
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0][1].Value)

	got = find(t, s, "t", sqlmongo.FindSpec{Filter: bson.D{
		{Key: "at", Value: bson.D{{Key: "$gte", Value: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}}},
	}})
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0][1].Value)
}

func TestLoadArray(t *testing.T) {
	s := New()
	require.NoError(t, s.Load("t", strings.NewReader(`  [{"a": 1}, {"a": 2}]`)))
	got := find(t, s, "t", sqlmongo.FindSpec{Filter: bson.D{{Key: "a", Value: 2.0}}})
	assert.Len(t, got, 1)
}

func TestLoadReportsLine(t *testing.T) {
	err := New().Load("t", strings.NewReader("{\"a\": 1}\n{oops\n"))
	assert.ErrorContains(t, err, "t line 2")
}

func TestLoadDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/users.json", []byte(`{"_id": 1, "name": "ann"}`+"\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/orders.json", []byte(`[{"user": 1}, {"user": 1}]`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/notes.txt", []byte("not json"), 0o644))

	s := New()
	require.NoError(t, s.LoadDir(fs, "data"))
	assert.Len(t, find(t, s, "users", sqlmongo.FindSpec{}), 1)
	assert.Len(t, find(t, s, "orders", sqlmongo.FindSpec{}), 2)
	assert.Empty(t, find(t, s, "notes", sqlmongo.FindSpec{}))
}
