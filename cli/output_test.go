package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	color.NoColor = true
}

func testData(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	users := `{"_id": 1, "name": "ann", "born": {"$date": "1990-05-01T10:00:00Z"}}
{"_id": 2, "name": "bob"}
`
	orders := `[{"user": 1, "total": 5.5}, {"user": 1, "total": 7}]`
	require.NoError(t, afero.WriteFile(fs, "data/users.json", []byte(users), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/orders.json", []byte(orders), 0o644))
	return fs
}

func runQuery(t *testing.T, fs afero.Fs, cfg config) (string, string) {
	t.Helper()
	if cfg.Data == "" {
		cfg.Data = "data"
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = "2006-01-02"
	}
	if cfg.CSVSeparator == 0 {
		cfg.CSVSeparator = ','
	}
	stdout, stderr := bytes.Buffer{}, bytes.Buffer{}
	require.NoError(t, run(context.Background(), &cfg, fs, &stdout, &stderr))
	return stdout.String(), stderr.String()
}

func TestHorizontalOutput(t *testing.T) {
	out, _ := runQuery(t, testData(t), config{
		Query:             "select name, born from users order by _id",
		Output:            "horizontal",
		HorizontalPadding: 6,
	})
	want := "name  born  \n" +
		"ann   1990-05-01\n" +
		"bob   --    \n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Error(diff)
	}
}

func TestVerticalOutputOfJoin(t *testing.T) {
	out, _ := runQuery(t, testData(t), config{
		Query:  "select u.name as who, o.total from users as u join orders as o on o.user = u._id order by u._id",
		Output: "vertical",
	})
	want := "who: ann\no.total: 5.5\n\nwho: ann\no.total: 7\n\nwho: bob\no.total: --\n\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Error(diff)
	}
}

func TestSelectAllForcesVertical(t *testing.T) {
	out, errOut := runQuery(t, testData(t), config{
		Query:  "select * from users where _id = 2",
		Output: "horizontal",
	})
	assert.Equal(t, "_id: 2\nname: bob\n\n", out)
	assert.Contains(t, errOut, "Forcing vertical output.")
}

func TestCSVOutput(t *testing.T) {
	fs := testData(t)
	out, _ := runQuery(t, fs, config{
		Query:        "select name, o.total from users join orders as o on o.user = users._id order by name",
		Output:       "out.csv",
		CSVSeparator: ';',
	})
	assert.Equal(t, "Writing output to CSV file: out.csv ...\nDone\n", out)
	got, err := afero.ReadFile(fs, "out.csv")
	require.NoError(t, err)
	assert.Equal(t, "name;o.total\nann;5.5\nann;7\nbob;--\n", string(got))
}

func TestExplain(t *testing.T) {
	out, _ := runQuery(t, afero.NewMemMapFs(), config{
		Query:   "select name from users where _id = 1",
		Explain: true,
	})
	assert.Equal(t, "db.users.find({_id: 1}, {name: 1, _id: 0})\n", out)
}

func TestMissingQuery(t *testing.T) {
	out, _ := runQuery(t, afero.NewMemMapFs(), config{})
	assert.Equal(t, "Please provide query through `config.properties` file or command line option e.g. \"query=select userEmail from coupons where couponState = 4\"\n", out)
}

func TestDebugLogsTokensAndFinds(t *testing.T) {
	_, errOut := runQuery(t, testData(t), config{
		Query:  "select name from users",
		Output: "vertical",
		Debug:  true,
	})
	assert.Contains(t, errOut, "msg=token kind=keyword text=select")
	assert.Contains(t, errOut, "db.users.find({}, {name: 1, _id: 0})")
}

func TestFormatValues(t *testing.T) {
	f := formatter{"2006-01-02 15:04"}
	id, err := primitive.ObjectIDFromHex("5f1d7f3b9d3e2a1b2c3d4e5f")
	require.NoError(t, err)
	at := time.Date(2021, 3, 4, 5, 6, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, "--"},
		{"text", "text"},
		{int32(3), "3"},
		{2.5, "2.5"},
		{true, "true"},
		{at, "2021-03-04 05:06"},
		{id, "5f1d7f3b9d3e2a1b2c3d4e5f"},
		{bson.D{{Key: "a", Value: 1}, {Key: "b", Value: bson.A{"x", nil}}}, "{a: 1, b: [x, --]}"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, f.format(c.in))
	}
	assert.Equal(t, at.Local().Format("2006-01-02 15:04"), f.format(primitive.NewDateTimeFromTime(at)))
}

func TestRootCommand(t *testing.T) {
	fs := testData(t)
	stdout, stderr := bytes.Buffer{}, bytes.Buffer{}
	cmd := newRootCmd(fs, &stdout, &stderr)
	cmd.SetArgs([]string{"--data", "data", "-o", "vertical", "query=select name from users where _id = 1"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "name: ann\n\n", stdout.String())

	cmd = newRootCmd(fs, &stdout, &stderr)
	cmd.SetArgs([]string{"bogus"})
	assert.EqualError(t, cmd.ExecuteContext(context.Background()), "unexpected option: bogus (format: key=value)")
}
