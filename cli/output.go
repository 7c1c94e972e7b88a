package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gaswelder/sqlmongo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// formatter renders field values for display.
type formatter struct {
	dateFormat string
}

func (f formatter) format(v any) string {
	switch x := v.(type) {
	case nil:
		return "--"
	case string:
		return x
	case time.Time:
		return x.Format(f.dateFormat)
	case primitive.DateTime:
		return x.Time().Format(f.dateFormat)
	case primitive.ObjectID:
		return x.Hex()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bson.D:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = e.Key + ": " + f.format(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case bson.A:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = f.format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}

// writeHorizontal prints a header of field names and then one line per
// row, each value in a column of the given width.
func writeHorizontal(w io.Writer, rows *sqlmongo.RowsStream, width int, f formatter) error {
	header := strings.Builder{}
	for _, field := range rows.Fields {
		header.WriteString(pad(field.Alias, width))
	}
	color.New(color.Bold).Fprintln(w, header.String())
	for {
		row, done, err := rows.Next()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		vals, err := row.Values(rows.Fields)
		if err != nil {
			return err
		}
		line := strings.Builder{}
		for _, v := range vals {
			line.WriteString(pad(f.format(v), width))
		}
		fmt.Fprintln(w, line.String())
	}
}

// writeVertical prints every row as a block of "name: value" lines.
// With no selected fields, all fields of the row are printed.
func writeVertical(w io.Writer, rows *sqlmongo.RowsStream, f formatter) error {
	for {
		row, done, err := rows.Next()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		var names, paths []string
		if len(rows.Fields) == 0 {
			names = row.Keys()
			paths = names
		} else {
			for _, field := range rows.Fields {
				names = append(names, field.Alias)
				paths = append(paths, field.Path.String())
			}
		}
		for i, name := range names {
			v, err := row.Get(paths[i])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: %s\n", name, f.format(v))
		}
		fmt.Fprintln(w)
	}
}

// writeCSV writes the rows to a CSV file.
func writeCSV(fs afero.Fs, path string, sep rune, rows *sqlmongo.RowsStream, f formatter) (err error) {
	file, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "failed to close output file")
		}
	}()

	cw := csv.NewWriter(file)
	cw.Comma = sep
	header := make([]string, len(rows.Fields))
	for i, field := range rows.Fields {
		header[i] = field.Alias
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for {
		row, done, err := rows.Next()
		if err != nil {
			return err
		}
		if done {
			break
		}
		vals, err := row.Values(rows.Fields)
		if err != nil {
			return err
		}
		record := make([]string, len(vals))
		for i, v := range vals {
			record[i] = f.format(v)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "failed to write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to write output")
}
