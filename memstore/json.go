package memstore

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson"
)

// Load reads documents in MongoDB extended JSON into a collection. The
// input is either one document per line, as written by mongoexport, or a
// single JSON array of documents.
func (s *Store) Load(name string, r io.Reader) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", name)
	}
	if first == '[' {
		return s.loadArray(name, br)
	}

	var docs []bson.D
	for n := 1; ; n++ {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var doc bson.D
			if err := bson.UnmarshalExtJSON(line, false, &doc); err != nil {
				return errors.Wrapf(err, "%s line %d", name, n)
			}
			docs = append(docs, doc)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", name)
		}
	}
	s.Insert(name, docs...)
	return nil
}

func (s *Store) loadArray(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", name)
	}
	var wrapper struct {
		Docs []bson.D `bson:"docs"`
	}
	wrapped := append(append([]byte(`{"docs":`), data...), '}')
	if err := bson.UnmarshalExtJSON(wrapped, false, &wrapper); err != nil {
		return errors.Wrapf(err, "failed to parse %s", name)
	}
	s.Insert(name, wrapper.Docs...)
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

// LoadDir loads every *.json file in a directory as a collection named
// after the file.
func (s *Store) LoadDir(fs afero.Fs, dir string) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := s.loadFile(fs, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	return s.Load(name, f)
}
