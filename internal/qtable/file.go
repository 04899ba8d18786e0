package qtable

import (
	"context"
	"encoding/gob"
	"os"
	"path"

	"github.com/pkg/errors"
)

// FileStore saves each table as a gob encoded file in a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if it doesn't exist yet.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store requires a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create q-table directory %q", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) String() string { return "file://" + s.dir }

func (s *FileStore) filePath(name string) string {
	return path.Join(s.dir, name+".qtable")
}

// Save implements Store. It writes to a temporary file first, and then renames it.
func (s *FileStore) Save(_ context.Context, name string, table *Table) error {
	filePath := s.filePath(name)
	tmpPath := filePath + "~"
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	if err = gob.NewEncoder(f).Encode(table.Snapshot()); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to encode q-table to %q", tmpPath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", tmpPath)
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		return errors.Wrapf(err, "failed to rename %q to %q", tmpPath, filePath)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, name string) (*Table, error) {
	filePath := s.filePath(name)
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	var values map[string]Values
	if err = gob.NewDecoder(f).Decode(&values); err != nil {
		return nil, errors.Wrapf(err, "failed to decode q-table from %q", filePath)
	}
	return FromValues(values), nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
