package files

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Store keeps finished export files under one directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a store rooted at dir on disk.
func NewStore(dir string) (*Store, error) {
	return NewStoreFs(afero.NewOsFs(), dir)
}

// NewStoreFs creates a store on an arbitrary filesystem.
func NewStoreFs(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// FileName returns the name an export file for jobID is stored under.
func FileName(jobID string) string {
	return jobID + ".csv"
}

func (s *Store) path(name string) string {
	return path.Join(s.dir, path.Base(name))
}

// Create truncates or creates the named file.
func (s *Store) Create(name string) (io.WriteCloser, error) {
	f, err := s.fs.OpenFile(s.path(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	return f, nil
}

// Open opens the named file for reading.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	return f, nil
}

// Remove deletes the named file; a missing file is not an error.
func (s *Store) Remove(name string) error {
	err := s.fs.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove export file: %w", err)
	}
	return nil
}

// Exists reports whether the named file is present.
func (s *Store) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, s.path(name))
}
