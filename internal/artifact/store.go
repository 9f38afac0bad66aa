package artifact

import (
	"crypto/sha1" //nolint:gosec // artifact hashes are sha1 on the wire
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

const tempSuffix = ".tmp"

// Store keeps artifacts as plain files in one directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the final path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// URI returns the file:// URI of a named artifact.
func (s *Store) URI(name string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(s.Path(name))}).String()
}

// Append writes r to the temp file for name. With reset the temp file
// and any finished artifact of the same name are removed first.
func (s *Store) Append(name string, r io.Reader, reset bool) (int64, error) {
	if err := ValidateFilename(name); err != nil {
		return 0, err
	}

	tmp := s.Path(name) + tempSuffix
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if reset {
		if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove previous artifact: %w", err)
		}
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(tmp, flags, 0o640) //nolint:gosec // name is validated
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write upload: %w", err)
	}
	return n, nil
}

// Commit moves the temp file for name into place and returns its sha1
// and size.
func (s *Store) Commit(name string) (string, int64, error) {
	if err := ValidateFilename(name); err != nil {
		return "", 0, err
	}
	final := s.Path(name)
	if err := os.Rename(final+tempSuffix, final); err != nil {
		return "", 0, fmt.Errorf("finish upload: %w", err)
	}
	return HashFile(final)
}

// HashFile returns the sha1 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the catalog
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // see import
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
