package vault

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CreateFile creates a new vault file with owner-only permissions. It fails
// if path already exists.
func CreateFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(ErrIO, "creating %s: %v", dir, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "creating vault file: %v", err)
	}
	_ = syncDir(dir)
	return f, nil
}

// OpenFile opens an existing vault file for reading and rewriting.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "opening vault file: %v", err)
	}
	return f, nil
}

// Exists reports whether a vault file is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(ErrIO, "checking vault file: %v", err)
	}
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
