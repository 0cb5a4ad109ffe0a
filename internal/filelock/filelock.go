// Package filelock takes advisory exclusive locks on files being patched.
package filelock

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("filelock: file is locked by another process")

// File is an open file holding an exclusive lock.
type File struct {
	*os.File
}

// OpenLocked opens path read-write and locks it without blocking.
func OpenLocked(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("filelock: %s: %w", path, err)
	}
	return &File{File: f}, nil
}

// Close releases the lock and closes the file.
func (f *File) Close() error {
	uerr := unlock(f.File)
	cerr := f.File.Close()
	return errors.Join(uerr, cerr)
}
