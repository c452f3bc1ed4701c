// Package diskmanager provides interfaces and implementations for managing disk-based file operations.
// The log store and the compactor go through it for every file they touch, which lets tests swap
// in the in-memory implementation from mockdm.
package diskmanager

import (
	"errors"
	"os"
)

// FileHandle abstracts file operations with random access, syncing and truncation.
type FileHandle interface {
	// ReadAt reads len(b) bytes from the file starting at byte offset off.
	// It returns the number of bytes read and any error encountered.
	ReadAt(b []byte, off int64) (int, error)
	// WriteAt writes len(b) bytes to the file starting at byte offset off.
	// It returns the number of bytes written and any error encountered.
	WriteAt(b []byte, off int64) (int, error)
	// Truncate changes the size of the file.
	Truncate(size int64) error
	// Close closes the file handle, rendering it unusable for I/O.
	Close() error
	// Sync commits the current contents of the file to stable storage.
	Sync() error
	// Stat returns the file stat
	Stat() (os.FileInfo, error)
}

type fileHandle struct {
	file *os.File
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
func NewFileHandle(file *os.File) FileHandle { return &fileHandle{file: file} }

func (fh *fileHandle) ReadAt(b []byte, off int64) (int, error) { return fh.file.ReadAt(b, off) }

func (fh *fileHandle) WriteAt(b []byte, off int64) (int, error) { return fh.file.WriteAt(b, off) }

func (fh *fileHandle) Truncate(size int64) error { return fh.file.Truncate(size) }

func (fh *fileHandle) Close() error { return fh.file.Close() }

func (fh *fileHandle) Sync() error { return fh.file.Sync() }

func (fh *fileHandle) Stat() (os.FileInfo, error) { return fh.file.Stat() }

// DiskManager defines methods for file operations.
type DiskManager interface {
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// Open opens a file with specified path, flags and permissions.
	// Every call returns a new handle owned by the caller.
	Open(path string, flags int, perm os.FileMode) (FileHandle, error)
	// Rename atomically replaces newPath with oldPath.
	// Handles opened on oldPath keep referring to the renamed file.
	Rename(oldPath, newPath string) error
	// Delete removes the named file. Deleting a missing file is not an error.
	Delete(path string) error
	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)
}

type diskManager struct{}

// NewDiskManager creates a new DiskManager backed by the OS filesystem.
func NewDiskManager() DiskManager {
	return diskManager{}
}

func (diskManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (diskManager) Open(path string, flags int, perm os.FileMode) (FileHandle, error) {
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	return NewFileHandle(file), nil
}

func (diskManager) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (diskManager) Delete(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (diskManager) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
