// Package mockdm provides a mock implementation of the disk manager for testing
package mockdm

import (
	"errors"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/MikhailWahib/caskdb/internal/diskmanager"
)

var errClosed = errors.New("mockdm: file already closed")

// MockFile is the in-memory contents of one file. Handles opened on the same
// path share it, and it survives renames the way an inode does.
type MockFile struct {
	mu   sync.Mutex
	data []byte
	name string
}

// Bytes returns a copy of the file contents.
func (f *MockFile) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}

// SetBytes replaces the file contents.
func (f *MockFile) SetBytes(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append([]byte(nil), b...)
}

// mockHandle implements diskmanager.FileHandle for testing purposes
type mockHandle struct {
	file   *MockFile
	dm     *MockDiskManager
	closed bool
}

// WriteAt writes len(b) bytes to the file starting at byte offset off
func (h *mockHandle) WriteAt(b []byte, off int64) (int, error) {
	if h.closed {
		return 0, errClosed
	}
	if err := h.dm.fault(&h.dm.WriteErr); err != nil {
		return 0, err
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	// Extend the slice if needed
	requiredLen := int(off) + len(b)
	if requiredLen > len(h.file.data) {
		newData := make([]byte, requiredLen)
		copy(newData, h.file.data)
		h.file.data = newData
	}
	return copy(h.file.data[off:], b), nil
}

// ReadAt reads len(b) bytes from the file starting at byte offset off
func (h *mockHandle) ReadAt(b []byte, off int64) (int, error) {
	if h.closed {
		return 0, errClosed
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if off >= int64(len(h.file.data)) {
		return 0, io.EOF
	}
	n := copy(b, h.file.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// Truncate changes the size of the file
func (h *mockHandle) Truncate(size int64) error {
	if h.closed {
		return errClosed
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if size < int64(len(h.file.data)) {
		h.file.data = h.file.data[:size]
		return nil
	}
	h.file.data = append(h.file.data, make([]byte, size-int64(len(h.file.data)))...)
	return nil
}

// Close closes the handle
func (h *mockHandle) Close() error {
	if h.closed {
		return errClosed
	}
	h.closed = true
	return nil
}

// Sync simulates syncing file contents to disk
func (h *mockHandle) Sync() error {
	if h.closed {
		return errClosed
	}
	return h.dm.fault(&h.dm.SyncErr)
}

// Stat returns file information
func (h *mockHandle) Stat() (os.FileInfo, error) {
	if h.closed {
		return nil, errClosed
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	return &testFileInfo{size: int64(len(h.file.data)), name: path.Base(h.file.name)}, nil
}

type testFileInfo struct {
	size int64
	name string
}

func (m *testFileInfo) Name() string       { return m.name }
func (m *testFileInfo) Size() int64        { return m.size }
func (m *testFileInfo) Mode() os.FileMode  { return 0644 }
func (m *testFileInfo) ModTime() time.Time { return time.Now() }
func (m *testFileInfo) IsDir() bool        { return false }
func (m *testFileInfo) Sys() any           { return nil }

// MockDiskManager implements diskmanager.DiskManager interface for testing.
//
// The *Err fields inject failures: when set, the next matching operation
// returns the error and the field is cleared.
type MockDiskManager struct {
	mu    sync.Mutex
	files map[string]*MockFile
	dirs  map[string]bool

	OpenErr   error
	WriteErr  error
	SyncErr   error
	RenameErr error
	MkdirErr  error
}

// NewMockDiskManager creates a new MockDiskManager instance
func NewMockDiskManager() *MockDiskManager {
	return &MockDiskManager{
		files: make(map[string]*MockFile),
		dirs:  make(map[string]bool),
	}
}

func (dm *MockDiskManager) fault(slot *error) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	err := *slot
	*slot = nil
	return err
}

// File returns the file stored at p, or nil.
func (dm *MockDiskManager) File(p string) *MockFile {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.files[p]
}

// MkdirAll records dir as existing
func (dm *MockDiskManager) MkdirAll(dir string) error {
	if err := dm.fault(&dm.MkdirErr); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.dirs[dir] = true
	return nil
}

// Open creates or opens a mock file, honouring O_CREATE and O_TRUNC
func (dm *MockDiskManager) Open(p string, flags int, _ os.FileMode) (diskmanager.FileHandle, error) {
	if err := dm.fault(&dm.OpenErr); err != nil {
		return nil, err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	file, exists := dm.files[p]
	if !exists {
		if flags&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
		}
		file = &MockFile{name: p}
		dm.files[p] = file
	} else if flags&os.O_TRUNC != 0 {
		file.SetBytes(nil)
	}
	return &mockHandle{file: file, dm: dm}, nil
}

// Rename moves the file at oldPath to newPath, replacing any file there
func (dm *MockDiskManager) Rename(oldPath, newPath string) error {
	if err := dm.fault(&dm.RenameErr); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	file, exists := dm.files[oldPath]
	if !exists {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrNotExist}
	}
	delete(dm.files, oldPath)
	file.mu.Lock()
	file.name = newPath
	file.mu.Unlock()
	dm.files[newPath] = file
	return nil
}

// Delete removes a mock file
func (dm *MockDiskManager) Delete(p string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.files, p)
	return nil
}

// Exists reports whether a file or directory was created at p
func (dm *MockDiskManager) Exists(p string) (bool, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, isFile := dm.files[p]
	return isFile || dm.dirs[p], nil
}
