// Package logstore implements the append-only log file the engine writes entries to.
package logstore

import (
	"fmt"
	"io"

	"github.com/MikhailWahib/caskdb/internal/diskmanager"
	"github.com/MikhailWahib/caskdb/internal/shared"
)

// Log is an append-only byte log over a single file handle.
//
// Writes go to the tracked end offset with WriteAt and reads use ReadAt, so
// the write cursor and any number of reads never share a file position.
// A Log is not safe for concurrent use.
type Log struct {
	file         diskmanager.FileHandle
	writeOffset  int64
	syncOnAppend bool
}

// New wraps an open file handle. The write offset starts at the current file size.
func New(file diskmanager.FileHandle, syncOnAppend bool) (*Log, error) {
	// Get current file size to set initial write offset
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat log: %w", shared.ErrIO, err)
	}

	return &Log{
		file:         file,
		writeOffset:  fileInfo.Size(),
		syncOnAppend: syncOnAppend,
	}, nil
}

// Append writes p at the end of the log and returns where it landed.
// When the log syncs on append, the bytes are on stable storage before Append returns.
func (l *Log) Append(p []byte) (start, n int64, err error) {
	start = l.writeOffset
	written, err := l.file.WriteAt(p, start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: write at %d: %w", shared.ErrIO, start, err)
	}
	if written != len(p) {
		return 0, 0, fmt.Errorf("%w: short write at %d: %d of %d bytes", shared.ErrIO, start, written, len(p))
	}

	// Update the write offset
	l.writeOffset += int64(written)

	if l.syncOnAppend {
		if err := l.Sync(); err != nil {
			return 0, 0, err
		}
	}
	return start, int64(written), nil
}

// ReadRange returns exactly n bytes starting at start.
func (l *Log) ReadRange(start, n int64) ([]byte, error) {
	if start < 0 || n < 0 || start+n > l.writeOffset {
		return nil, fmt.Errorf("%w: range [%d, %d) outside log of %d bytes", shared.ErrIO, start, start+n, l.writeOffset)
	}

	buf := make([]byte, n)
	read, err := l.file.ReadAt(buf, start)
	if read == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: read [%d, %d): got %d bytes: %w", shared.ErrIO, start, start+n, read, err)
}

// Reader returns a reader over the whole log as of now.
func (l *Log) Reader() io.Reader {
	return io.NewSectionReader(l.file, 0, l.writeOffset)
}

// Truncate cuts the log back to size bytes.
func (l *Log) Truncate(size int64) error {
	if err := l.file.Truncate(size); err != nil {
		return fmt.Errorf("%w: truncate to %d: %w", shared.ErrIO, size, err)
	}
	if err := l.Sync(); err != nil {
		return err
	}
	l.writeOffset = size
	return nil
}

// Size returns the number of bytes in the log.
func (l *Log) Size() int64 {
	return l.writeOffset
}

// SetSyncOnAppend changes whether Append syncs before returning.
func (l *Log) SetSyncOnAppend(sync bool) {
	l.syncOnAppend = sync
}

// Sync ensures all data is persisted to disk
func (l *Log) Sync() error {
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync log: %w", shared.ErrIO, err)
	}
	return nil
}

// Close closes the log file
func (l *Log) Close() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("%w: close log: %w", shared.ErrIO, err)
	}
	return nil
}
