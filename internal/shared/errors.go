// Package shared holds the error values and on-disk names used across caskdb packages.
package shared

import "errors"

var (
	// ErrOpen is returned when the data directory or log file cannot be created or opened.
	ErrOpen = errors.New("failed to open data directory")

	// ErrIO is returned when reading, writing, syncing or renaming a log file fails.
	ErrIO = errors.New("log i/o failure")

	// ErrSerialization is returned when an entry cannot be encoded, or stored bytes
	// do not decode to the entry the index expects.
	ErrSerialization = errors.New("log entry serialization failure")

	// ErrKeyNotFound is returned when removing a key that is not in the store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrClosed is returned for operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrWrongEngine is returned when the requested engine does not match the one
	// that initialized the data directory.
	ErrWrongEngine = errors.New("data directory was initialized by a different engine")

	// ErrUnknownEngine is returned for an unrecognized engine name.
	ErrUnknownEngine = errors.New("unknown engine")
)
