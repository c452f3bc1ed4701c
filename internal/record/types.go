// Package record defines the log entry stored in the engine's log file and its on-disk encoding.
//
// An entry is the pair (key, value) where a nil value marks a tombstone. Entries are encoded as
// JSON arrays, ["key","value"] or ["key",null], and written back to back with no framing: the
// JSON grammar itself delimits each entry, so a streaming decoder recovers the boundaries.
package record

// Entry is a single mutation of the log.
type Entry struct {
	Key   string
	Value *string
}

// NewSet returns an entry that sets key to value.
func NewSet(key, value string) Entry {
	return Entry{Key: key, Value: &value}
}

// NewTombstone returns an entry that deletes key.
func NewTombstone(key string) Entry {
	return Entry{Key: key}
}

// IsTombstone reports whether the entry marks a deletion.
func (e Entry) IsTombstone() bool {
	return e.Value == nil
}
