package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/MikhailWahib/caskdb/internal/shared"
)

var jsonNull = []byte("null")

// MarshalJSON encodes the entry as a two element array. HTML characters are
// written as-is.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]any{e.Key, e.Value}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a two element array whose second element may be null.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("expected 2 fields, got %d", len(pair))
	}

	if bytes.Equal(bytes.TrimSpace(pair[0]), jsonNull) {
		return errors.New("key: null")
	}
	var key string
	if err := json.Unmarshal(pair[0], &key); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	e.Key = key
	e.Value = nil

	if bytes.Equal(bytes.TrimSpace(pair[1]), jsonNull) {
		return nil
	}
	var value string
	if err := json.Unmarshal(pair[1], &value); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	e.Value = &value
	return nil
}

// Encode serializes an entry. Keys and values must be valid UTF-8, since JSON
// would silently replace invalid bytes and the entry would not decode to itself.
func Encode(e Entry) ([]byte, error) {
	if !utf8.ValidString(e.Key) {
		return nil, fmt.Errorf("%w: key is not valid UTF-8", shared.ErrSerialization)
	}
	if e.Value != nil && !utf8.ValidString(*e.Value) {
		return nil, fmt.Errorf("%w: value for key %q is not valid UTF-8", shared.ErrSerialization, e.Key)
	}
	b, err := e.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSerialization, err)
	}
	return b, nil
}

// Decode parses exactly one entry from b. Bytes that are not valid UTF-8 are
// rejected rather than replaced.
func Decode(b []byte) (Entry, error) {
	if !utf8.Valid(b) {
		return Entry{}, fmt.Errorf("%w: entry is not valid UTF-8", shared.ErrSerialization)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", shared.ErrSerialization, err)
	}
	return e, nil
}

// Scanner reads consecutive entries from a byte stream and reports the byte
// span each one occupies.
type Scanner struct {
	dec   *json.Decoder
	entry Entry
	start int64
	end   int64
	err   error
}

// NewScanner returns a Scanner reading from r, whose offset 0 is the start of the log.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{dec: json.NewDecoder(r)}
}

// Scan advances to the next entry. It returns false at the end of the stream
// or on the first error, which Err then reports.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("%w: entry at offset %d: %w", shared.ErrSerialization, s.end, err)
		}
		return false
	}

	e, err := Decode(raw)
	if err != nil {
		s.err = fmt.Errorf("entry at offset %d: %w", s.end, err)
		return false
	}

	s.entry = e
	s.start = s.end
	s.end = s.dec.InputOffset()
	return true
}

// Entry returns the entry read by the last successful Scan.
func (s *Scanner) Entry() Entry {
	return s.entry
}

// Span returns the half-open byte range [start, end) of the last entry.
// Whitespace preceding an entry belongs to its span.
func (s *Scanner) Span() (start, end int64) {
	return s.start, s.end
}

// Offset returns the end of the last complete entry.
func (s *Scanner) Offset() int64 {
	return s.end
}

// Err returns the error that stopped the scan, or nil at a clean end of stream.
func (s *Scanner) Err() error {
	return s.err
}

// TornTail reports whether the scan stopped on an entry cut short by the end of
// the stream, as left by an append interrupted mid-write.
func (s *Scanner) TornTail() bool {
	return errors.Is(s.err, io.ErrUnexpectedEOF)
}
