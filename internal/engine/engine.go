// Package engine implements the log-structured storage engine: an append-only
// log of entries, an in-memory index of the latest entry per key, replay on
// open and compaction of outdated entries.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/MikhailWahib/caskdb/internal/config"
	"github.com/MikhailWahib/caskdb/internal/diskmanager"
	"github.com/MikhailWahib/caskdb/internal/index"
	"github.com/MikhailWahib/caskdb/internal/logstore"
	"github.com/MikhailWahib/caskdb/internal/record"
	"github.com/MikhailWahib/caskdb/internal/shared"
	"github.com/phuslu/log"
)

// Engine is a single-owner key-value store over one log file.
// It holds no locks; callers serialize access.
type Engine struct {
	config *config.Config
	logger *log.Logger
	dm     diskmanager.DiskManager

	dir   string
	log   *logstore.Log
	index *index.Index
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDiskManager makes the engine do all file operations through dm.
func WithDiskManager(dm diskmanager.DiskManager) Option {
	return func(e *Engine) {
		e.dm = dm
	}
}

// Stats describes the current state of an open engine.
type Stats struct {
	Keys          int
	OutdatedBytes int64
	LogSize       int64
}

// NewEngine creates an engine. Nothing touches the disk until OpenDB.
func NewEngine(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	c.FillDefaults()

	e := &Engine{
		config: &c,
		logger: c.Logger,
		dm:     diskmanager.NewDiskManager(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) logPath() string {
	return filepath.Join(e.dir, shared.LogFileName)
}

func (e *Engine) compactPath() string {
	return filepath.Join(e.dir, shared.CompactFileName)
}

// OpenDB opens or creates the store in dir and rebuilds the index from the log.
func (e *Engine) OpenDB(dir string) error {
	if e.log != nil {
		return fmt.Errorf("%w: engine already open at %s", shared.ErrOpen, e.dir)
	}
	if err := e.dm.MkdirAll(dir); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", shared.ErrOpen, dir, err)
	}
	e.dir = dir

	// Left behind by a compaction that never reached its rename.
	if err := e.dm.Delete(e.compactPath()); err != nil {
		return fmt.Errorf("%w: failed to remove stale compaction file: %w", shared.ErrOpen, err)
	}

	fh, err := e.dm.Open(e.logPath(), logOpenFlags, filePerm)
	if err != nil {
		return fmt.Errorf("%w: failed to open log: %w", shared.ErrOpen, err)
	}
	l, err := logstore.New(fh, e.config.SyncWrites)
	if err != nil {
		_ = fh.Close()
		return fmt.Errorf("%w: %w", shared.ErrOpen, err)
	}

	idx := index.New(e.config.IndexOrder)
	if err := e.replay(l, idx); err != nil {
		_ = l.Close()
		return err
	}

	e.log = l
	e.index = idx
	return nil
}

// replay folds every entry of l into idx in file order.
func (e *Engine) replay(l *logstore.Log, idx *index.Index) error {
	s := record.NewScanner(l.Reader())
	entries := 0
	for s.Scan() {
		entries++
		rec := s.Entry()
		start, end := s.Span()
		if rec.IsTombstone() {
			idx.Remove(rec.Key)
			idx.AddOutdated(end - start)
			continue
		}
		idx.Put(index.Entry{Key: rec.Key, Start: start, End: end})
	}

	if s.TornTail() {
		e.logger.Warn().
			Str("path", e.logPath()).
			Int64("offset", s.Offset()).
			Int64("dropped_bytes", l.Size()-s.Offset()).
			Msg("truncating incomplete entry at end of log")
		if err := l.Truncate(s.Offset()); err != nil {
			return err
		}
	} else if err := s.Err(); err != nil {
		return fmt.Errorf("failed to replay %s: %w", e.logPath(), err)
	}

	e.logger.Debug().
		Str("path", e.logPath()).
		Int("entries", entries).
		Int("keys", idx.Len()).
		Int64("outdated_bytes", idx.Outdated()).
		Msg("replayed log")
	return nil
}

func (e *Engine) checkOpen() error {
	if e.log == nil {
		return shared.ErrClosed
	}
	return nil
}

// Set stores value under key, replacing any previous value.
// When enough of the log is outdated, the log is compacted first.
func (e *Engine) Set(key, value string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.index.Outdated() >= e.config.CompactionThreshold {
		if err := e.compact(); err != nil {
			return err
		}
	}

	b, err := record.Encode(record.NewSet(key, value))
	if err != nil {
		return err
	}
	start, n, err := e.log.Append(b)
	if err != nil {
		return fmt.Errorf("failed to append entry for %q: %w", key, err)
	}
	e.index.Put(index.Entry{Key: key, Start: start, End: start + n})
	return nil
}

// Get returns the value stored under key. A missing key is reported through
// the boolean, not as an error.
func (e *Engine) Get(key string) (string, bool, error) {
	if err := e.checkOpen(); err != nil {
		return "", false, err
	}
	ie, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	b, err := e.log.ReadRange(ie.Start, ie.Len())
	if err != nil {
		return "", false, fmt.Errorf("failed to read entry for %q: %w", key, err)
	}
	rec, err := record.Decode(b)
	if err != nil {
		return "", false, fmt.Errorf("entry for %q at %d: %w", key, ie.Start, err)
	}
	if rec.Key != key || rec.IsTombstone() {
		return "", false, fmt.Errorf("%w: entry at %d does not hold a value for %q", shared.ErrSerialization, ie.Start, key)
	}
	return *rec.Value, true, nil
}

// Remove deletes key. Removing a key that is not present fails with ErrKeyNotFound.
func (e *Engine) Remove(key string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if _, ok := e.index.Get(key); !ok {
		return fmt.Errorf("%w: %q", shared.ErrKeyNotFound, key)
	}

	b, err := record.Encode(record.NewTombstone(key))
	if err != nil {
		return err
	}
	_, n, err := e.log.Append(b)
	if err != nil {
		return fmt.Errorf("failed to append tombstone for %q: %w", key, err)
	}
	e.index.Remove(key)
	e.index.AddOutdated(n)
	return nil
}

// Compact rewrites the log so it holds only the latest entry of each live key.
func (e *Engine) Compact() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.compact()
}

// Keys returns the live keys in ascending order.
func (e *Engine) Keys() []string {
	if e.index == nil {
		return nil
	}
	return e.index.Keys()
}

// Stats reports the key count, outdated bytes and log size.
func (e *Engine) Stats() Stats {
	if e.log == nil {
		return Stats{}
	}
	return Stats{
		Keys:          e.index.Len(),
		OutdatedBytes: e.index.Outdated(),
		LogSize:       e.log.Size(),
	}
}

// Close releases the log file. Every later call fails with ErrClosed.
func (e *Engine) Close() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	err := e.log.Close()
	e.log = nil
	e.index.Clear()
	e.index = nil
	return err
}
