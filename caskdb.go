// Package caskdb is a log-structured key-value store in the bitcask style.
//
// Every mutation is appended to a single log file and an in-memory index maps
// each key to the byte range of its latest value, so a read is one positional
// read. Overwritten and removed entries are reclaimed by compaction, which
// rewrites the live entries into a fresh log and renames it into place.
//
// An embedded bbolt database is available as an alternative engine behind the
// same KvsEngine interface. A directory remembers which engine created it.
//
// Example usage:
//
//	db, err := caskdb.Open("/path/to/database", "", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Set("key", "value"); err != nil {
//		log.Printf("Set failed: %v", err)
//	}
//
//	value, found, err := db.Get("key")
//	if err == nil && found {
//		fmt.Printf("Value: %s\n", value)
//	}
//
//	if err := db.Remove("key"); errors.Is(err, caskdb.ErrKeyNotFound) {
//		log.Print("key was not there")
//	}
package caskdb

import (
	"fmt"
	"path/filepath"

	"github.com/MikhailWahib/caskdb/internal/boltengine"
	"github.com/MikhailWahib/caskdb/internal/config"
	"github.com/MikhailWahib/caskdb/internal/diskmanager"
	"github.com/MikhailWahib/caskdb/internal/engine"
	"github.com/MikhailWahib/caskdb/internal/shared"
)

// KvsEngine is the storage interface shared by both engines.
// Implementations are not safe for concurrent use.
type KvsEngine interface {
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Get returns the value for key and whether it was present.
	// A missing key is not an error.
	Get(key string) (string, bool, error)
	// Remove deletes key. It fails with ErrKeyNotFound if key is absent.
	Remove(key string) error
	// Close releases the engine's files.
	Close() error
}

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

// Engine names.
const (
	EngineKvs  = shared.EngineKvs
	EngineBolt = shared.EngineBolt
)

// Errors returned by the engines. Test with errors.Is.
var (
	ErrOpen          = shared.ErrOpen
	ErrIO            = shared.ErrIO
	ErrSerialization = shared.ErrSerialization
	ErrKeyNotFound   = shared.ErrKeyNotFound
	ErrClosed        = shared.ErrClosed
	ErrWrongEngine   = shared.ErrWrongEngine
	ErrUnknownEngine = shared.ErrUnknownEngine
)

var (
	_ KvsEngine = (*engine.Engine)(nil)
	_ KvsEngine = (*boltengine.Engine)(nil)
)

// OpenLog opens or creates the log-structured store in dir.
//
// The directory will be created if it doesn't exist. If a log exists, it is
// replayed to rebuild the index before OpenLog returns.
func OpenLog(dir string, cfg *Config) (*engine.Engine, error) {
	e := engine.NewEngine(cfg)
	if err := e.OpenDB(dir); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenBolt opens or creates the bbolt-backed store in dir.
func OpenBolt(dir string) (*boltengine.Engine, error) {
	return boltengine.Open(dir)
}

// DetectEngine reports which engine last wrote to dir, or "" for a fresh directory.
func DetectEngine(dir string) (string, error) {
	dm := diskmanager.NewDiskManager()

	hasLog, err := dm.Exists(filepath.Join(dir, shared.LogFileName))
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrOpen, err)
	}
	hasBolt, err := dm.Exists(filepath.Join(dir, shared.BoltFileName))
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrOpen, err)
	}

	switch {
	case hasLog && hasBolt:
		return "", fmt.Errorf("%w: %s holds data for both engines", shared.ErrWrongEngine, dir)
	case hasBolt:
		return shared.EngineBolt, nil
	case hasLog:
		return shared.EngineKvs, nil
	}
	return "", nil
}

// Open opens dir with the named engine. An empty name picks the engine the
// directory was created with, or the log-structured engine for a fresh one.
// Naming an engine other than the one that owns dir fails with ErrWrongEngine.
// cfg only applies to the log-structured engine and may be nil.
func Open(dir, name string, cfg *Config) (KvsEngine, error) {
	switch name {
	case "", shared.EngineKvs, shared.EngineBolt:
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownEngine, name)
	}

	detected, err := DetectEngine(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = detected
	} else if detected != "" && detected != name {
		return nil, fmt.Errorf("%w: %s was created by the %s engine", shared.ErrWrongEngine, dir, detected)
	}

	if name == shared.EngineBolt {
		return OpenBolt(dir)
	}
	return OpenLog(dir, cfg)
}
