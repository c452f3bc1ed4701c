package caskdb_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/caskdb"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConfig() *caskdb.Config {
	cfg := caskdb.DefaultConfig()
	cfg.Logger = &log.Logger{Writer: &log.IOWriter{Writer: io.Discard}}
	return cfg
}

func TestKvsEngine_Contract(t *testing.T) {
	for _, name := range []string{caskdb.EngineKvs, caskdb.EngineBolt} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			db, err := caskdb.Open(dir, name, quietConfig())
			require.NoError(t, err)

			require.NoError(t, db.Set("a", "1"))
			require.NoError(t, db.Set("a", "2"))
			require.NoError(t, db.Set("b", "x"))
			require.NoError(t, db.Remove("b"))

			val, found, err := db.Get("a")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "2", val)

			_, found, err = db.Get("b")
			require.NoError(t, err)
			assert.False(t, found)

			require.ErrorIs(t, db.Remove("b"), caskdb.ErrKeyNotFound)
			require.NoError(t, db.Close())

			// Reopen through detection
			db, err = caskdb.Open(dir, "", quietConfig())
			require.NoError(t, err)
			defer db.Close()

			val, found, err = db.Get("a")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "2", val)
		})
	}
}

func TestDetectEngine(t *testing.T) {
	dir := t.TempDir()

	name, err := caskdb.DetectEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".data"), nil, 0644))
	name, err = caskdb.DetectEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, caskdb.EngineKvs, name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "db"), nil, 0644))
	_, err = caskdb.DetectEngine(dir)
	require.ErrorIs(t, err, caskdb.ErrWrongEngine)

	require.NoError(t, os.Remove(filepath.Join(dir, ".data")))
	name, err = caskdb.DetectEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, caskdb.EngineBolt, name)
}

func TestOpen_DefaultsToLogEngine(t *testing.T) {
	dir := t.TempDir()
	db, err := caskdb.Open(dir, "", quietConfig())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.FileExists(t, filepath.Join(dir, ".data"))
	assert.NoFileExists(t, filepath.Join(dir, "db"))
}

func TestOpen_WrongEngine(t *testing.T) {
	dir := t.TempDir()
	db, err := caskdb.Open(dir, caskdb.EngineKvs, quietConfig())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = caskdb.Open(dir, caskdb.EngineBolt, nil)
	require.ErrorIs(t, err, caskdb.ErrWrongEngine)

	boltDir := t.TempDir()
	db, err = caskdb.Open(boltDir, caskdb.EngineBolt, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = caskdb.Open(boltDir, caskdb.EngineKvs, quietConfig())
	require.ErrorIs(t, err, caskdb.ErrWrongEngine)
}

func TestOpen_UnknownEngine(t *testing.T) {
	_, err := caskdb.Open(t.TempDir(), "sled", nil)
	require.ErrorIs(t, err, caskdb.ErrUnknownEngine)
}

func TestOpenLog_CompactsThroughInterface(t *testing.T) {
	cfg := quietConfig()
	cfg.CompactionThreshold = 64
	db, err := caskdb.OpenLog(t.TempDir(), cfg)
	require.NoError(t, err)
	defer db.Close()

	for range 100 {
		require.NoError(t, db.Set("k", "some value"))
	}
	assert.Less(t, db.Stats().LogSize, int64(200))
}
