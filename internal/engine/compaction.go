package engine

import (
	"fmt"
	"time"

	"github.com/MikhailWahib/caskdb/internal/index"
	"github.com/MikhailWahib/caskdb/internal/logstore"
	"github.com/MikhailWahib/caskdb/internal/shared"
)

// compact copies the entry of every live key, in ascending key order, into a
// fresh log and swaps it in with a rename. On failure the engine keeps its
// current log and index.
func (e *Engine) compact() error {
	started := time.Now()
	before := e.log.Size()
	outdated := e.index.Outdated()

	e.logger.Info().
		Str("path", e.logPath()).
		Int64("log_bytes", before).
		Int64("outdated_bytes", outdated).
		Msg("compaction started")

	newLog, newIndex, err := e.rewrite()
	if err != nil {
		e.logger.Warn().Err(err).Str("path", e.logPath()).Msg("compaction failed")
		return err
	}

	// newLog is now the file at logPath; the old handle points at an unlinked file.
	old := e.log
	e.log = newLog
	e.index = newIndex
	if err := old.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close pre-compaction log")
	}

	e.logger.Info().
		Str("path", e.logPath()).
		Int64("log_bytes_before", before).
		Int64("log_bytes_after", newLog.Size()).
		Int("keys", newIndex.Len()).
		Dur("took", time.Since(started)).
		Msg("compaction finished")
	return nil
}

// rewrite builds the compacted log at the temporary path, syncs it and renames
// it over the live log.
func (e *Engine) rewrite() (*logstore.Log, *index.Index, error) {
	tmpPath := e.compactPath()
	fh, err := e.dm.Open(tmpPath, compactOpenFlags, filePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create %s: %w", shared.ErrIO, tmpPath, err)
	}
	// One sync before the rename covers every copied entry.
	newLog, err := logstore.New(fh, false)
	if err != nil {
		_ = fh.Close()
		_ = e.dm.Delete(tmpPath)
		return nil, nil, err
	}

	newIndex := index.New(e.config.IndexOrder)
	err = e.index.Each(func(ie index.Entry) error {
		b, err := e.log.ReadRange(ie.Start, ie.Len())
		if err != nil {
			return err
		}
		start, n, err := newLog.Append(b)
		if err != nil {
			return err
		}
		newIndex.Put(index.Entry{Key: ie.Key, Start: start, End: start + n})
		return nil
	})
	if err == nil {
		err = newLog.Sync()
	}
	if err == nil {
		if renameErr := e.dm.Rename(tmpPath, e.logPath()); renameErr != nil {
			err = fmt.Errorf("%w: failed to rename %s: %w", shared.ErrIO, tmpPath, renameErr)
		}
	}
	if err != nil {
		_ = newLog.Close()
		_ = e.dm.Delete(tmpPath)
		return nil, nil, fmt.Errorf("failed to compact log: %w", err)
	}

	newLog.SetSyncOnAppend(e.config.SyncWrites)
	return newLog, newIndex, nil
}
