package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
)

// ErrVerifyAborted is raised when a verification consistency pass
// fails; attaching further pages in verify mode stops there.
var ErrVerifyAborted = errors.New("version: verification aborted")

// Create makes the on-disk triple for a new logical file at paths and
// opens it.
func Create(paths Paths, pageSize int, logger *zap.Logger) (*File, error) {
	for _, p := range []string{paths.Master, paths.Log, paths.SyncLog} {
		if _, err := os.Stat(p); err == nil {
			return nil, fmt.Errorf("version: create %s: already exists", p)
		}
	}
	return Open(paths, pageSize, logger)
}

// Destroy removes every file of the triple. f must already be closed.
func Destroy(paths Paths) error {
	var errs []error
	for _, p := range []string{paths.Master, paths.Log, paths.SyncLog} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("version: destroy: %v", errs)
	}
	return nil
}

// Mount brings an existing logical file's version layer online; it
// is Open under the name the lifecycle operations use.
func Mount(paths Paths, pageSize int, logger *zap.Logger) (*File, error) {
	return Open(paths, pageSize, logger)
}

// Unmount closes the file, making its triple eligible for Move or
// Destroy.
func Unmount(f *File) error {
	return f.Close()
}

// Move relocates the triple to a new path layout: it renames each of
// the three files to a ".moving" name beside its destination, then
// renames each staged file to its final name. Each rename is a separate
// step, so a crash or error part way through can leave the files split
// between old, staged and new paths; nothing is rolled back.
func Move(f *File, oldPaths, newPaths Paths) error {
	if err := f.Close(); err != nil {
		return fmt.Errorf("version: move: close before relocation: %w", err)
	}

	staging := map[string]string{
		oldPaths.Master:  newPaths.Master + ".moving",
		oldPaths.Log:     newPaths.Log + ".moving",
		oldPaths.SyncLog: newPaths.SyncLog + ".moving",
	}
	for src, stage := range staging {
		if err := os.MkdirAll(filepath.Dir(stage), 0o755); err != nil {
			return fmt.Errorf("version: move: prepare staging dir: %w", err)
		}
		if err := os.Rename(src, stage); err != nil {
			return fmt.Errorf("version: move: stage %s: %w", src, err)
		}
	}
	finals := map[string]string{
		staging[oldPaths.Master]:  newPaths.Master,
		staging[oldPaths.Log]:     newPaths.Log,
		staging[oldPaths.SyncLog]: newPaths.SyncLog,
	}
	for stage, final := range finals {
		if err := os.Rename(stage, final); err != nil {
			return fmt.Errorf("version: move: commit %s: %w", final, err)
		}
	}
	return nil
}

// VerifyMode selects how StartVerification treats the file: Correct
// reopens it updatable so inconsistencies found can be repaired in
// place; read-only verification only reports them.
type VerifyMode int

const (
	VerifyReadOnly VerifyMode = iota
	VerifyCorrect
)

// StartVerification begins a consistency pass: Correct mode yields a
// Write|Discardable view (repairs are staged, not forced through until
// EndVerification commits them); read-only mode yields a plain
// read-only view, matching the per-kind FixMode state machine's
// transitions out of Unknown.
func (f *File) StartVerification(mode VerifyMode) (buffer.FixMode, error) {
	if err := f.verifyPage(buffer.InvalidPageID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrVerifyAborted, err)
	}
	if mode == VerifyCorrect {
		return buffer.Write | buffer.Discardable, nil
	}
	return buffer.ReadOnly, nil
}

// verifyPage checks that one page lies within the master file's extent
// and can be read; no checksum is verified. StartVerification calls it
// for the header page.
func (f *File) verifyPage(id buffer.PageID) error {
	if _, err := f.master.ReadPage(id); err != nil {
		// Page 0/InvalidPageID reads nothing meaningful for a fresh
		// file; only a real I/O error is a verification failure.
		if id != buffer.InvalidPageID {
			return err
		}
	}
	return nil
}

// EndVerification concludes the pass, flushing repairs made under a
// Correct-mode StartVerification.
func (f *File) EndVerification() error {
	return f.FlushAllPages()
}

// Recover rolls the version layer back toward checkpoint: it drops
// in-memory index entries stamped after it (the log file is not
// rewritten), and every page whose master content postdates checkpoint
// is overwritten with its newest surviving pre-image. A page with no
// surviving pre-image keeps its current master content.
func (f *File) Recover(checkpoint buffer.Timestamp) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, entries := range f.index {
		var kept []versionEntry
		for _, e := range entries {
			if e.Timestamp <= checkpoint {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(f.index, id)
		} else {
			f.index[id] = kept
		}
	}
	for id, ts := range f.masterTS {
		if ts > checkpoint {
			// The current master content postdates the checkpoint; the
			// newest surviving version-log entry becomes authoritative
			// until the page is written again.
			if entries := f.index[id]; len(entries) > 0 {
				newest := entries[len(entries)-1]
				rec, err := f.log.ReadAt(newest.Offset)
				if err != nil {
					return fmt.Errorf("version: recover page %d: %w", id, err)
				}
				if err := f.master.WritePage(id, rec.Data); err != nil {
					return fmt.Errorf("version: recover write page %d: %w", id, err)
				}
				f.masterTS[id] = newest.Timestamp
			}
		}
	}
	return f.master.Flush()
}

// Restore is Recover from an external checkpoint taken by a full backup
// rather than this file's own log; the two share implementation since
// both reduce to "discard anything after checkpoint".
func (f *File) Restore(checkpoint buffer.Timestamp) error {
	return f.Recover(checkpoint)
}

// Truncate forgets the master timestamp and version-index entries of
// every page at or after firstFreePageID that has a master timestamp
// recorded in this File, used when a logical file shrinks (e.g. after
// reorganize compacts free space to the end). The master datafile
// itself is not shrunk.
func (f *File) Truncate(firstFreePageID buffer.PageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.masterTS {
		if id >= firstFreePageID {
			delete(f.masterTS, id)
			delete(f.index, id)
		}
	}
	return nil
}
