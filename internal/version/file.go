package version

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
)

// ErrNoVersion is returned by ReadAsOf when no version of the page
// existed at or before the requested timestamp.
var ErrNoVersion = errors.New("version: no page content as of requested timestamp")

// versionEntry records where in the version log a page's pre-image
// lives, tagged with the timestamp at which that content was current.
type versionEntry struct {
	Timestamp buffer.Timestamp
	Offset    int64
}

// File is the versioned page layer for one logical file: a MasterFile
// of current content plus a VersionLog of pre-images, giving every
// reader the snapshot view its transaction was assigned. File
// implements buffer.Source so a vfile.File
// can fix pages through it via a buffer.Pool exactly as it would
// through any other backing store.
type File struct {
	mu     sync.Mutex
	master *MasterFile
	log    *VersionLog
	sl     *SyncLog
	logger *zap.Logger

	// versioningEnabled controls whether WritePage preserves a
	// pre-image. Disabled during batch/non-versioned loads where no
	// concurrent reader can observe the overwritten content.
	versioningEnabled bool

	index    map[buffer.PageID][]versionEntry
	masterTS map[buffer.PageID]buffer.Timestamp
}

// Paths groups the three files that make up one logical file's
// on-disk footprint: the master datafile and the two logs.
type Paths struct {
	Master  string
	Log     string
	SyncLog string
}

// Open mounts the versioned page layer for one logical file.
func Open(paths Paths, pageSize int, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	master, err := OpenMasterFile(paths.Master, pageSize)
	if err != nil {
		return nil, err
	}
	log, err := OpenVersionLog(paths.Log)
	if err != nil {
		master.Close()
		return nil, err
	}
	sl, err := OpenSyncLog(paths.SyncLog)
	if err != nil {
		master.Close()
		log.Close()
		return nil, err
	}

	f := &File{
		master:            master,
		log:               log,
		sl:                sl,
		logger:            logger.With(zap.String("master", paths.Master)),
		versioningEnabled: true,
		index:             make(map[buffer.PageID][]versionEntry),
		masterTS:          make(map[buffer.PageID]buffer.Timestamp),
	}

	if err := f.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// rebuildIndex replays the version log into the in-memory offset index,
// used on Open/Mount and after Recover.
func (f *File) rebuildIndex() error {
	f.index = make(map[buffer.PageID][]versionEntry)
	return f.log.ReadAll(func(offset int64, rec *logRecord) error {
		f.index[rec.PageID] = append(f.index[rec.PageID], versionEntry{Timestamp: rec.Timestamp, Offset: offset})
		return nil
	})
}

// SetVersioningEnabled toggles pre-image preservation. The reorganize
// and bulk-load paths disable it while no concurrent reader can observe
// the pages being rewritten.
func (f *File) SetVersioningEnabled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versioningEnabled = v
}

// ReadPage returns the current (master) content of a page, satisfying
// buffer.Source.
func (f *File) ReadPage(id buffer.PageID) ([]byte, error) {
	return f.master.ReadPage(id)
}

// AllocatePage reserves a new page slot, satisfying buffer.Source.
func (f *File) AllocatePage() (buffer.PageID, []byte, error) {
	return f.master.Allocate()
}

// WritePage overwrites a page's current content, first preserving the
// overwritten content (and the timestamp it was valid as of) in the
// version log when versioning is enabled, satisfying buffer.Source.
func (f *File) WritePage(id buffer.PageID, data []byte, ts buffer.Timestamp, async bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.versioningEnabled {
		if oldTS, known := f.masterTS[id]; known {
			old, err := f.master.ReadPage(id)
			if err == nil {
				off, appendErr := f.log.Append(oldTS, id, old)
				if appendErr != nil {
					return fmt.Errorf("version: preserve pre-image for page %d: %w", id, appendErr)
				}
				f.index[id] = append(f.index[id], versionEntry{Timestamp: oldTS, Offset: off})
			}
		}
	}

	if err := f.master.WritePage(id, data); err != nil {
		return err
	}
	f.masterTS[id] = ts
	if !async {
		return f.master.Flush()
	}
	return nil
}

// ReadAsOf returns the page content visible to a reader bound to
// snapshot ts: whichever of the master page and the newest version-log
// entry carries the largest timestamp at or before ts. Log entries are
// archived under the timestamp the pre-image was written at, always
// older than the master's own, so a current master beats every entry.
func (f *File) ReadAsOf(id buffer.PageID, ts buffer.Timestamp) ([]byte, error) {
	f.mu.Lock()
	entries := f.index[id]
	masterTS := f.masterTS[id]
	f.mu.Unlock()

	var best *versionEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Timestamp <= ts {
			best = &entries[i]
			break
		}
	}
	if masterTS <= ts && (best == nil || masterTS >= best.Timestamp) {
		return f.master.ReadPage(id)
	}
	if best != nil {
		rec, err := f.log.ReadAt(best.Offset)
		if err != nil {
			return nil, fmt.Errorf("version: read version entry for page %d: %w", id, err)
		}
		return rec.Data, nil
	}
	return nil, fmt.Errorf("%w: page %d as of %d", ErrNoVersion, id, ts)
}

// FlushAllPages forces the master datafile to durable storage.
func (f *File) FlushAllPages() error {
	return f.master.Flush()
}

// DetachPageAll drops any cached in-memory state this layer itself
// keeps beyond the version index (currently a no-op placeholder: the
// version index is derived purely from the on-disk log and is cheap to
// keep resident; the buffer.Pool above this layer is what actually
// detaches cached pages).
func (f *File) DetachPageAll() {}

// Close releases the master file, version log, and sync log.
func (f *File) Close() error {
	var errs []error
	if err := f.master.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := f.log.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := f.sl.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("version: close: %v", errs)
	}
	return nil
}
