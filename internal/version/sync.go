package version

import (
	"fmt"

	"github.com/doquedb/sydcore/internal/buffer"
)

// SyncResult reports the outcome of a Sync reclaim pass.
type SyncResult struct {
	Incomplete bool
	Modified   bool
}

// SyncBudget bounds the work a single Sync call performs, so a large
// reclaim can be resumed across several calls instead of blocking a
// caller indefinitely.
type SyncBudget struct {
	MaxRecordsScanned int
}

// DefaultSyncBudget is used by the scheduler's background sweep.
var DefaultSyncBudget = SyncBudget{MaxRecordsScanned: 4096}

// Sync reclaims version-log entries no longer needed by any bound
// snapshot: every entry whose Timestamp is older than watermark (the
// oldest snapshot timestamp any active transaction still depends on,
// supplied by the caller) is dropped from
// the in-memory index. The log file itself is compacted separately by
// Compact; Sync only bounds what ReadAsOf will ever find again.
func (f *File) Sync(watermark uint64, budget SyncBudget) (SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	scanned := 0
	modified := false
	incomplete := false

	for id, entries := range f.index {
		kept := entries[:0]
		for _, e := range entries {
			if budget.MaxRecordsScanned > 0 && scanned >= budget.MaxRecordsScanned {
				incomplete = true
				kept = append(kept, e)
				continue
			}
			scanned++
			if uint64(e.Timestamp) < watermark {
				modified = true
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(f.index, id)
		} else {
			f.index[id] = kept
		}
		if incomplete {
			break
		}
	}

	if err := f.sl.SetCursor(0, watermark); err != nil {
		return SyncResult{}, fmt.Errorf("version: persist sync cursor: %w", err)
	}
	return SyncResult{Incomplete: incomplete, Modified: modified}, nil
}

// Compact rewrites the version log to contain only the entries the
// in-memory index still references, physically reclaiming the space
// Sync has logically freed. Compact is not resumable and should only
// run once Sync has reported Incomplete=false for the current
// watermark.
func (f *File) Compact() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	type liveEntry struct {
		id  buffer.PageID
		rec *logRecord
	}
	var live []liveEntry
	for id, entries := range f.index {
		for _, e := range entries {
			rec, err := f.log.ReadAt(e.Offset)
			if err != nil {
				return fmt.Errorf("version: compact read entry: %w", err)
			}
			live = append(live, liveEntry{id: id, rec: rec})
		}
	}

	if err := f.log.Truncate(); err != nil {
		return fmt.Errorf("version: compact truncate: %w", err)
	}

	rebuilt := make(map[buffer.PageID][]versionEntry, len(f.index))
	for _, le := range live {
		off, err := f.log.Append(le.rec.Timestamp, le.id, le.rec.Data)
		if err != nil {
			return fmt.Errorf("version: compact rewrite entry: %w", err)
		}
		rebuilt[le.id] = append(rebuilt[le.id], versionEntry{Timestamp: le.rec.Timestamp, Offset: off})
	}
	f.index = rebuilt
	return f.sl.Reset()
}
