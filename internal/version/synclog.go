package version

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// syncLogSize is the fixed size of the sync log: a single record
// holding a version-log offset and a watermark. Sync writes its
// watermark with offset 0; no code in this package reads the cursor
// back to resume a pass.
const syncLogSize = 24

// SyncLog is the third file of the master/version-log/sync-log triple.
// It persists only a cursor: the version-log byte offset reclaim has
// progressed past, and the watermark timestamp that cursor was computed
// against.
type SyncLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenSyncLog opens or initializes the sync log at path.
func OpenSyncLog(path string) (*SyncLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("version: open sync log: %w", err)
	}
	sl := &SyncLog{f: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("version: stat sync log: %w", err)
	}
	if info.Size() < syncLogSize {
		if err := sl.writeCursorLocked(logFileHdrSize, 0); err != nil {
			f.Close()
			return nil, err
		}
	}
	return sl, nil
}

// Cursor returns the last-persisted reclaim offset and watermark.
func (sl *SyncLog) Cursor() (offset int64, watermark uint64, err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	var buf [syncLogSize]byte
	if _, err := sl.f.ReadAt(buf[:], 0); err != nil {
		return 0, 0, fmt.Errorf("version: read sync log: %w", err)
	}
	offset = int64(binary.LittleEndian.Uint64(buf[0:8]))
	watermark = binary.LittleEndian.Uint64(buf[8:16])
	return offset, watermark, nil
}

// SetCursor persists an offset and watermark pair.
func (sl *SyncLog) SetCursor(offset int64, watermark uint64) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.writeCursorLocked(offset, watermark)
}

func (sl *SyncLog) writeCursorLocked(offset int64, watermark uint64) error {
	var buf [syncLogSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(buf[8:16], watermark)
	if _, err := sl.f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("version: write sync log: %w", err)
	}
	return sl.f.Sync()
}

// Reset clears the cursor back to the start of the version log, used
// after Truncate.
func (sl *SyncLog) Reset() error {
	return sl.SetCursor(logFileHdrSize, 0)
}

// Close closes the sync log file.
func (sl *SyncLog) Close() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.f.Close()
}
