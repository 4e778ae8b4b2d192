// Package lob implements the Lob index kind: large
// object values (BLOB/CLOB/NCLOB columns) too big to live inline in a
// record page, stored out of line and addressed by ROWID.
//
// A LOB's bytes are always fetched through an explicit read, never
// folded into a row's projected column list. This package reuses
// internal/index/overflow's chain format for the out-of-line storage
// itself, the same page-chaining shape used for values that don't
// fit inline in a B-tree leaf.
package lob

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/index/overflow"
	"github.com/doquedb/sydcore/internal/vfile"
)

// File is one logical LOB file's open handle: a map from ROWID to the
// overflow chain holding that row's large object bytes.
type File struct {
	mu  sync.Mutex
	vf  *vfile.File
	dir map[uint32]lobEntry
}

type lobEntry struct {
	head buffer.PageID
	size int
}

// Open mounts a LOB file. As with the other overflow-backed index
// kinds, the ROWID→chain-head directory is in memory only.
func Open(id vfile.FileID, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("lob: open: %w", err)
	}
	return &File{vf: vf, dir: make(map[uint32]lobEntry)}, nil
}

// Close flushes and releases the underlying logical file.
func (f *File) Close() error { return f.vf.Close() }

// Put stores data as rowID's large object value, replacing any
// previous value.
func (f *File) Put(rowID uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	old, had := f.dir[rowID]
	head, err := overflow.Write(f.vf, data)
	if err != nil {
		return fmt.Errorf("lob: write: %w", err)
	}
	if had {
		if err := overflow.Free(f.vf, old.head); err != nil {
			return fmt.Errorf("lob: free old value: %w", err)
		}
	}
	f.dir[rowID] = lobEntry{head: head, size: len(data)}
	return nil
}

// Get returns rowID's large object value.
func (f *File) Get(rowID uint32) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.dir[rowID]
	if !ok {
		return nil, false, nil
	}
	data, err := overflow.Read(f.vf, e.head)
	if err != nil {
		return nil, false, fmt.Errorf("lob: read: %w", err)
	}
	return data, true, nil
}

// Size reports the byte length of rowID's large object value without
// reading it back.
func (f *File) Size(rowID uint32) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.dir[rowID]
	if !ok {
		return 0, false, nil
	}
	return e.size, true, nil
}

// Delete removes rowID's large object value.
func (f *File) Delete(rowID uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.dir[rowID]
	if !ok {
		return false, nil
	}
	if err := overflow.Free(f.vf, e.head); err != nil {
		return false, fmt.Errorf("lob: free: %w", err)
	}
	delete(f.dir, rowID)
	return true, nil
}

// Count reports how many ROWIDs currently have a stored value.
func (f *File) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dir)
}
