// Package bitmap implements the Bitmap index kind: one
// posting list per distinct indexed value, stored as a compressed
// Roaring bitmap of matching row IDs.
//
// A bitmap's serialized bytes are exactly the kind of variable-length
// payload the overflow chain format exists to hold, so this
// package reuses internal/index/overflow's chain format as the page
// backing store for each value's bitmap and keeps a directory from
// value to chain head, the same shape internal/index/record uses for
// its slot directory.
package bitmap

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/index/overflow"
	"github.com/doquedb/sydcore/internal/vfile"
)

// File is one logical bitmap file's open handle: a map from indexed
// value to the Roaring bitmap of row IDs holding that value.
type File struct {
	mu  sync.Mutex
	vf  *vfile.File
	dir map[string]buffer.PageID
}

// Open mounts a bitmap file. The directory lives in memory only, for
// the same reason internal/index/record's slot directory does: nothing
// persists the directory itself, only the pages it points at.
func Open(id vfile.FileID, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("bitmap: open: %w", err)
	}
	return &File{vf: vf, dir: make(map[string]buffer.PageID)}, nil
}

// Close flushes and releases the underlying logical file.
func (f *File) Close() error { return f.vf.Close() }

func (f *File) load(key string) (*roaring.Bitmap, buffer.PageID, error) {
	head, ok := f.dir[key]
	bm := roaring.New()
	if !ok {
		return bm, overflow.InvalidPageID, nil
	}
	data, err := overflow.Read(f.vf, head)
	if err != nil {
		return nil, overflow.InvalidPageID, fmt.Errorf("bitmap: read chain: %w", err)
	}
	if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, overflow.InvalidPageID, fmt.Errorf("bitmap: decode: %w", err)
	}
	return bm, head, nil
}

func (f *File) store(key string, oldHead buffer.PageID, bm *roaring.Bitmap) error {
	var buf bytes.Buffer
	if _, err := bm.WriteTo(&buf); err != nil {
		return fmt.Errorf("bitmap: encode: %w", err)
	}
	newHead, err := overflow.Write(f.vf, buf.Bytes())
	if err != nil {
		return fmt.Errorf("bitmap: write chain: %w", err)
	}
	if oldHead != overflow.InvalidPageID {
		if err := overflow.Free(f.vf, oldHead); err != nil {
			return fmt.Errorf("bitmap: free old chain: %w", err)
		}
	}
	f.dir[key] = newHead
	return nil
}

// Add records rowID as matching value.
func (f *File) Add(value []byte, rowID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(value)
	bm, oldHead, err := f.load(key)
	if err != nil {
		return err
	}
	bm.Add(rowID)
	return f.store(key, oldHead, bm)
}

// Remove drops rowID from value's posting list. When the posting list
// becomes empty its chain is freed and the directory entry removed.
func (f *File) Remove(value []byte, rowID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(value)
	head, ok := f.dir[key]
	if !ok {
		return nil
	}
	bm, _, err := f.load(key)
	if err != nil {
		return err
	}
	bm.Remove(rowID)
	if bm.IsEmpty() {
		if err := overflow.Free(f.vf, head); err != nil {
			return fmt.Errorf("bitmap: free emptied chain: %w", err)
		}
		delete(f.dir, key)
		return nil
	}
	return f.store(key, head, bm)
}

// Lookup returns the sorted row IDs matching value.
func (f *File) Lookup(value []byte) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bm, _, err := f.load(string(value))
	if err != nil {
		return nil, err
	}
	return bm.ToArray(), nil
}

// Cardinality reports how many rows currently match value.
func (f *File) Cardinality(value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bm, _, err := f.load(string(value))
	if err != nil {
		return 0, err
	}
	return bm.GetCardinality(), nil
}

// And intersects the posting lists of every value in values, returning
// the row IDs matching all of them.
func (f *File) And(values [][]byte) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(values) == 0 {
		return nil, nil
	}
	acc, _, err := f.load(string(values[0]))
	if err != nil {
		return nil, err
	}
	for _, v := range values[1:] {
		bm, _, err := f.load(string(v))
		if err != nil {
			return nil, err
		}
		acc.And(bm)
	}
	return acc.ToArray(), nil
}

// Or unions the posting lists of every value in values.
func (f *File) Or(values [][]byte) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := roaring.New()
	for _, v := range values {
		bm, _, err := f.load(string(v))
		if err != nil {
			return nil, err
		}
		acc.Or(bm)
	}
	return acc.ToArray(), nil
}

// DistinctValueCount returns how many distinct values currently have a
// non-empty posting list.
func (f *File) DistinctValueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dir)
}
