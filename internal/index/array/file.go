// Package array implements the Array index kind: a
// repeating-group column, one variable-length run of element values
// per ROWID.
//
// A run is a physical sequence of pages holding one ROWID's array
// value, overflowing to further pages when it doesn't fit in one. This
// package keeps that one-run-per-key shape but stores each run through
// internal/index/overflow's chain format (the run is exactly the
// variable-length payload that format exists for) and reuses
// internal/index/record's tagged element codec for the run's
// elements, avoiding a second fixed/variable element layout.
package array

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/index/overflow"
	"github.com/doquedb/sydcore/internal/index/record"
	"github.com/doquedb/sydcore/internal/vfile"
)

// File is one logical array file's open handle: a map from ROWID to
// the run of element values stored for it.
type File struct {
	mu  sync.Mutex
	vf  *vfile.File
	dir map[uint32]buffer.PageID
}

// Open mounts an array file. Like internal/index/record's slot
// directory, the ROWID→chain-head directory lives in memory only.
func Open(id vfile.FileID, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("array: open: %w", err)
	}
	return &File{vf: vf, dir: make(map[uint32]buffer.PageID)}, nil
}

// Close flushes and releases the underlying logical file.
func (f *File) Close() error { return f.vf.Close() }

func marshalRun(values []any) []byte {
	var out []byte
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(values)))
	out = append(out, countBuf[:]...)
	for _, v := range values {
		enc := record.Marshal(record.Tuple{v})
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		out = append(out, lenBuf[:]...)
		out = append(out, enc...)
	}
	return out
}

func unmarshalRun(data []byte) ([]any, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("array: run header truncated")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	values := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 4 {
			return nil, fmt.Errorf("array: element %d header truncated", i)
		}
		n := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return nil, fmt.Errorf("array: element %d body truncated", i)
		}
		tup, err := record.Unmarshal(data[:n])
		if err != nil {
			return nil, fmt.Errorf("array: element %d: %w", i, err)
		}
		data = data[n:]
		if len(tup) != 1 {
			return nil, fmt.Errorf("array: element %d decoded to %d values, want 1", i, len(tup))
		}
		values = append(values, tup[0])
	}
	return values, nil
}

// Set replaces rowID's stored array value; an empty values slice is
// stored as an empty run.
func (f *File) Set(rowID uint32, values []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldHead, had := f.dir[rowID]
	head, err := overflow.Write(f.vf, marshalRun(values))
	if err != nil {
		return fmt.Errorf("array: write run: %w", err)
	}
	if had {
		if err := overflow.Free(f.vf, oldHead); err != nil {
			return fmt.Errorf("array: free old run: %w", err)
		}
	}
	f.dir[rowID] = head
	return nil
}

// Get returns the array value stored for rowID.
func (f *File) Get(rowID uint32) ([]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head, ok := f.dir[rowID]
	if !ok {
		return nil, false, nil
	}
	data, err := overflow.Read(f.vf, head)
	if err != nil {
		return nil, false, fmt.Errorf("array: read run: %w", err)
	}
	values, err := unmarshalRun(data)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// Delete removes rowID's array value entirely.
func (f *File) Delete(rowID uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head, ok := f.dir[rowID]
	if !ok {
		return false, nil
	}
	if err := overflow.Free(f.vf, head); err != nil {
		return false, fmt.Errorf("array: free run: %w", err)
	}
	delete(f.dir, rowID)
	return true, nil
}

// Append adds value to the end of rowID's run, creating it if absent.
func (f *File) Append(rowID uint32, value any) error {
	values, _, err := f.Get(rowID)
	if err != nil {
		return err
	}
	values = append(values, value)
	return f.Set(rowID, values)
}

// Count reports how many ROWIDs currently have a stored array value.
func (f *File) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dir)
}
