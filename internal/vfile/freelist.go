package vfile

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/doquedb/sydcore/internal/buffer"
)

// freeList holds pages marked free but not yet physically released,
// processed on FlushAllPages. The set is small, so it
// is rewritten whole
// on every persist — the per-file instance count this module expects
// never approaches a size where a chained multi-page format earns its
// complexity.
type freeList struct {
	path    string
	pending []buffer.PageID
}

func openFreeList(path string) (*freeList, error) {
	fl := &freeList{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fl, nil
		}
		return nil, fmt.Errorf("vfile: open free list %s: %w", path, err)
	}
	if len(data) < 4 {
		return fl, nil
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	fl.pending = make([]buffer.PageID, 0, count)
	for i := 0; i < int(count); i++ {
		off := 4 + i*4
		if off+4 > len(data) {
			break
		}
		fl.pending = append(fl.pending, buffer.PageID(binary.LittleEndian.Uint32(data[off:off+4])))
	}
	return fl, nil
}

// add marks id free but not yet physically released.
func (fl *freeList) add(id buffer.PageID) {
	fl.pending = append(fl.pending, id)
}

// drain returns and clears every pending free page id, for
// flushAllPages to physically release.
func (fl *freeList) drain() []buffer.PageID {
	out := fl.pending
	fl.pending = nil
	return out
}

// persist rewrites the free-list file with the current pending set.
func (fl *freeList) persist() error {
	buf := make([]byte, 4+4*len(fl.pending))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(fl.pending)))
	for i, id := range fl.pending {
		binary.LittleEndian.PutUint32(buf[4+i*4:8+i*4], uint32(id))
	}
	if err := os.WriteFile(fl.path, buf, 0o644); err != nil {
		return fmt.Errorf("vfile: persist free list %s: %w", fl.path, err)
	}
	return nil
}
