package record

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/vfile"
)

// ID addresses one tuple: the page it lives on and its slot within
// that page's directory.
type ID struct {
	Page buffer.PageID
	Slot int
}

func (id ID) String() string { return fmt.Sprintf("%d:%d", id.Page, id.Slot) }

// File is the Record index kind: a heap of slotted pages reachable
// through vfile.File, addressed by ID. Unlike the B-tree kind it keeps
// no key order; rows are appended wherever space allows and found
// again only by their ID or by a full Scan.
type File struct {
	mu    sync.Mutex
	vf    *vfile.File
	pages []buffer.PageID // known data pages, oldest first
}

// Open mounts a record file. The page directory lives in memory only
// and starts empty on every Open; it is not rebuilt from pages already
// on disk, and the first Insert allocates a new page.
func Open(id vfile.FileID, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("record: open: %w", err)
	}
	return &File{vf: vf}, nil
}

// Close flushes and releases the underlying logical file.
func (f *File) Close() error { return f.vf.Close() }

// Insert appends t to the last page with room, allocating a fresh
// page when none has space.
func (f *File) Insert(t Tuple) (ID, error) {
	data := Marshal(t)

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pages) > 0 {
		last := f.pages[len(f.pages)-1]
		mem, err := f.vf.AttachPhysicalPage(last, buffer.Write)
		if err != nil {
			return ID{}, fmt.Errorf("record: attach %d: %w", last, err)
		}
		p := wrapPage(mem.Bytes())
		if p.freeSpace() >= len(data) {
			slotIdx, err := p.insertRecord(data)
			if err != nil {
				_ = f.vf.DetachPage(last, false, false)
				return ID{}, err
			}
			if err := f.vf.DetachPage(last, true, false); err != nil {
				return ID{}, err
			}
			return ID{Page: last, Slot: slotIdx}, nil
		}
		if err := f.vf.DetachPage(last, false, false); err != nil {
			return ID{}, err
		}
	}

	mem, err := f.vf.AllocatePage()
	if err != nil {
		return ID{}, fmt.Errorf("record: allocate page: %w", err)
	}
	pid := mem.ID()
	p := initPage(mem.Bytes())
	slotIdx, err := p.insertRecord(data)
	if err != nil {
		_ = f.vf.DetachPage(pid, false, false)
		return ID{}, err
	}
	if err := f.vf.DetachPage(pid, true, false); err != nil {
		return ID{}, err
	}
	f.pages = append(f.pages, pid)
	return ID{Page: pid, Slot: slotIdx}, nil
}

// Get fetches the tuple at id.
func (f *File) Get(id ID) (Tuple, error) {
	mem, err := f.vf.AttachPhysicalPage(id.Page, buffer.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("record: attach %d: %w", id.Page, err)
	}
	defer f.vf.DetachPage(id.Page, false, false)

	p := wrapPage(mem.Bytes())
	raw := p.getRecord(id.Slot)
	if raw == nil {
		return nil, fmt.Errorf("record: %s is deleted or never written", id)
	}
	return Unmarshal(raw)
}

// Update replaces the tuple at id in place, tombstoning and appending
// within the same page if the new encoding no longer fits.
func (f *File) Update(id ID, t Tuple) error {
	data := Marshal(t)
	mem, err := f.vf.AttachPhysicalPage(id.Page, buffer.Write)
	if err != nil {
		return fmt.Errorf("record: attach %d: %w", id.Page, err)
	}
	p := wrapPage(mem.Bytes())
	if err := p.updateRecord(id.Slot, data); err != nil {
		_ = f.vf.DetachPage(id.Page, false, false)
		return err
	}
	return f.vf.DetachPage(id.Page, true, false)
}

// Delete tombstones the slot at id.
func (f *File) Delete(id ID) error {
	mem, err := f.vf.AttachPhysicalPage(id.Page, buffer.Write)
	if err != nil {
		return fmt.Errorf("record: attach %d: %w", id.Page, err)
	}
	p := wrapPage(mem.Bytes())
	if err := p.deleteRecord(id.Slot); err != nil {
		_ = f.vf.DetachPage(id.Page, false, false)
		return err
	}
	return f.vf.DetachPage(id.Page, true, false)
}

// Scan visits every live tuple in page allocation order, stopping
// early if visit returns false.
func (f *File) Scan(visit func(ID, Tuple) bool) error {
	f.mu.Lock()
	pages := append([]buffer.PageID(nil), f.pages...)
	f.mu.Unlock()

	for _, pid := range pages {
		mem, err := f.vf.AttachPhysicalPage(pid, buffer.ReadOnly)
		if err != nil {
			return fmt.Errorf("record: attach %d: %w", pid, err)
		}
		p := wrapPage(mem.Bytes())
		cont := true
		for i := 0; i < p.slotCount() && cont; i++ {
			if p.isDeleted(i) {
				continue
			}
			t, err := Unmarshal(p.getRecord(i))
			if err != nil {
				f.vf.DetachPage(pid, false, false)
				return err
			}
			cont = visit(ID{Page: pid, Slot: i}, t)
		}
		if err := f.vf.DetachPage(pid, false, false); err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}
