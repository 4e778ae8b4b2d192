package version

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/doquedb/sydcore/internal/buffer"
)

// growChunkPages is the number of pages the master datafile grows by
// each time AllocatePage exhausts the current mapping.
const growChunkPages = 64

// headerPageID is reserved for the allocation cursor (the next page id
// to hand out), so it survives a close/reopen. Index kinds' own header
// content lives above this in the same page; the cursor only occupies
// the first 4 bytes.
const headerPageID buffer.PageID = 0

// MasterFile is the current-state datafile of one logical file: a flat
// array of fixed-size pages, memory-mapped for reads and writes. Page 0
// is reserved as a header page and is never handed out by AllocatePage.
type MasterFile struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	pageSize int
	mapping  mmap.MMap
	pages    int // number of page slots currently backed by the file
	next     buffer.PageID
}

// OpenMasterFile opens or creates the master datafile at path with the
// given page size.
func OpenMasterFile(path string, pageSize int) (*MasterFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("version: open master file: %w", err)
	}
	mf := &MasterFile{f: f, path: path, pageSize: pageSize, next: 1}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("version: stat master file: %w", err)
	}
	pages := int(info.Size()) / pageSize
	if pages == 0 {
		if err := mf.growLocked(growChunkPages); err != nil {
			f.Close()
			return nil, err
		}
		mf.next = 1
		mf.persistNextLocked()
	} else {
		if err := mf.mapLocked(pages); err != nil {
			f.Close()
			return nil, err
		}
		mf.next = mf.loadNextLocked()
	}
	return mf, nil
}

func (mf *MasterFile) loadNextLocked() buffer.PageID {
	off := mf.offset(headerPageID)
	n := binary.LittleEndian.Uint32(mf.mapping[off : off+4])
	if n < 1 {
		return 1
	}
	return buffer.PageID(n)
}

func (mf *MasterFile) persistNextLocked() {
	off := mf.offset(headerPageID)
	binary.LittleEndian.PutUint32(mf.mapping[off:off+4], uint32(mf.next))
}

func (mf *MasterFile) mapLocked(pages int) error {
	if mf.mapping != nil {
		if err := mf.mapping.Unmap(); err != nil {
			return fmt.Errorf("version: unmap master file: %w", err)
		}
	}
	m, err := mmap.Map(mf.f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("version: mmap master file: %w", err)
	}
	mf.mapping = m
	mf.pages = pages
	return nil
}

func (mf *MasterFile) growLocked(extraPages int) error {
	newSize := int64(mf.pages+extraPages) * int64(mf.pageSize)
	if err := mf.f.Truncate(newSize); err != nil {
		return fmt.Errorf("version: grow master file: %w", err)
	}
	return mf.mapLocked(mf.pages + extraPages)
}

func (mf *MasterFile) offset(id buffer.PageID) int64 {
	return int64(id) * int64(mf.pageSize)
}

// ReadPage returns a copy of the page content at id.
func (mf *MasterFile) ReadPage(id buffer.PageID) ([]byte, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	off := mf.offset(id)
	if int(id) >= mf.pages {
		return nil, fmt.Errorf("version: page %d beyond master file extent (%d pages)", id, mf.pages)
	}
	buf := make([]byte, mf.pageSize)
	copy(buf, mf.mapping[off:off+int64(mf.pageSize)])
	return buf, nil
}

// WritePage overwrites the page content at id.
func (mf *MasterFile) WritePage(id buffer.PageID, data []byte) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if int(id) >= mf.pages {
		if err := mf.growLocked(growChunkPages); err != nil {
			return err
		}
	}
	off := mf.offset(id)
	n := copy(mf.mapping[off:off+int64(mf.pageSize)], data)
	if n < mf.pageSize {
		for i := n; i < mf.pageSize; i++ {
			mf.mapping[off+int64(i)] = 0
		}
	}
	return nil
}

// Allocate reserves the next page slot, growing the file if necessary,
// and returns its id with a zeroed buffer.
func (mf *MasterFile) Allocate() (buffer.PageID, []byte, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	id := mf.next
	mf.next++
	needed := int(id) + 1
	if needed > mf.pages {
		if err := mf.growLocked(growChunkPages); err != nil {
			return 0, nil, err
		}
	}
	mf.persistNextLocked()
	return id, make([]byte, mf.pageSize), nil
}

// Flush forces mapped content to durable storage.
func (mf *MasterFile) Flush() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.mapping == nil {
		return nil
	}
	return mf.mapping.Flush()
}

// Close unmaps and closes the master datafile.
func (mf *MasterFile) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.mapping != nil {
		if err := mf.mapping.Unmap(); err != nil {
			return fmt.Errorf("version: unmap master file on close: %w", err)
		}
		mf.mapping = nil
	}
	return mf.f.Close()
}
