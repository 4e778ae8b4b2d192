// Package overflow implements the singly-linked overflow-page chain
// shared by the B-tree and Lob index kinds for values too large to
// fit inline in a single page. Pages are allocated and walked
// through a vfile.File.
package overflow

import (
	"encoding/binary"
	"fmt"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/vfile"
)

// Layout of one overflow page's payload:
//
//	[0:4]  NextPageID (uint32 LE); InvalidPageID marks the chain's end
//	[4:8]  DataLen     (uint32 LE)
//	[8:8+DataLen] payload
const (
	nextOff    = 0
	dataLenOff = 4
	dataOff    = 8
)

// InvalidPageID marks the end of a chain. Page 0 is reserved as the
// versioned file's own header page (internal/version/master.go) and
// is never handed out by AllocatePage, so it doubles safely as our
// chain terminator.
const InvalidPageID buffer.PageID = 0

// Capacity returns the payload capacity of one overflow page of pageSize.
func Capacity(pageSize int) int { return pageSize - dataOff }

func capOf(mem *buffer.Memory) int { return Capacity(len(mem.Bytes())) }

func initPage(buf []byte) {
	binary.LittleEndian.PutUint32(buf[nextOff:], uint32(InvalidPageID))
	binary.LittleEndian.PutUint32(buf[dataLenOff:], 0)
}

func nextOf(buf []byte) buffer.PageID {
	return buffer.PageID(binary.LittleEndian.Uint32(buf[nextOff:]))
}

func setNext(buf []byte, id buffer.PageID) {
	binary.LittleEndian.PutUint32(buf[nextOff:], uint32(id))
}

func dataOf(buf []byte) []byte {
	n := binary.LittleEndian.Uint32(buf[dataLenOff:])
	return buf[dataOff : dataOff+n]
}

func setData(buf []byte, data []byte) error {
	if len(data) > Capacity(len(buf)) {
		return fmt.Errorf("overflow: chunk %d bytes exceeds page capacity %d", len(data), Capacity(len(buf)))
	}
	binary.LittleEndian.PutUint32(buf[dataLenOff:], uint32(len(data)))
	copy(buf[dataOff:], data)
	return nil
}

// Write splits data across as many freshly allocated pages of vf as
// needed and returns the head page ID of the chain.
func Write(vf *vfile.File, data []byte) (buffer.PageID, error) {
	var head, prev buffer.PageID
	head = InvalidPageID
	prev = InvalidPageID

	if len(data) == 0 {
		mem, err := vf.AllocatePage()
		if err != nil {
			return InvalidPageID, fmt.Errorf("overflow: allocate empty chain: %w", err)
		}
		initPage(mem.Bytes())
		id := mem.ID()
		if err := vf.DetachPage(id, true, false); err != nil {
			return InvalidPageID, err
		}
		return id, nil
	}

	for off := 0; off < len(data); {
		mem, err := vf.AllocatePage()
		if err != nil {
			return InvalidPageID, fmt.Errorf("overflow: allocate page: %w", err)
		}
		id := mem.ID()
		initPage(mem.Bytes())
		chunkLen := capOf(mem)
		if off+chunkLen > len(data) {
			chunkLen = len(data) - off
		}
		if err := setData(mem.Bytes(), data[off:off+chunkLen]); err != nil {
			return InvalidPageID, err
		}
		off += chunkLen

		if head == InvalidPageID {
			head = id
		}
		if prev != InvalidPageID {
			if err := linkPrev(vf, prev, id); err != nil {
				return InvalidPageID, err
			}
		}
		if err := vf.DetachPage(id, true, false); err != nil {
			return InvalidPageID, err
		}
		prev = id
	}
	return head, nil
}

func linkPrev(vf *vfile.File, prev, next buffer.PageID) error {
	mem, err := vf.AttachPhysicalPage(prev, buffer.Write)
	if err != nil {
		return fmt.Errorf("overflow: re-attach %d to link next: %w", prev, err)
	}
	setNext(mem.Bytes(), next)
	return vf.DetachPage(prev, true, false)
}

// Read walks the chain starting at head and returns its concatenated
// payload.
func Read(vf *vfile.File, head buffer.PageID) ([]byte, error) {
	var out []byte
	id := head
	for id != InvalidPageID {
		mem, err := vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return nil, fmt.Errorf("overflow: attach %d: %w", id, err)
		}
		out = append(out, dataOf(mem.Bytes())...)
		next := nextOf(mem.Bytes())
		if err := vf.DetachPage(id, false, false); err != nil {
			return nil, err
		}
		id = next
	}
	return out, nil
}

// Free releases every page in the chain back to vf's free list.
func Free(vf *vfile.File, head buffer.PageID) error {
	id := head
	for id != InvalidPageID {
		mem, err := vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return fmt.Errorf("overflow: attach %d: %w", id, err)
		}
		next := nextOf(mem.Bytes())
		if err := vf.DetachPage(id, false, false); err != nil {
			return err
		}
		vf.FreePage(id)
		id = next
	}
	return nil
}
