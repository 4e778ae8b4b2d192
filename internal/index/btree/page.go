package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/doquedb/sydcore/internal/buffer"
)

// Layout of a B-tree page's payload, starting at offset 0 (vfile
// pages carry no common header prefix of their own):
//
//	[0]     IsLeaf       (uint8 — 1=leaf, 0=internal)
//	[1:5]   RightChild    (uint32 LE, internal) / NextLeaf (uint32 LE, leaf)
//	[5:9]   PrevLeaf      (uint32 LE, leaf only)
//	[9:11]  SlotCount     (uint16 LE)
//	[11:13] FreeSpaceEnd  (uint16 LE)
//	[13:13+4*SlotCount]   slot directory (Offset uint16, Length uint16 per slot)
//	...free space...
//	[FreeSpaceEnd:pageSize] records, growing downward
//
// Internal record: [0:4] ChildID (uint32 LE) [4:6] KeyLen (uint16 LE) [6:6+K] Key.
// Leaf record: [0:2] KeyLen [2:2+K] Key [K+2:K+4] Flags (bit0=overflow)
// then either {OverflowHead uint32, TotalSize uint32} or {ValLen uint16, Value}.
const (
	isLeafOff    = 0
	metaOff      = 1  // RightChild (internal) or NextLeaf (leaf)
	prevLeafOff  = 5  // leaf only
	slotHdrOff   = 9  // SlotCount(2) + FreeSpaceEnd(2)
	slotDirOff   = slotHdrOff + 4
	slotEntrySize = 4

	leafFlagOverflow uint16 = 1 << 0
)

type slotEntry struct {
	Offset uint16
	Length uint16
}

// page wraps one B-tree node's raw payload.
type page struct {
	buf []byte
}

func wrapPage(buf []byte) *page { return &page{buf: buf} }

func initPage(buf []byte, leaf bool) *page {
	p := &page{buf: buf}
	if leaf {
		buf[isLeafOff] = 1
	} else {
		buf[isLeafOff] = 0
	}
	binary.LittleEndian.PutUint32(buf[metaOff:], uint32(invalidPageID))
	binary.LittleEndian.PutUint32(buf[prevLeafOff:], uint32(invalidPageID))
	p.setSlotCount(0)
	p.setFreeSpaceEnd(len(buf))
	return p
}

func (p *page) isLeaf() bool { return p.buf[isLeafOff] == 1 }

func (p *page) rightChild() buffer.PageID {
	return buffer.PageID(binary.LittleEndian.Uint32(p.buf[metaOff:]))
}
func (p *page) setRightChild(id buffer.PageID) {
	binary.LittleEndian.PutUint32(p.buf[metaOff:], uint32(id))
}
func (p *page) nextLeaf() buffer.PageID {
	return buffer.PageID(binary.LittleEndian.Uint32(p.buf[metaOff:]))
}
func (p *page) setNextLeaf(id buffer.PageID) {
	binary.LittleEndian.PutUint32(p.buf[metaOff:], uint32(id))
}
func (p *page) prevLeaf() buffer.PageID {
	return buffer.PageID(binary.LittleEndian.Uint32(p.buf[prevLeafOff:]))
}
func (p *page) setPrevLeaf(id buffer.PageID) {
	binary.LittleEndian.PutUint32(p.buf[prevLeafOff:], uint32(id))
}

func (p *page) slotCount() int { return int(binary.LittleEndian.Uint16(p.buf[slotHdrOff:])) }
func (p *page) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(p.buf[slotHdrOff:], uint16(n))
}
func (p *page) freeSpaceEnd() int { return int(binary.LittleEndian.Uint16(p.buf[slotHdrOff+2:])) }
func (p *page) setFreeSpaceEnd(off int) {
	binary.LittleEndian.PutUint16(p.buf[slotHdrOff+2:], uint16(off))
}
func (p *page) slotDirEnd() int { return slotDirOff + p.slotCount()*slotEntrySize }
func (p *page) freeSpace() int  { return p.freeSpaceEnd() - p.slotDirEnd() - slotEntrySize }

func (p *page) getSlot(i int) slotEntry {
	off := slotDirOff + i*slotEntrySize
	return slotEntry{
		Offset: binary.LittleEndian.Uint16(p.buf[off:]),
		Length: binary.LittleEndian.Uint16(p.buf[off+2:]),
	}
}
func (p *page) setSlot(i int, e slotEntry) {
	off := slotDirOff + i*slotEntrySize
	binary.LittleEndian.PutUint16(p.buf[off:], e.Offset)
	binary.LittleEndian.PutUint16(p.buf[off+2:], e.Length)
}

func (p *page) getRecord(i int) []byte {
	e := p.getSlot(i)
	return p.buf[e.Offset : e.Offset+e.Length]
}

func (p *page) appendRecord(data []byte) (int, error) {
	if p.freeSpace() < len(data) {
		return -1, fmt.Errorf("btree: page full: need %d, have %d", len(data), p.freeSpace())
	}
	newEnd := p.freeSpaceEnd() - len(data)
	copy(p.buf[newEnd:], data)
	p.setFreeSpaceEnd(newEnd)
	idx := p.slotCount()
	p.setSlot(idx, slotEntry{Offset: uint16(newEnd), Length: uint16(len(data))})
	p.setSlotCount(idx + 1)
	return idx, nil
}

func (p *page) insertRecordAt(pos int, data []byte) error {
	if p.freeSpace() < len(data) {
		return fmt.Errorf("btree: page full: need %d, have %d", len(data), p.freeSpace())
	}
	newEnd := p.freeSpaceEnd() - len(data)
	copy(p.buf[newEnd:], data)
	p.setFreeSpaceEnd(newEnd)

	sc := p.slotCount()
	p.setSlotCount(sc + 1)
	for i := sc; i > pos; i-- {
		p.setSlot(i, p.getSlot(i-1))
	}
	p.setSlot(pos, slotEntry{Offset: uint16(newEnd), Length: uint16(len(data))})
	return nil
}

func (p *page) deleteRecordAt(pos int) error {
	sc := p.slotCount()
	if pos < 0 || pos >= sc {
		return fmt.Errorf("btree: slot %d out of range [0..%d)", pos, sc)
	}
	for i := pos; i < sc-1; i++ {
		p.setSlot(i, p.getSlot(i+1))
	}
	p.setSlot(sc-1, slotEntry{})
	p.setSlotCount(sc - 1)
	return nil
}

// ── Internal node entries ──────────────────────────────────────────

// internalEntry is a separator key paired with its left child: the
// page at i-1's interval ends and ChildID's interval begins wherever
// a search key is < Key. See findChild for the traversal rule this
// layout implies.
type internalEntry struct {
	ChildID buffer.PageID
	Key     []byte
}

func marshalInternal(e internalEntry) []byte {
	rec := make([]byte, 6+len(e.Key))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(e.ChildID))
	binary.LittleEndian.PutUint16(rec[4:6], uint16(len(e.Key)))
	copy(rec[6:], e.Key)
	return rec
}

func unmarshalInternal(rec []byte) internalEntry {
	child := buffer.PageID(binary.LittleEndian.Uint32(rec[0:4]))
	kl := int(binary.LittleEndian.Uint16(rec[4:6]))
	key := append([]byte(nil), rec[6:6+kl]...)
	return internalEntry{ChildID: child, Key: key}
}

func (p *page) getInternal(i int) internalEntry { return unmarshalInternal(p.getRecord(i)) }

// setInternalChild patches an existing entry's ChildID without moving
// its slot, since ChildID is a fixed-width field at the front of the
// record.
func (p *page) setInternalChild(i int, id buffer.PageID) {
	e := p.getSlot(i)
	binary.LittleEndian.PutUint32(p.buf[e.Offset:], uint32(id))
}

func (p *page) searchInternal(key []byte) int {
	lo, hi := 0, p.slotCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(p.getInternal(mid).Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (p *page) insertInternal(e internalEntry) error {
	pos := p.searchInternal(e.Key)
	if err := p.insertRecordAt(pos, marshalInternal(e)); err != nil {
		return err
	}
	return nil
}

// findChild returns the child to follow for key: the first entry
// whose Key is > key, or rightChild if key is >= every separator.
func (p *page) findChild(key []byte) buffer.PageID {
	sc := p.slotCount()
	for i := 0; i < sc; i++ {
		e := p.getInternal(i)
		if bytes.Compare(key, e.Key) < 0 {
			return e.ChildID
		}
	}
	return p.rightChild()
}

func (p *page) allInternal() []internalEntry {
	sc := p.slotCount()
	out := make([]internalEntry, sc)
	for i := range out {
		out[i] = p.getInternal(i)
	}
	return out
}

// ── Leaf entries ───────────────────────────────────────────────────

// leafEntry is one key's stored value: either inline Value, or a
// pointer to an overflow chain when Value would not fit on the page.
type leafEntry struct {
	Key            []byte
	Value          []byte
	Overflow       bool
	OverflowHead   buffer.PageID
	TotalSize      uint32
}

func marshalLeaf(e leafEntry) []byte {
	kl := len(e.Key)
	if e.Overflow {
		rec := make([]byte, 2+kl+2+4+4)
		binary.LittleEndian.PutUint16(rec[0:2], uint16(kl))
		copy(rec[2:2+kl], e.Key)
		off := 2 + kl
		binary.LittleEndian.PutUint16(rec[off:off+2], leafFlagOverflow)
		binary.LittleEndian.PutUint32(rec[off+2:off+6], uint32(e.OverflowHead))
		binary.LittleEndian.PutUint32(rec[off+6:off+10], e.TotalSize)
		return rec
	}
	vl := len(e.Value)
	rec := make([]byte, 2+kl+2+2+vl)
	binary.LittleEndian.PutUint16(rec[0:2], uint16(kl))
	copy(rec[2:2+kl], e.Key)
	off := 2 + kl
	binary.LittleEndian.PutUint16(rec[off:off+2], 0)
	binary.LittleEndian.PutUint16(rec[off+2:off+4], uint16(vl))
	copy(rec[off+4:], e.Value)
	return rec
}

func unmarshalLeaf(rec []byte) leafEntry {
	kl := int(binary.LittleEndian.Uint16(rec[0:2]))
	key := append([]byte(nil), rec[2:2+kl]...)
	off := 2 + kl
	flags := binary.LittleEndian.Uint16(rec[off : off+2])
	if flags&leafFlagOverflow != 0 {
		head := buffer.PageID(binary.LittleEndian.Uint32(rec[off+2 : off+6]))
		total := binary.LittleEndian.Uint32(rec[off+6 : off+10])
		return leafEntry{Key: key, Overflow: true, OverflowHead: head, TotalSize: total}
	}
	vl := int(binary.LittleEndian.Uint16(rec[off+2 : off+4]))
	val := append([]byte(nil), rec[off+4:off+4+vl]...)
	return leafEntry{Key: key, Value: val}
}

func (p *page) getLeaf(i int) leafEntry { return unmarshalLeaf(p.getRecord(i)) }

func (p *page) searchLeaf(key []byte) int {
	lo, hi := 0, p.slotCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(p.getLeaf(mid).Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (p *page) findLeaf(key []byte) (int, bool) {
	pos := p.searchLeaf(key)
	if pos < p.slotCount() && bytes.Equal(p.getLeaf(pos).Key, key) {
		return pos, true
	}
	return -1, false
}

func (p *page) insertLeaf(e leafEntry) (int, error) {
	pos := p.searchLeaf(e.Key)
	if err := p.insertRecordAt(pos, marshalLeaf(e)); err != nil {
		return -1, err
	}
	return pos, nil
}

func (p *page) updateLeaf(pos int, e leafEntry) error {
	rec := marshalLeaf(e)
	old := p.getSlot(pos)
	if int(old.Length) >= len(rec) {
		copy(p.buf[old.Offset:], rec)
		for j := int(old.Offset) + len(rec); j < int(old.Offset+old.Length); j++ {
			p.buf[j] = 0
		}
		p.setSlot(pos, slotEntry{Offset: old.Offset, Length: uint16(len(rec))})
		return nil
	}
	if p.freeSpace()+slotEntrySize < len(rec) {
		return fmt.Errorf("btree: leaf page full on update: need %d", len(rec))
	}
	newEnd := p.freeSpaceEnd() - len(rec)
	copy(p.buf[newEnd:], rec)
	p.setFreeSpaceEnd(newEnd)
	p.setSlot(pos, slotEntry{Offset: uint16(newEnd), Length: uint16(len(rec))})
	return nil
}

func (p *page) allLeaf() []leafEntry {
	sc := p.slotCount()
	out := make([]leafEntry, sc)
	for i := range out {
		out[i] = p.getLeaf(i)
	}
	return out
}
