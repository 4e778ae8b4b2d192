// Package btree implements the B-tree index kind: a
// disk-resident B+Tree keyed on an opaque byte-string key, storing
// either an inline value or a pointer into an overflow chain for
// values too large to fit on one page. Pages are reached
// through a vfile.File's fix/unfix protocol instead of a direct
// Pager.ReadPage/WritePage.
package btree

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/index/overflow"
	"github.com/doquedb/sydcore/internal/vfile"
)

const invalidPageID buffer.PageID = overflow.InvalidPageID

// Tree is one B+Tree's open handle.
type Tree struct {
	vf             *vfile.File
	root           buffer.PageID
	overflowThresh int
}

func overflowThresholdFor(pageSize int) int {
	usable := pageSize - slotDirOff - 64
	t := usable / 4
	if t < 256 {
		t = 256
	}
	return t
}

// Create opens a brand-new B-tree with an empty leaf root.
func Create(id vfile.FileID, cancel vfile.CancelFunc, logger *zap.Logger) (*Tree, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("btree: open: %w", err)
	}
	mem, err := vf.AllocatePage()
	if err != nil {
		vf.Close()
		return nil, fmt.Errorf("btree: allocate root: %w", err)
	}
	initPage(mem.Bytes(), true)
	rootID := mem.ID()
	if err := vf.DetachPage(rootID, true, false); err != nil {
		vf.Close()
		return nil, err
	}
	return &Tree{vf: vf, root: rootID, overflowThresh: overflowThresholdFor(id.PageSize)}, nil
}

// Open reopens a B-tree whose root page ID was previously persisted
// by the owning schema object.
func Open(id vfile.FileID, root buffer.PageID, cancel vfile.CancelFunc, logger *zap.Logger) (*Tree, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("btree: open: %w", err)
	}
	return &Tree{vf: vf, root: root, overflowThresh: overflowThresholdFor(id.PageSize)}, nil
}

// Root returns the tree's current root page ID, to persist alongside
// the owning index's schema object.
func (t *Tree) Root() buffer.PageID { return t.root }

// Close flushes and releases the underlying logical file.
func (t *Tree) Close() error { return t.vf.Close() }

// Get looks up key, transparently dereferencing an overflow chain.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	leafID, err := t.findLeaf(key)
	if err != nil {
		return nil, false, err
	}
	mem, err := t.vf.AttachPhysicalPage(leafID, buffer.ReadOnly)
	if err != nil {
		return nil, false, err
	}
	defer t.vf.DetachPage(leafID, false, false)

	p := wrapPage(mem.Bytes())
	pos, found := p.findLeaf(key)
	if !found {
		return nil, false, nil
	}
	e := p.getLeaf(pos)
	if e.Overflow {
		val, err := overflow.Read(t.vf, e.OverflowHead)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil
	}
	return e.Value, true, nil
}

func (t *Tree) findLeaf(key []byte) (buffer.PageID, error) {
	id := t.root
	for {
		mem, err := t.vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return 0, err
		}
		p := wrapPage(mem.Bytes())
		if p.isLeaf() {
			t.vf.DetachPage(id, false, false)
			return id, nil
		}
		child := p.findChild(key)
		t.vf.DetachPage(id, false, false)
		id = child
	}
}

func (t *Tree) pathToLeaf(key []byte) ([]buffer.PageID, error) {
	var path []buffer.PageID
	id := t.root
	for {
		path = append(path, id)
		mem, err := t.vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return nil, err
		}
		p := wrapPage(mem.Bytes())
		if p.isLeaf() {
			t.vf.DetachPage(id, false, false)
			return path, nil
		}
		child := p.findChild(key)
		t.vf.DetachPage(id, false, false)
		id = child
	}
}

// Insert adds or replaces the value stored at key.
func (t *Tree) Insert(key, value []byte) error {
	e := leafEntry{Key: key}
	if len(value) > t.overflowThresh {
		head, err := overflow.Write(t.vf, value)
		if err != nil {
			return err
		}
		e.Overflow, e.OverflowHead, e.TotalSize = true, head, uint32(len(value))
	} else {
		e.Value = value
	}
	return t.insertIntoTree(key, e)
}

func (t *Tree) insertIntoTree(key []byte, e leafEntry) error {
	path, err := t.pathToLeaf(key)
	if err != nil {
		return err
	}
	leafID := path[len(path)-1]
	mem, err := t.vf.AttachPhysicalPage(leafID, buffer.Write)
	if err != nil {
		return err
	}
	p := wrapPage(mem.Bytes())

	if pos, found := p.findLeaf(key); found {
		old := p.getLeaf(pos)
		if old.Overflow {
			overflow.Free(t.vf, old.OverflowHead)
		}
		if err := p.updateLeaf(pos, e); err != nil {
			t.vf.DetachPage(leafID, false, false)
			return t.insertWithSplit(path, e)
		}
		return t.vf.DetachPage(leafID, true, false)
	}

	if _, err := p.insertLeaf(e); err != nil {
		t.vf.DetachPage(leafID, false, false)
		return t.insertWithSplit(path, e)
	}
	return t.vf.DetachPage(leafID, true, false)
}

func (t *Tree) insertWithSplit(path []buffer.PageID, e leafEntry) error {
	leafID := path[len(path)-1]
	mem, err := t.vf.AttachPhysicalPage(leafID, buffer.Write)
	if err != nil {
		return err
	}
	p := wrapPage(mem.Bytes())

	entries := p.allLeaf()
	var merged []leafEntry
	inserted := false
	for _, cur := range entries {
		if bytes.Equal(cur.Key, e.Key) {
			if cur.Overflow {
				overflow.Free(t.vf, cur.OverflowHead)
			}
			continue
		}
		if !inserted && bytes.Compare(e.Key, cur.Key) <= 0 {
			merged = append(merged, e)
			inserted = true
		}
		merged = append(merged, cur)
	}
	if !inserted {
		merged = append(merged, e)
	}

	mid := len(merged) / 2
	leftEntries, rightEntries := merged[:mid], merged[mid:]
	splitKey := rightEntries[0].Key

	leftBuf := make([]byte, len(mem.Bytes()))
	leftPage := initPage(leftBuf, true)
	for _, cur := range leftEntries {
		if _, err := leftPage.insertLeaf(cur); err != nil {
			t.vf.DetachPage(leafID, false, false)
			return fmt.Errorf("btree: split left insert: %w", err)
		}
	}

	rightMem, err := t.vf.AllocatePage()
	if err != nil {
		t.vf.DetachPage(leafID, false, false)
		return err
	}
	rightID := rightMem.ID()
	rightPage := initPage(rightMem.Bytes(), true)
	for _, cur := range rightEntries {
		if _, err := rightPage.insertLeaf(cur); err != nil {
			t.vf.DetachPage(leafID, false, false)
			t.vf.DetachPage(rightID, false, false)
			return fmt.Errorf("btree: split right insert: %w", err)
		}
	}

	oldNext := p.nextLeaf()
	leftPage.setNextLeaf(rightID)
	leftPage.setPrevLeaf(p.prevLeaf())
	rightPage.setPrevLeaf(leafID)
	rightPage.setNextLeaf(oldNext)
	copy(mem.Bytes(), leftBuf)

	if err := t.vf.DetachPage(leafID, true, false); err != nil {
		return err
	}
	if err := t.vf.DetachPage(rightID, true, false); err != nil {
		return err
	}

	if oldNext != invalidPageID {
		if nextMem, err := t.vf.AttachPhysicalPage(oldNext, buffer.Write); err == nil {
			wrapPage(nextMem.Bytes()).setPrevLeaf(rightID)
			t.vf.DetachPage(oldNext, true, false)
		}
	}

	return t.insertIntoParent(path[:len(path)-1], leafID, splitKey, rightID)
}

// insertIntoParent threads a freshly split child's separator key into
// path's last page: leftID keeps the old child's slot, key is the
// smallest key now routed to rightID.
func (t *Tree) insertIntoParent(path []buffer.PageID, leftID buffer.PageID, key []byte, rightID buffer.PageID) error {
	if len(path) == 0 {
		return t.createNewRoot(leftID, key, rightID)
	}

	parentID := path[len(path)-1]
	mem, err := t.vf.AttachPhysicalPage(parentID, buffer.Write)
	if err != nil {
		return err
	}
	p := wrapPage(mem.Bytes())

	pos := p.searchInternal(key)
	if err := p.insertInternal(internalEntry{ChildID: leftID, Key: key}); err != nil {
		t.vf.DetachPage(parentID, false, false)
		return t.splitInternal(path, leftID, key, rightID)
	}
	if pos+1 < p.slotCount() {
		p.setInternalChild(pos+1, rightID)
	} else {
		p.setRightChild(rightID)
	}
	return t.vf.DetachPage(parentID, true, false)
}

func (t *Tree) splitInternal(path []buffer.PageID, leftChildID buffer.PageID, key []byte, rightChildID buffer.PageID) error {
	parentID := path[len(path)-1]
	mem, err := t.vf.AttachPhysicalPage(parentID, buffer.Write)
	if err != nil {
		return err
	}
	p := wrapPage(mem.Bytes())
	oldRight := p.rightChild()

	entries := p.allInternal()
	var merged []internalEntry
	inserted := false
	for _, cur := range entries {
		if !inserted && bytes.Compare(key, cur.Key) < 0 {
			merged = append(merged, internalEntry{ChildID: leftChildID, Key: key})
			inserted = true
		}
		merged = append(merged, cur)
	}
	if !inserted {
		merged = append(merged, internalEntry{ChildID: leftChildID, Key: key})
	}
	// The child pointer that used to follow the pre-split key now
	// routes to rightChildID: find it by Key and patch ChildID. If key
	// is the last separator, the following pointer is oldRight itself,
	// patched below once oldRight is captured.
	patchedFollower := false
	for i := range merged {
		if bytes.Equal(merged[i].Key, key) && i+1 < len(merged) {
			merged[i+1].ChildID = rightChildID
			patchedFollower = true
		}
	}
	if !patchedFollower {
		oldRight = rightChildID
	}

	mid := len(merged) / 2
	pushUp := merged[mid]
	leftEntries := merged[:mid]
	rightEntries := merged[mid+1:]

	leftBuf := make([]byte, len(mem.Bytes()))
	leftPage := initPage(leftBuf, false)
	for _, cur := range leftEntries {
		if err := leftPage.insertInternal(cur); err != nil {
			t.vf.DetachPage(parentID, false, false)
			return fmt.Errorf("btree: split internal left: %w", err)
		}
	}
	leftPage.setRightChild(pushUp.ChildID)

	rightMem, err := t.vf.AllocatePage()
	if err != nil {
		t.vf.DetachPage(parentID, false, false)
		return err
	}
	rightID := rightMem.ID()
	rightPage := initPage(rightMem.Bytes(), false)
	for _, cur := range rightEntries {
		if err := rightPage.insertInternal(cur); err != nil {
			t.vf.DetachPage(parentID, false, false)
			t.vf.DetachPage(rightID, false, false)
			return fmt.Errorf("btree: split internal right: %w", err)
		}
	}
	rightPage.setRightChild(oldRight)

	copy(mem.Bytes(), leftBuf)
	if err := t.vf.DetachPage(parentID, true, false); err != nil {
		return err
	}
	if err := t.vf.DetachPage(rightID, true, false); err != nil {
		return err
	}

	return t.insertIntoParent(path[:len(path)-1], parentID, pushUp.Key, rightID)
}

func (t *Tree) createNewRoot(leftID buffer.PageID, key []byte, rightID buffer.PageID) error {
	mem, err := t.vf.AllocatePage()
	if err != nil {
		return err
	}
	rootID := mem.ID()
	p := initPage(mem.Bytes(), false)
	if err := p.insertInternal(internalEntry{ChildID: leftID, Key: key}); err != nil {
		t.vf.DetachPage(rootID, false, false)
		return err
	}
	p.setRightChild(rightID)
	if err := t.vf.DetachPage(rootID, true, false); err != nil {
		return err
	}
	t.root = rootID
	return nil
}

// Delete removes key, freeing its overflow chain if it had one.
func (t *Tree) Delete(key []byte) (bool, error) {
	leafID, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	mem, err := t.vf.AttachPhysicalPage(leafID, buffer.Write)
	if err != nil {
		return false, err
	}
	p := wrapPage(mem.Bytes())
	pos, found := p.findLeaf(key)
	if !found {
		t.vf.DetachPage(leafID, false, false)
		return false, nil
	}
	e := p.getLeaf(pos)
	if e.Overflow {
		if err := overflow.Free(t.vf, e.OverflowHead); err != nil {
			t.vf.DetachPage(leafID, false, false)
			return false, err
		}
	}
	if err := p.deleteRecordAt(pos); err != nil {
		t.vf.DetachPage(leafID, false, false)
		return false, err
	}
	return true, t.vf.DetachPage(leafID, true, false)
}

// ScanRange visits every key in [startKey, endKey] in ascending order
// (endKey nil means no upper bound), stopping early if fn returns
// false.
func (t *Tree) ScanRange(startKey, endKey []byte, fn func(key, value []byte) bool) error {
	leafID, err := t.findLeaf(startKey)
	if err != nil {
		return err
	}

	for leafID != invalidPageID {
		mem, err := t.vf.AttachPhysicalPage(leafID, buffer.ReadOnly)
		if err != nil {
			return err
		}
		p := wrapPage(mem.Bytes())
		sc := p.slotCount()
		next := p.nextLeaf()

		cont := true
		for i := 0; i < sc && cont; i++ {
			e := p.getLeaf(i)
			if bytes.Compare(e.Key, startKey) < 0 {
				continue
			}
			if endKey != nil && bytes.Compare(e.Key, endKey) > 0 {
				cont = false
				next = invalidPageID
				break
			}
			val := e.Value
			if e.Overflow {
				val, err = overflow.Read(t.vf, e.OverflowHead)
				if err != nil {
					t.vf.DetachPage(leafID, false, false)
					return err
				}
			}
			if !fn(e.Key, val) {
				cont = false
				next = invalidPageID
			}
		}
		if err := t.vf.DetachPage(leafID, false, false); err != nil {
			return err
		}
		leafID = next
	}
	return nil
}

// Count returns the number of live keys in the tree.
func (t *Tree) Count() (int, error) {
	id := t.root
	for {
		mem, err := t.vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return 0, err
		}
		p := wrapPage(mem.Bytes())
		if p.isLeaf() {
			t.vf.DetachPage(id, false, false)
			break
		}
		var next buffer.PageID
		if p.slotCount() > 0 {
			next = p.getInternal(0).ChildID
		} else {
			next = p.rightChild()
		}
		t.vf.DetachPage(id, false, false)
		id = next
	}

	count := 0
	for id != invalidPageID {
		mem, err := t.vf.AttachPhysicalPage(id, buffer.ReadOnly)
		if err != nil {
			return 0, err
		}
		p := wrapPage(mem.Bytes())
		count += p.slotCount()
		next := p.nextLeaf()
		t.vf.DetachPage(id, false, false)
		id = next
	}
	return count, nil
}
