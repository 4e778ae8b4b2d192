// Package kdtree implements the KD-tree index kind: a
// page-resident binary tree over fixed-width numeric keys, used for
// range queries over multi-dimensional columns, distinct from the
// dense document-ID vector in internal/index/vector.
//
// The per-node tree shape is the classic kd-tree: alternate the
// splitting axis by depth, with standard bounded range-query pruning.
// Each node lives on its own page, reached through the same
// fix/unfix lifecycle as every other index kind.
package kdtree

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/vfile"
)

const invalidPageID buffer.PageID = 0

// Node layout within a page:
//
//	[0:1]   valid byte
//	[1:5]   RowID    (uint32 LE)
//	[5:9]   LeftChild  (PageID, uint32 LE)
//	[9:13]  RightChild (PageID, uint32 LE)
//	[13:13+8*dims] Key ([]float64, 8 bytes each, LE bit pattern)
const (
	validOff = 0
	rowIDOff = 1
	leftOff  = 5
	rightOff = 9
	keyOff   = 13
)

// Tree is one logical kd-tree file's open handle, over points of a
// fixed dimensionality.
type Tree struct {
	vf    *vfile.File
	dims  int
	root  buffer.PageID
	count int
}

// Open mounts a kd-tree file of the given dimensionality. The root
// pointer and node count live in memory only, the same documented
// limitation carried by internal/index/record's slot directory.
func Open(id vfile.FileID, dims int, cancel vfile.CancelFunc, logger *zap.Logger) (*Tree, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("kdtree: dims must be positive, got %d", dims)
	}
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("kdtree: open: %w", err)
	}
	return &Tree{vf: vf, dims: dims, root: invalidPageID}, nil
}

// Close flushes and releases the underlying logical file.
func (t *Tree) Close() error { return t.vf.Close() }

// Count reports how many points are stored.
func (t *Tree) Count() int { return t.count }

func readKey(buf []byte, dims int) []float64 {
	key := make([]float64, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint64(buf[keyOff+i*8:])
		key[i] = math.Float64frombits(bits)
	}
	return key
}

func writeNode(buf []byte, key []float64, rowID uint32, left, right buffer.PageID) {
	buf[validOff] = 1
	binary.LittleEndian.PutUint32(buf[rowIDOff:], rowID)
	binary.LittleEndian.PutUint32(buf[leftOff:], uint32(left))
	binary.LittleEndian.PutUint32(buf[rightOff:], uint32(right))
	for i, v := range key {
		binary.LittleEndian.PutUint64(buf[keyOff+i*8:], math.Float64bits(v))
	}
}

func (t *Tree) newNode(key []float64, rowID uint32, left, right buffer.PageID) (buffer.PageID, error) {
	mem, err := t.vf.AllocatePage()
	if err != nil {
		return invalidPageID, fmt.Errorf("kdtree: allocate node: %w", err)
	}
	writeNode(mem.Bytes(), key, rowID, left, right)
	id := mem.ID()
	if err := t.vf.DetachPage(id, true, false); err != nil {
		return invalidPageID, err
	}
	return id, nil
}

// Insert adds a point with the given key and row ID.
func (t *Tree) Insert(key []float64, rowID uint32) error {
	if len(key) != t.dims {
		return fmt.Errorf("kdtree: key has %d dims, want %d", len(key), t.dims)
	}
	if t.root == invalidPageID {
		id, err := t.newNode(key, rowID, invalidPageID, invalidPageID)
		if err != nil {
			return err
		}
		t.root = id
		t.count++
		return nil
	}

	cur := t.root
	depth := 0
	for {
		mem, err := t.vf.AttachPhysicalPage(cur, buffer.Write)
		if err != nil {
			return fmt.Errorf("kdtree: attach node: %w", err)
		}
		buf := mem.Bytes()
		nodeKey := readKey(buf, t.dims)
		axis := depth % t.dims

		var childOff int
		var childID buffer.PageID
		if key[axis] < nodeKey[axis] {
			childOff = leftOff
			childID = buffer.PageID(binary.LittleEndian.Uint32(buf[leftOff:]))
		} else {
			childOff = rightOff
			childID = buffer.PageID(binary.LittleEndian.Uint32(buf[rightOff:]))
		}

		if childID == invalidPageID {
			newID, err := t.newNode(key, rowID, invalidPageID, invalidPageID)
			if err != nil {
				t.vf.DetachPage(cur, false, false)
				return err
			}
			binary.LittleEndian.PutUint32(buf[childOff:], uint32(newID))
			if err := t.vf.DetachPage(cur, true, false); err != nil {
				return err
			}
			t.count++
			return nil
		}
		if err := t.vf.DetachPage(cur, false, false); err != nil {
			return err
		}
		cur = childID
		depth++
	}
}

// RangeQuery visits every stored row ID whose key falls within
// [min, max] on every dimension, stopping early if visit returns
// false.
func (t *Tree) RangeQuery(min, max []float64, visit func(rowID uint32, key []float64) bool) error {
	if len(min) != t.dims || len(max) != t.dims {
		return fmt.Errorf("kdtree: min/max must have %d dims", t.dims)
	}
	_, err := t.rangeSearch(t.root, 0, min, max, visit)
	return err
}

// rangeSearch returns ok=false once visit has asked to stop early.
func (t *Tree) rangeSearch(id buffer.PageID, depth int, min, max []float64, visit func(uint32, []float64) bool) (bool, error) {
	if id == invalidPageID {
		return true, nil
	}
	mem, err := t.vf.AttachPhysicalPage(id, buffer.ReadOnly)
	if err != nil {
		return false, fmt.Errorf("kdtree: attach node: %w", err)
	}
	buf := mem.Bytes()
	rowID := binary.LittleEndian.Uint32(buf[rowIDOff:])
	left := buffer.PageID(binary.LittleEndian.Uint32(buf[leftOff:]))
	right := buffer.PageID(binary.LittleEndian.Uint32(buf[rightOff:]))
	key := readKey(buf, t.dims)
	if err := t.vf.DetachPage(id, false, false); err != nil {
		return false, err
	}

	inRange := true
	for i := range key {
		if key[i] < min[i] || key[i] > max[i] {
			inRange = false
			break
		}
	}
	if inRange {
		if !visit(rowID, key) {
			return false, nil
		}
	}

	axis := depth % t.dims
	if min[axis] <= key[axis] {
		ok, err := t.rangeSearch(left, depth+1, min, max, visit)
		if err != nil || !ok {
			return ok, err
		}
	}
	if max[axis] >= key[axis] {
		ok, err := t.rangeSearch(right, depth+1, min, max, visit)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}
