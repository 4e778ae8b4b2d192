// Package vector implements the Vector index kind: a dense,
// directly-addressed map from document ID to a (RowID,
// DocumentLength) pair, the document-metadata vector every inverted
// list consults to resolve a posting back to its owning row and to
// normalize term frequency by document length.
//
// A header page tracks document count,
// total document length and the last/min/max document ID ever
// inserted, plus (when the index is unit-distributed) per-unit
// running totals, backing a direct-addressed array of fixed-width
// slots split across as many data pages as the document ID range
// needs.
package vector

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/vfile"
)

// Entry is one document's vector slot payload. Unit is the insert unit
// it was distributed into, or -1 when the index isn't unit-distributed.
type Entry struct {
	RowID  uint32
	Length uint32
	Unit   int32
}

const slotSize = 1 + 4 + 4 + 4 // valid flag + RowID + Length + Unit

// defaultMaxDocumentLength is the per-unit length threshold default,
// 3 GiB.
const defaultMaxDocumentLength uint64 = 3 << 30

// Header layout, stored in its own page:
//
//	[0:4]   DocumentCount       (uint32 LE)
//	[4:12]  TotalDocumentLength (uint64 LE)
//	[12:16] LastDocumentID      (uint32 LE)
//	[16:20] MinDocumentID       (uint32 LE)
//	[20:24] MaxDocumentID       (uint32 LE)
//	[24:28] InsertUnit          (int32 LE)
//	[28:36] MaxDocumentLength   (uint64 LE)
//	[36:40] UnitCount           (uint32 LE)
//	[40:]   per-unit stats, 12 bytes each: DocumentCount(4) + TotalLength(8)
const (
	hdrDocCount   = 0
	hdrTotalLen   = 4
	hdrLastDocID  = 12
	hdrMinDocID   = 16
	hdrMaxDocID   = 20
	hdrInsertUnit = 24
	hdrMaxDocLen  = 28
	hdrUnitCount  = 36
	hdrUnitsOff   = 40
	unitEntrySize = 12
)

// File is one logical vector file's open handle.
type File struct {
	vf *vfile.File

	headerID  buffer.PageID
	dataPages []buffer.PageID

	entriesPerPage int
	unitCount      int

	documentCount  uint32
	totalLength    uint64
	lastDocumentID uint32
	minDocumentID  uint32
	maxDocumentID  uint32
	haveAny        bool
	units          []unitStat

	// insertUnit is the unit new inserts land in;
	// maxDocumentLength is the per-unit length threshold
	// checkInsertUnit advances
	// or doubles against. Unused when unitCount is 0.
	insertUnit        int
	maxDocumentLength uint64
}

type unitStat struct {
	DocumentCount uint32
	TotalLength   uint64
}

// Open mounts a vector file, creating its header page if this is the
// first open. unitCount is 0 for a non-distributed index.
func Open(id vfile.FileID, unitCount int, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	vf, err := vfile.Open(id, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("vector: open: %w", err)
	}
	mem, err := vf.AllocatePage()
	if err != nil {
		vf.Close()
		return nil, fmt.Errorf("vector: allocate header: %w", err)
	}
	f := &File{
		vf:             vf,
		headerID:       mem.ID(),
		entriesPerPage: pageCapacity(id.PageSize),
		unitCount:      unitCount,
		units:          make([]unitStat, unitCount),
	}
	if unitCount > 0 {
		f.maxDocumentLength = defaultMaxDocumentLength
	}
	binary.LittleEndian.PutUint32(mem.Bytes()[hdrUnitCount:], uint32(unitCount))
	if err := vf.DetachPage(f.headerID, true, false); err != nil {
		vf.Close()
		return nil, err
	}
	return f, nil
}

func pageCapacity(pageSize int) int { return pageSize / slotSize }

// Close flushes and releases the underlying logical file.
func (f *File) Close() error { return f.vf.Close() }

func (f *File) ensureDataPage(pageIndex int) (buffer.PageID, error) {
	for len(f.dataPages) <= pageIndex {
		mem, err := f.vf.AllocatePage()
		if err != nil {
			return 0, fmt.Errorf("vector: allocate data page: %w", err)
		}
		id := mem.ID()
		if err := f.vf.DetachPage(id, true, false); err != nil {
			return 0, err
		}
		f.dataPages = append(f.dataPages, id)
	}
	return f.dataPages[pageIndex], nil
}

func slotOffset(docID uint32, entriesPerPage int) (pageIndex int, offset int) {
	pageIndex = int(docID) / entriesPerPage
	offset = (int(docID) % entriesPerPage) * slotSize
	return
}

// Insert records rowID/length at docID. docID must be strictly
// greater than every previously inserted ID.
// When the file is unit-distributed (unitCount > 0 at Open), unit is
// ignored in favor of the file's own current insert unit rather than
// letting the caller pick a unit directly.
func (f *File) Insert(docID uint32, unit int, rowID uint32, length uint32) error {
	if f.unitCount > 0 {
		unit = f.insertUnit
	}

	pageIdx, off := slotOffset(docID, f.entriesPerPage)
	pageID, err := f.ensureDataPage(pageIdx)
	if err != nil {
		return err
	}
	mem, err := f.vf.AttachPhysicalPage(pageID, buffer.Write)
	if err != nil {
		return fmt.Errorf("vector: attach data page: %w", err)
	}
	buf := mem.Bytes()
	buf[off] = 1
	binary.LittleEndian.PutUint32(buf[off+1:], rowID)
	binary.LittleEndian.PutUint32(buf[off+5:], length)
	binary.LittleEndian.PutUint32(buf[off+9:], uint32(int32(unit)))
	if err := f.vf.DetachPage(pageID, true, false); err != nil {
		return err
	}

	f.documentCount++
	f.totalLength += uint64(length)
	f.lastDocumentID = docID
	if !f.haveAny {
		f.minDocumentID = docID
		f.haveAny = true
	}
	if docID > f.maxDocumentID || !f.haveAny {
		f.maxDocumentID = docID
	}
	if unit >= 0 && unit < len(f.units) {
		f.units[unit].DocumentCount++
		f.units[unit].TotalLength += uint64(length)
		f.checkInsertUnit()
	}
	return f.flushHeader()
}

// checkInsertUnit keeps units comparable in size: once the current
// insert unit's total document length exceeds
// maxDocumentLength, advance to the first unit under 90% of that
// threshold; if every unit is at or above it, double the threshold
// instead of adding more units.
func (f *File) checkInsertUnit() {
	if f.unitCount == 0 || f.units[f.insertUnit].TotalLength <= f.maxDocumentLength {
		return
	}
	maxLen := f.maxDocumentLength
	i := 0
	for ; i < f.unitCount; i++ {
		if f.units[i].TotalLength < (maxLen/10)*9 {
			break
		}
	}
	if i == f.unitCount {
		i = 0
		for f.units[i].TotalLength > maxLen {
			maxLen *= 2
		}
		f.maxDocumentLength = maxLen
	}
	f.insertUnit = i
}

// SetMaxDocumentLength overrides the per-unit length threshold
// checkInsertUnit advances or doubles against; Open seeds it to
// defaultMaxDocumentLength. Exposed so tests can exercise unit
// advance/doubling without inserting gigabytes of documents.
func (f *File) SetMaxDocumentLength(n uint64) {
	if n > 0 {
		f.maxDocumentLength = n
	}
}

// InsertUnit returns the unit the next Insert will land in.
func (f *File) InsertUnit() int { return f.insertUnit }

// MaxDocumentLength returns the current per-unit length threshold.
func (f *File) MaxDocumentLength() uint64 { return f.maxDocumentLength }

// Expunge removes docID's entry, reporting whether it existed. unit is
// accepted for non-distributed callers but the actual unit charged
// back is always the one Insert recorded in the slot itself, since a
// unit-distributed file's insert unit can have advanced since then.
func (f *File) Expunge(docID uint32, unit int) (bool, error) {
	pageIdx, off := slotOffset(docID, f.entriesPerPage)
	if pageIdx >= len(f.dataPages) {
		return false, nil
	}
	pageID := f.dataPages[pageIdx]
	mem, err := f.vf.AttachPhysicalPage(pageID, buffer.Write)
	if err != nil {
		return false, fmt.Errorf("vector: attach data page: %w", err)
	}
	buf := mem.Bytes()
	if buf[off] == 0 {
		f.vf.DetachPage(pageID, false, false)
		return false, nil
	}
	length := binary.LittleEndian.Uint32(buf[off+5:])
	storedUnit := int32(binary.LittleEndian.Uint32(buf[off+9:]))
	buf[off] = 0
	if err := f.vf.DetachPage(pageID, true, false); err != nil {
		return false, err
	}
	if f.unitCount > 0 {
		unit = int(storedUnit)
	}

	f.documentCount--
	f.totalLength -= uint64(length)
	if unit >= 0 && unit < len(f.units) {
		f.units[unit].DocumentCount--
		f.units[unit].TotalLength -= uint64(length)
	}
	return true, f.flushHeader()
}

// Find looks up docID, reporting whether it has a live entry.
func (f *File) Find(docID uint32) (Entry, bool, error) {
	pageIdx, off := slotOffset(docID, f.entriesPerPage)
	if pageIdx >= len(f.dataPages) {
		return Entry{}, false, nil
	}
	pageID := f.dataPages[pageIdx]
	mem, err := f.vf.AttachPhysicalPage(pageID, buffer.ReadOnly)
	if err != nil {
		return Entry{}, false, fmt.Errorf("vector: attach data page: %w", err)
	}
	defer f.vf.DetachPage(pageID, false, false)
	buf := mem.Bytes()
	if buf[off] == 0 {
		return Entry{}, false, nil
	}
	return Entry{
		RowID:  binary.LittleEndian.Uint32(buf[off+1:]),
		Length: binary.LittleEndian.Uint32(buf[off+5:]),
		Unit:   int32(binary.LittleEndian.Uint32(buf[off+9:])),
	}, true, nil
}

func (f *File) flushHeader() error {
	mem, err := f.vf.AttachPhysicalPage(f.headerID, buffer.Write)
	if err != nil {
		return fmt.Errorf("vector: attach header: %w", err)
	}
	buf := mem.Bytes()
	binary.LittleEndian.PutUint32(buf[hdrDocCount:], f.documentCount)
	binary.LittleEndian.PutUint64(buf[hdrTotalLen:], f.totalLength)
	binary.LittleEndian.PutUint32(buf[hdrLastDocID:], f.lastDocumentID)
	binary.LittleEndian.PutUint32(buf[hdrMinDocID:], f.minDocumentID)
	binary.LittleEndian.PutUint32(buf[hdrMaxDocID:], f.maxDocumentID)
	binary.LittleEndian.PutUint32(buf[hdrInsertUnit:], uint32(int32(f.insertUnit)))
	binary.LittleEndian.PutUint64(buf[hdrMaxDocLen:], f.maxDocumentLength)
	for i, u := range f.units {
		off := hdrUnitsOff + i*unitEntrySize
		binary.LittleEndian.PutUint32(buf[off:], u.DocumentCount)
		binary.LittleEndian.PutUint64(buf[off+4:], u.TotalLength)
	}
	return f.vf.DetachPage(f.headerID, true, false)
}

// DocumentCount is the number of live entries.
func (f *File) DocumentCount() uint32 { return f.documentCount }

// TotalDocumentLength is the running sum of every live entry's Length.
func (f *File) TotalDocumentLength() uint64 { return f.totalLength }

// AverageDocumentLength divides TotalDocumentLength by DocumentCount,
// returning 0 when the vector is empty.
func (f *File) AverageDocumentLength() float64 {
	if f.documentCount == 0 {
		return 0
	}
	return float64(f.totalLength) / float64(f.documentCount)
}

// LastDocumentID is the most recently inserted document ID.
func (f *File) LastDocumentID() uint32 { return f.lastDocumentID }

// MinDocumentID is the first document ID ever inserted.
func (f *File) MinDocumentID() uint32 { return f.minDocumentID }

// MaxDocumentID is the largest document ID ever inserted.
func (f *File) MaxDocumentID() uint32 { return f.maxDocumentID }

// UnitDocumentCount returns the live entry count attributed to unit.
func (f *File) UnitDocumentCount(unit int) uint32 {
	if unit < 0 || unit >= len(f.units) {
		return 0
	}
	return f.units[unit].DocumentCount
}

// UnitTotalDocumentLength returns the total length attributed to unit.
func (f *File) UnitTotalDocumentLength(unit int) uint64 {
	if unit < 0 || unit >= len(f.units) {
		return 0
	}
	return f.units[unit].TotalLength
}
