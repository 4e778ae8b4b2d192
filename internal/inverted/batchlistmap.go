package inverted

// BatchListMap is the in-memory accumulator a bulk load stages
// postings into before they're merged onto disk: a term→list map
// plus running totals
// (list size, last document ID, max ROWID) tracked as postings are
// added so a flush can report how much work it did without
// re-scanning everything it just wrote.
type BatchListMap struct {
	lists          map[string]*PostingList
	listSize       uint32
	lastDocumentID uint32
	maxRowID       uint32
}

// NewBatchListMap returns an empty accumulator.
func NewBatchListMap() *BatchListMap {
	return &BatchListMap{lists: make(map[string]*PostingList)}
}

// Add stages one term occurrence for docID.
func (m *BatchListMap) Add(docID uint32, rowID uint32, term string, positions []uint32) {
	list, ok := m.lists[term]
	if !ok {
		list = &PostingList{Term: term}
		m.lists[term] = list
	}
	list.Insert(Posting{DocumentID: docID, TermFrequency: uint32(len(positions)), Locations: positions})

	m.listSize++
	if docID > m.lastDocumentID {
		m.lastDocumentID = docID
	}
	if rowID > m.maxRowID {
		m.maxRowID = rowID
	}
}

// Remove un-stages term's posting for docID, for an expunge that
// lands before the next flush.
func (m *BatchListMap) Remove(docID uint32, term string) bool {
	list, ok := m.lists[term]
	if !ok {
		return false
	}
	removed := list.Expunge(docID)
	if removed && len(list.Postings) == 0 {
		delete(m.lists, term)
	}
	return removed
}

// Terms returns every staged term's posting list.
func (m *BatchListMap) Terms() map[string]*PostingList { return m.lists }

// ListSize is the total number of staged postings across every term.
func (m *BatchListMap) ListSize() uint32 { return m.listSize }

// LastDocumentID is the largest document ID ever staged.
func (m *BatchListMap) LastDocumentID() uint32 { return m.lastDocumentID }

// MaxRowID is the largest ROWID ever staged.
func (m *BatchListMap) MaxRowID() uint32 { return m.maxRowID }

// Reset clears every staged term, after a successful flush.
func (m *BatchListMap) Reset() {
	m.lists = make(map[string]*PostingList)
	m.listSize = 0
}
