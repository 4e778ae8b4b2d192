package inverted

// ShortLeaf evaluates a short-word postfix search: a query term
// shorter than the index unit expands to every index unit it
// prefixes, and the leaf merges those subterm postings. Because the
// blocker's
// sentence-head processing can index one position under more than
// one unit, the term frequency is NOT the sum of the subterm
// frequencies; it is recomputed by scanning the merged location
// iterator, cached per document.
type ShortLeaf struct {
	or     *MultiListIterator
	length int
	tf     uint32
}

// NewShortLeaf merges the subterm iterators of a short-word search.
// length is the short word's length in positions.
func NewShortLeaf(children []ListIterator, length int) *ShortLeaf {
	return &ShortLeaf{or: NewMultiListIterator(children), length: length}
}

func (l *ShortLeaf) Reset() {
	l.or.Reset()
	l.tf = 0
}

func (l *ShortLeaf) Next(target uint32) (uint32, bool) {
	l.tf = 0
	return l.or.Next(target)
}

func (l *ShortLeaf) Find(doc uint32) bool {
	l.tf = 0
	return l.or.Find(doc)
}

func (l *ShortLeaf) Current() Posting { return l.or.Current() }

func (l *ShortLeaf) TermFrequency() uint32 {
	if l.tf == 0 {
		matches := l.or.currentMatches()
		its := make([]LocationListIterator, len(matches))
		for i, c := range matches {
			its[i] = c.LocationListIterator()
		}
		merge := NewMergeLocationListIterator(its)
		l.tf = merge.Count()
		merge.Release()
	}
	return l.tf
}

func (l *ShortLeaf) LocationListIterator() LocationListIterator {
	return l.or.LocationListIterator()
}

func (l *ShortLeaf) EstimateCount(total uint32) uint32 { return l.or.EstimateCount(total) }

// NormalShortLeaf concatenates a normal leaf with a short-leaf tail:
// the compound matches where the normal part matches and the short
// part matches pos positions later.
type NormalShortLeaf struct {
	normal ListIterator
	short  ListIterator
	pos    uint32
	and    *AndLeaf
	tf     uint32
	free   []*NormalShortLeafLocationListIterator
}

// NewNormalShortLeaf pairs a normal leaf with a short-leaf tail at
// offset pos from the normal part's start.
func NewNormalShortLeaf(normal, short ListIterator, pos uint32) *NormalShortLeaf {
	return &NormalShortLeaf{
		normal: normal,
		short:  short,
		pos:    pos,
		and:    NewAndLeaf([]ListIterator{normal, short}),
	}
}

func (l *NormalShortLeaf) Reset() {
	l.and.Reset()
	l.tf = 0
}

func (l *NormalShortLeaf) Next(target uint32) (uint32, bool) {
	for {
		doc, ok := l.and.Next(target)
		if !ok {
			return 0, false
		}
		l.tf = 0
		it := l.LocationListIterator()
		loc, _ := it.LowerBound(1)
		it.Release()
		if loc != UndefinedLocation {
			return doc, true
		}
		target = doc + 1
	}
}

func (l *NormalShortLeaf) Find(doc uint32) bool {
	if !l.and.Find(doc) {
		return false
	}
	l.tf = 0
	it := l.LocationListIterator()
	loc, _ := it.LowerBound(1)
	it.Release()
	return loc != UndefinedLocation
}

func (l *NormalShortLeaf) Current() Posting { return l.normal.Current() }

func (l *NormalShortLeaf) TermFrequency() uint32 {
	if l.tf == 0 {
		it := l.LocationListIterator()
		l.tf = it.(*NormalShortLeafLocationListIterator).TermFrequency()
		it.Release()
	}
	return l.tf
}

// LocationListIterator hands out a verification iterator, reusing a
// released instance from the node's free list when one is available.
func (l *NormalShortLeaf) LocationListIterator() LocationListIterator {
	var it *NormalShortLeafLocationListIterator
	if n := len(l.free); n > 0 {
		it = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		it = &NormalShortLeafLocationListIterator{owner: l}
	}
	it.normal = l.normal.LocationListIterator()
	it.short = l.short.LocationListIterator()
	it.pos = l.pos
	it.cur = 0
	it.curLen = 0
	return it
}

func (l *NormalShortLeaf) recycle(it *NormalShortLeafLocationListIterator) {
	l.free = append(l.free, it)
}

func (l *NormalShortLeaf) EstimateCount(total uint32) uint32 {
	return l.and.EstimateCount(total)
}
