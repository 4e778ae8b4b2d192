package inverted

import "sort"

// ListIterator walks a document-ID-ordered sequence of postings.
// Every leaf and operator node in this package is one.
type ListIterator interface {
	// Reset rewinds the iterator to its starting position.
	Reset()
	// Next advances to the first document ID >= target and reports
	// it, or ok=false when exhausted. Pass 0 to start from the
	// beginning.
	Next(target uint32) (doc uint32, ok bool)
	// Find positions the iterator on doc, reporting whether doc is
	// present.
	Find(doc uint32) bool
	// Current returns the posting Next last produced.
	Current() Posting
	// TermFrequency is the term's occurrence count in the current
	// document.
	TermFrequency() uint32
	// LocationListIterator walks the term's occurrence positions in
	// the current document.
	LocationListIterator() LocationListIterator
	// EstimateCount estimates how many of totalDocuments this
	// iterator will produce.
	EstimateCount(totalDocuments uint32) uint32
}

// SimpleLeaf iterates a single term's PostingList directly.
type SimpleLeaf struct {
	postings []Posting
	length   int
	pos      int
}

// NewSimpleLeaf returns a leaf iterator over list's postings.
func NewSimpleLeaf(list *PostingList) *SimpleLeaf {
	return &SimpleLeaf{postings: list.Postings, length: 1, pos: -1}
}

// SetTermLength sets the term's length in positions, reported by the
// location list iterator for each occurrence.
func (l *SimpleLeaf) SetTermLength(n int) { l.length = n }

func (l *SimpleLeaf) Reset() { l.pos = -1 }

func (l *SimpleLeaf) Next(target uint32) (uint32, bool) {
	if l.pos >= 0 && l.pos < len(l.postings) && l.postings[l.pos].DocumentID >= target {
		return l.postings[l.pos].DocumentID, true
	}
	start := l.pos + 1
	i := sort.Search(len(l.postings)-start, func(i int) bool {
		return l.postings[start+i].DocumentID >= target
	})
	idx := start + i
	if idx >= len(l.postings) {
		l.pos = len(l.postings)
		return 0, false
	}
	l.pos = idx
	return l.postings[idx].DocumentID, true
}

func (l *SimpleLeaf) Find(doc uint32) bool {
	i := sort.Search(len(l.postings), func(i int) bool {
		return l.postings[i].DocumentID >= doc
	})
	if i < len(l.postings) && l.postings[i].DocumentID == doc {
		l.pos = i
		return true
	}
	return false
}

func (l *SimpleLeaf) Current() Posting {
	if l.pos < 0 || l.pos >= len(l.postings) {
		return Posting{}
	}
	return l.postings[l.pos]
}

func (l *SimpleLeaf) TermFrequency() uint32 { return l.Current().TermFrequency }

func (l *SimpleLeaf) LocationListIterator() LocationListIterator {
	return NewBasicLocationListIterator(l.Current().Locations, l.length)
}

func (l *SimpleLeaf) EstimateCount(uint32) uint32 { return uint32(len(l.postings)) }

// ArrayLeaf iterates a fixed, pre-sorted array of document IDs with no
// per-document payload beyond presence, used for array-column
// full-text indexing where a document can repeat.
type ArrayLeaf struct {
	ids []uint32
	pos int
}

// NewArrayLeaf returns a leaf iterator over a sorted document ID list.
func NewArrayLeaf(ids []uint32) *ArrayLeaf {
	return &ArrayLeaf{ids: ids, pos: -1}
}

func (l *ArrayLeaf) Reset() { l.pos = -1 }

func (l *ArrayLeaf) Next(target uint32) (uint32, bool) {
	if l.pos >= 0 && l.pos < len(l.ids) && l.ids[l.pos] >= target {
		return l.ids[l.pos], true
	}
	start := l.pos + 1
	i := sort.Search(len(l.ids)-start, func(i int) bool {
		return l.ids[start+i] >= target
	})
	idx := start + i
	if idx >= len(l.ids) {
		l.pos = len(l.ids)
		return 0, false
	}
	l.pos = idx
	return l.ids[idx], true
}

func (l *ArrayLeaf) Find(doc uint32) bool {
	i := sort.Search(len(l.ids), func(i int) bool { return l.ids[i] >= doc })
	if i < len(l.ids) && l.ids[i] == doc {
		l.pos = i
		return true
	}
	return false
}

func (l *ArrayLeaf) Current() Posting {
	if l.pos < 0 || l.pos >= len(l.ids) {
		return Posting{}
	}
	return Posting{DocumentID: l.ids[l.pos]}
}

func (l *ArrayLeaf) TermFrequency() uint32 { return l.Current().TermFrequency }

func (l *ArrayLeaf) LocationListIterator() LocationListIterator {
	return NewBasicLocationListIterator(nil, 1)
}

func (l *ArrayLeaf) EstimateCount(uint32) uint32 { return uint32(len(l.ids)) }

// DummyListIterator never produces a document. Returned for a term
// with no postings, so callers never need a nil check on the
// iterator itself.
type DummyListIterator struct{}

func (DummyListIterator) Reset()                       {}
func (DummyListIterator) Next(uint32) (uint32, bool)   { return 0, false }
func (DummyListIterator) Find(uint32) bool             { return false }
func (DummyListIterator) Current() Posting             { return Posting{} }
func (DummyListIterator) TermFrequency() uint32        { return 0 }
func (DummyListIterator) EstimateCount(uint32) uint32  { return 0 }
func (DummyListIterator) LocationListIterator() LocationListIterator {
	return NewBasicLocationListIterator(nil, 1)
}

// UnaryLeaf passes its single child through unchanged. NOT's
// "everything but" semantics need an enumerable universe of document
// IDs this core doesn't track, so UnaryLeaf only ever represents the
// identity operator.
type UnaryLeaf struct {
	Child ListIterator
}

func (l *UnaryLeaf) Reset()                            { l.Child.Reset() }
func (l *UnaryLeaf) Next(target uint32) (uint32, bool) { return l.Child.Next(target) }
func (l *UnaryLeaf) Find(doc uint32) bool              { return l.Child.Find(doc) }
func (l *UnaryLeaf) Current() Posting                  { return l.Child.Current() }
func (l *UnaryLeaf) TermFrequency() uint32             { return l.Child.TermFrequency() }
func (l *UnaryLeaf) EstimateCount(n uint32) uint32     { return l.Child.EstimateCount(n) }
func (l *UnaryLeaf) LocationListIterator() LocationListIterator {
	return l.Child.LocationListIterator()
}

// AndLeaf intersects its children: Next only reports a document
// present in every child.
type AndLeaf struct {
	children []ListIterator
}

// NewAndLeaf intersects children. Children must already be at their
// starting position (no calls to Next yet).
func NewAndLeaf(children []ListIterator) *AndLeaf {
	return &AndLeaf{children: children}
}

func (l *AndLeaf) Reset() {
	for _, c := range l.children {
		c.Reset()
	}
}

func (l *AndLeaf) Next(target uint32) (uint32, bool) {
	if len(l.children) == 0 {
		return 0, false
	}
	for {
		maxDoc := uint32(0)
		allMatch := true
		for _, c := range l.children {
			doc, ok := c.Next(target)
			if !ok {
				return 0, false
			}
			if doc != target {
				allMatch = false
			}
			if doc > maxDoc {
				maxDoc = doc
			}
		}
		if allMatch {
			return target, true
		}
		target = maxDoc
	}
}

func (l *AndLeaf) Find(doc uint32) bool {
	if len(l.children) == 0 {
		return false
	}
	for _, c := range l.children {
		if !c.Find(doc) {
			return false
		}
	}
	return true
}

func (l *AndLeaf) Current() Posting {
	if len(l.children) == 0 {
		return Posting{}
	}
	return l.children[0].Current()
}

func (l *AndLeaf) TermFrequency() uint32 { return l.Current().TermFrequency }

func (l *AndLeaf) LocationListIterator() LocationListIterator {
	return l.children[0].LocationListIterator()
}

// EstimateCount assumes term independence: N * prod(df_i/N), at
// least 1.
func (l *AndLeaf) EstimateCount(total uint32) uint32 {
	if len(l.children) == 0 || total == 0 {
		return 0
	}
	est := float64(total)
	for _, c := range l.children {
		est *= float64(c.EstimateCount(total)) / float64(total)
	}
	if est < 1 {
		return 1
	}
	return uint32(est)
}

// OperatorAndNode is the same AND intersection node under the name
// used when it sits at an operator position rather than a leaf.
type OperatorAndNode = AndLeaf

// NewOperatorAndNode is an alias constructor for OperatorAndNode.
func NewOperatorAndNode(children []ListIterator) *OperatorAndNode {
	return NewAndLeaf(children)
}

// MultiListIterator (OR) merges many children, reporting the smallest
// next document ID any of them holds.
type MultiListIterator struct {
	children []ListIterator
	active   []uint32 // children[i]'s last-fetched document, valid iff started[i] && !done[i]
	started  []bool
	done     []bool
	current  uint32
}

// NewMultiListIterator merges children with OR semantics.
func NewMultiListIterator(children []ListIterator) *MultiListIterator {
	return &MultiListIterator{
		children: children,
		active:   make([]uint32, len(children)),
		started:  make([]bool, len(children)),
		done:     make([]bool, len(children)),
	}
}

func (l *MultiListIterator) Reset() {
	for i, c := range l.children {
		c.Reset()
		l.started[i] = false
		l.done[i] = false
	}
	l.current = 0
}

func (l *MultiListIterator) Next(target uint32) (uint32, bool) {
	best := uint32(0)
	found := false
	for i, c := range l.children {
		if l.done[i] {
			continue
		}
		if !l.started[i] || l.active[i] < target {
			doc, ok := c.Next(target)
			if !ok {
				l.done[i] = true
				continue
			}
			l.active[i] = doc
			l.started[i] = true
		}
		if !found || l.active[i] < best {
			best = l.active[i]
			found = true
		}
	}
	if !found {
		return 0, false
	}
	l.current = best
	return best, true
}

func (l *MultiListIterator) Find(doc uint32) bool {
	found := false
	for i, c := range l.children {
		if c.Find(doc) {
			l.active[i] = doc
			l.started[i] = true
			l.done[i] = false
			found = true
		}
	}
	if found {
		l.current = doc
	}
	return found
}

func (l *MultiListIterator) Current() Posting {
	for i := range l.children {
		if l.started[i] && !l.done[i] && l.active[i] == l.current {
			return l.children[i].Current()
		}
	}
	return Posting{}
}

// currentMatches returns every child positioned on the current
// document, for nodes that merge per-child location lists.
func (l *MultiListIterator) currentMatches() []ListIterator {
	var out []ListIterator
	for i := range l.children {
		if l.started[i] && !l.done[i] && l.active[i] == l.current {
			out = append(out, l.children[i])
		}
	}
	return out
}

func (l *MultiListIterator) TermFrequency() uint32 { return l.Current().TermFrequency }

func (l *MultiListIterator) LocationListIterator() LocationListIterator {
	matches := l.currentMatches()
	its := make([]LocationListIterator, len(matches))
	for i, c := range matches {
		its[i] = c.LocationListIterator()
	}
	return NewMergeLocationListIterator(its)
}

// EstimateCount sums the children's estimates, capped at the
// collection size; zero children estimate zero.
func (l *MultiListIterator) EstimateCount(total uint32) uint32 {
	var est uint64
	for _, c := range l.children {
		est += uint64(c.EstimateCount(total))
	}
	if est > uint64(total) {
		return total
	}
	return uint32(est)
}

// ListIteratorWithMax bounds a child iterator to document IDs <= Max,
// used to cap a scan for a LIMIT-style query.
type ListIteratorWithMax struct {
	Child ListIterator
	Max   uint32
}

func (l *ListIteratorWithMax) Reset() { l.Child.Reset() }

func (l *ListIteratorWithMax) Next(target uint32) (uint32, bool) {
	doc, ok := l.Child.Next(target)
	if !ok || doc > l.Max {
		return 0, false
	}
	return doc, true
}

func (l *ListIteratorWithMax) Find(doc uint32) bool {
	if doc > l.Max {
		return false
	}
	return l.Child.Find(doc)
}

func (l *ListIteratorWithMax) Current() Posting          { return l.Child.Current() }
func (l *ListIteratorWithMax) TermFrequency() uint32     { return l.Child.TermFrequency() }
func (l *ListIteratorWithMax) EstimateCount(n uint32) uint32 { return l.Child.EstimateCount(n) }
func (l *ListIteratorWithMax) LocationListIterator() LocationListIterator {
	return l.Child.LocationListIterator()
}

// WithinOrderedLeafLocationListIterator matches documents where each
// adjacent child pair occurs, in order, between lower and upper token
// positions apart: the #window proximity/phrase operator.
type WithinOrderedLeafLocationListIterator struct {
	children []ListIterator
	lower    uint32
	upper    uint32
}

// NewWithinOrderedLeafLocationListIterator builds a phrase/proximity
// iterator requiring children's terms to occur in order, each
// adjacent pair between lower and upper positions apart.
func NewWithinOrderedLeafLocationListIterator(children []ListIterator, lower, upper uint32) *WithinOrderedLeafLocationListIterator {
	return &WithinOrderedLeafLocationListIterator{children: children, lower: lower, upper: upper}
}

func (l *WithinOrderedLeafLocationListIterator) Reset() {
	for _, c := range l.children {
		c.Reset()
	}
}

func (l *WithinOrderedLeafLocationListIterator) Next(target uint32) (uint32, bool) {
	and := NewAndLeaf(l.children)
	for {
		doc, ok := and.Next(target)
		if !ok {
			return 0, false
		}
		if l.matchesOrder(doc) {
			return doc, true
		}
		target = doc + 1
	}
}

func (l *WithinOrderedLeafLocationListIterator) Find(doc uint32) bool {
	for _, c := range l.children {
		if !c.Find(doc) {
			return false
		}
	}
	return l.matchesOrder(doc)
}

func (l *WithinOrderedLeafLocationListIterator) matchesOrder(doc uint32) bool {
	var prevLocs []uint32
	for i, c := range l.children {
		locs := c.Current().Locations
		if i == 0 {
			prevLocs = locs
			continue
		}
		matched := false
		for _, p := range prevLocs {
			for _, cur := range locs {
				if cur > p && cur-p >= l.lower && cur-p <= l.upper {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
		prevLocs = locs
	}
	return true
}

func (l *WithinOrderedLeafLocationListIterator) Current() Posting {
	if len(l.children) == 0 {
		return Posting{}
	}
	return l.children[0].Current()
}

func (l *WithinOrderedLeafLocationListIterator) TermFrequency() uint32 {
	return l.Current().TermFrequency
}

func (l *WithinOrderedLeafLocationListIterator) LocationListIterator() LocationListIterator {
	if len(l.children) == 0 {
		return NewBasicLocationListIterator(nil, 1)
	}
	return l.children[0].LocationListIterator()
}

func (l *WithinOrderedLeafLocationListIterator) EstimateCount(total uint32) uint32 {
	return NewAndLeaf(l.children).EstimateCount(total)
}
