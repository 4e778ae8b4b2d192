package inverted

import "sort"

// UndefinedLocation is the out-of-band position every location list
// iterator reports when exhausted or when a sought position has no
// match.
const UndefinedLocation = ^uint32(0)

// LocationListIterator walks a term's occurrence positions within one
// document. Positions are 1-based token offsets; each occurrence also
// carries its length in positions (compound leaves span more than
// one). A released iterator may be linked onto its owning node's free
// list and handed out again instead of being reallocated.
type LocationListIterator interface {
	// Reset rewinds to before the first occurrence.
	Reset()
	// Next advances and reports the next occurrence, or
	// UndefinedLocation when exhausted.
	Next() (loc uint32, length int)
	// Find reports whether an occurrence starts exactly at loc.
	Find(loc uint32) bool
	// LowerBound positions on the first occurrence at or after loc.
	LowerBound(loc uint32) (uint32, int)
	// Release returns the iterator to its owner for reuse. The
	// iterator must not be used afterward.
	Release()
}

// BasicLocationListIterator walks a sorted position slice with a
// fixed occurrence length.
type BasicLocationListIterator struct {
	locs   []uint32
	length int
	pos    int
}

// NewBasicLocationListIterator returns an iterator over sorted
// positions, each occurrence length positions long.
func NewBasicLocationListIterator(locs []uint32, length int) *BasicLocationListIterator {
	return &BasicLocationListIterator{locs: locs, length: length, pos: -1}
}

func (it *BasicLocationListIterator) Reset() { it.pos = -1 }

func (it *BasicLocationListIterator) Next() (uint32, int) {
	it.pos++
	if it.pos >= len(it.locs) {
		it.pos = len(it.locs)
		return UndefinedLocation, 0
	}
	return it.locs[it.pos], it.length
}

func (it *BasicLocationListIterator) Find(loc uint32) bool {
	got, _ := it.LowerBound(loc)
	return got == loc
}

func (it *BasicLocationListIterator) LowerBound(loc uint32) (uint32, int) {
	i := sort.Search(len(it.locs), func(i int) bool { return it.locs[i] >= loc })
	if i >= len(it.locs) {
		it.pos = len(it.locs)
		return UndefinedLocation, 0
	}
	it.pos = i
	return it.locs[i], it.length
}

// Current reports the occurrence the iterator is positioned on, or
// UndefinedLocation before the first Next.
func (it *BasicLocationListIterator) Current() uint32 {
	if it.pos < 0 || it.pos >= len(it.locs) {
		return UndefinedLocation
	}
	return it.locs[it.pos]
}

func (it *BasicLocationListIterator) Release() {}

// MergeLocationListIterator merges several children's positions into
// one ascending walk, reporting each distinct position once. The
// sentence-head processing of the blocker can index the same position
// under more than one index unit, so a merged term frequency is NOT
// the sum of the children's — counting through this iterator is what
// ShortLeaf's term-frequency recomputation relies on.
type MergeLocationListIterator struct {
	children []LocationListIterator
	active   []uint32
	lengths  []int
	started  []bool
	last     uint32
	any      bool
}

// NewMergeLocationListIterator merges children's position walks.
func NewMergeLocationListIterator(children []LocationListIterator) *MergeLocationListIterator {
	return &MergeLocationListIterator{
		children: children,
		active:   make([]uint32, len(children)),
		lengths:  make([]int, len(children)),
		started:  make([]bool, len(children)),
	}
}

func (it *MergeLocationListIterator) Reset() {
	for i, c := range it.children {
		c.Reset()
		it.started[i] = false
	}
	it.any = false
}

func (it *MergeLocationListIterator) Next() (uint32, int) {
	best := UndefinedLocation
	length := 0
	for i, c := range it.children {
		if !it.started[i] || (it.any && it.active[i] <= it.last) {
			it.active[i], it.lengths[i] = c.Next()
			for it.any && it.active[i] != UndefinedLocation && it.active[i] <= it.last {
				it.active[i], it.lengths[i] = c.Next()
			}
			it.started[i] = true
		}
		if it.active[i] < best {
			best = it.active[i]
			length = it.lengths[i]
		}
	}
	if best == UndefinedLocation {
		return UndefinedLocation, 0
	}
	it.last = best
	it.any = true
	return best, length
}

func (it *MergeLocationListIterator) Find(loc uint32) bool {
	got, _ := it.LowerBound(loc)
	return got == loc
}

func (it *MergeLocationListIterator) LowerBound(loc uint32) (uint32, int) {
	best := UndefinedLocation
	length := 0
	for i, c := range it.children {
		got, l := c.LowerBound(loc)
		it.active[i] = got
		it.lengths[i] = l
		it.started[i] = true
		if got < best {
			best = got
			length = l
		}
	}
	if best == UndefinedLocation {
		return UndefinedLocation, 0
	}
	it.last = best
	it.any = true
	return best, length
}

// Count walks the remaining positions and reports how many there are.
func (it *MergeLocationListIterator) Count() uint32 {
	it.Reset()
	var n uint32
	for loc, _ := it.Next(); loc != UndefinedLocation; loc, _ = it.Next() {
		n++
	}
	return n
}

func (it *MergeLocationListIterator) Release() {
	for _, c := range it.children {
		c.Release()
	}
}

// NormalShortLeafLocationListIterator verifies that a short-leaf tail
// follows a normal leaf at a fixed offset: the compound matches at
// location X when the normal side matches at X and the short side
// matches at X+pos.
type NormalShortLeafLocationListIterator struct {
	owner  *NormalShortLeaf
	normal LocationListIterator
	short  LocationListIterator
	pos    uint32
	cur    uint32
	curLen int
}

func (it *NormalShortLeafLocationListIterator) Reset() {
	it.cur = 0
	it.curLen = 0
	it.normal.Reset()
	it.short.Reset()
}

func (it *NormalShortLeafLocationListIterator) Next() (uint32, int) {
	if it.cur == UndefinedLocation {
		return UndefinedLocation, 0
	}
	return it.LowerBound(it.cur + 1)
}

func (it *NormalShortLeafLocationListIterator) Find(loc uint32) bool {
	got, _ := it.LowerBound(loc)
	return got == loc
}

func (it *NormalShortLeafLocationListIterator) LowerBound(loc uint32) (uint32, int) {
	if loc <= it.cur && it.cur != 0 {
		return it.cur, it.curLen
	}
	it.cur = loc
	it.curLen = 0
	for it.cur != UndefinedLocation {
		got, _ := it.normal.LowerBound(it.cur)
		it.cur = got
		if it.cur == UndefinedLocation {
			break
		}
		want := it.cur + it.pos
		short, sl := it.short.LowerBound(want)
		if short == UndefinedLocation {
			it.cur = UndefinedLocation
			break
		}
		if short != want {
			it.cur = short - it.pos
			continue
		}
		it.curLen = int(it.pos) + sl
		break
	}
	return it.cur, it.curLen
}

// TermFrequency counts the compound's occurrences by a full scan;
// the count is not derivable from the two sides' frequencies.
func (it *NormalShortLeafLocationListIterator) TermFrequency() uint32 {
	it.Reset()
	var n uint32
	for loc, _ := it.Next(); loc != UndefinedLocation; loc, _ = it.Next() {
		n++
	}
	return n
}

// Release clears the side iterators and links the instance onto the
// owning node's free list for reuse.
func (it *NormalShortLeafLocationListIterator) Release() {
	it.cur = 0
	it.curLen = 0
	it.normal = nil
	it.short = nil
	if it.owner != nil {
		it.owner.recycle(it)
	}
}

// MatchMode selects how a word-unit search term is matched against
// the corpus's token boundaries.
type MatchMode int

const (
	// VoidMatch is the unset mode.
	VoidMatch MatchMode = iota
	// ExactMatch requires every token boundary inside the search
	// term to coincide with a corpus boundary, terminating exactly
	// at term end.
	ExactMatch
	// SimpleMatch checks the head and tail boundaries only.
	SimpleMatch
	// StringMatch is a plain substring match, no boundary checks.
	StringMatch
	// ApproximateMatch accepts every string match and reports the
	// observed boundary agreement via CurrentMatchType.
	ApproximateMatch
	// MultiMatch matches per-language splits of the term.
	MultiMatch
	// HeadMatch requires a boundary at the term's head only.
	HeadMatch
	// TailMatch requires a boundary at the term's tail only.
	TailMatch
)

// MatchType is the boundary-agreement bits ApproximateMatch observed
// at the current position.
type MatchType int

const (
	// MatchTypeString is a bare substring match.
	MatchTypeString MatchType = 0
	// MatchTypeWordHead is set when a corpus boundary coincides with
	// the term's head.
	MatchTypeWordHead MatchType = 1 << iota
	// MatchTypeWordTail is set when a corpus boundary coincides with
	// the term's tail.
	MatchTypeWordTail
	// MatchTypeExactWord is reported when every boundary agrees.
	MatchTypeExactWord
)

// WordNodeLocationListIterator filters a term's string-match
// positions by the document's token boundaries per a MatchMode.
// term walks the string-match positions, separator the corpus's
// token-boundary positions (the empty-string postings), and
// tokenBoundary holds the search term's internal boundary offsets
// (1-based from term head).
type WordNodeLocationListIterator struct {
	term          LocationListIterator
	separator     LocationListIterator
	tokenBoundary []uint32
	wordLength    uint32
	mode          MatchMode
	cur           uint32
	end           bool
}

// NewWordNodeLocationListIterator builds the boundary-checking
// filter and positions it on the first match. A nil or empty
// tokenBoundary with ExactMatch degrades to SimpleMatch's
// head-and-tail check, the short-word case.
func NewWordNodeLocationListIterator(term, separator LocationListIterator, tokenBoundary []uint32, wordLength uint32, mode MatchMode) *WordNodeLocationListIterator {
	it := &WordNodeLocationListIterator{
		term:          term,
		separator:     separator,
		tokenBoundary: tokenBoundary,
		wordLength:    wordLength,
		mode:          mode,
		cur:           UndefinedLocation,
	}
	it.rawNext(0)
	return it
}

// IsEnd reports whether the subterm iterator is exhausted.
func (it *WordNodeLocationListIterator) IsEnd() bool { return it.end }

func (it *WordNodeLocationListIterator) Reset() {
	it.term.Reset()
	it.separator.Reset()
	it.end = false
	it.cur = UndefinedLocation
	it.rawNext(0)
}

func (it *WordNodeLocationListIterator) Next() (uint32, int) {
	if it.end {
		return UndefinedLocation, 0
	}
	loc := it.cur
	it.rawNext(loc + 1)
	if loc == UndefinedLocation {
		return UndefinedLocation, 0
	}
	return loc, int(it.wordLength)
}

// Current reports the position the iterator sits on without
// advancing, for CurrentMatchType callers.
func (it *WordNodeLocationListIterator) Current() uint32 {
	if it.end {
		return UndefinedLocation
	}
	return it.cur
}

func (it *WordNodeLocationListIterator) Find(loc uint32) bool {
	got, _ := it.LowerBound(loc)
	return got == loc
}

func (it *WordNodeLocationListIterator) LowerBound(loc uint32) (uint32, int) {
	if it.end || it.cur == UndefinedLocation || it.cur < loc {
		it.rawNext(loc)
	}
	if it.end || it.cur == UndefinedLocation {
		return UndefinedLocation, 0
	}
	return it.cur, int(it.wordLength)
}

func (it *WordNodeLocationListIterator) Release() {
	it.term.Release()
	it.separator.Release()
}

// rawNext advances to the first string-match position >= from that
// satisfies the mode's boundary conditions.
func (it *WordNodeLocationListIterator) rawNext(from uint32) {
	loc, _ := it.term.LowerBound(from)
	for loc != UndefinedLocation {
		switch it.mode {
		case ExactMatch:
			if len(it.tokenBoundary) == 0 {
				// Short-word case: no in-term boundary
				// information, head and tail only.
				if it.boundaryAt(loc) && it.boundaryAt(loc+it.wordLength) {
					it.cur = loc
					return
				}
			} else if it.exactBoundaries(loc) {
				it.cur = loc
				return
			}
		case SimpleMatch:
			if it.boundaryAt(loc) && it.boundaryAt(loc+it.wordLength) {
				it.cur = loc
				return
			}
		case HeadMatch:
			if it.boundaryAt(loc) {
				it.cur = loc
				return
			}
		case TailMatch:
			if it.boundaryAt(loc + it.wordLength) {
				it.cur = loc
				return
			}
		default:
			// StringMatch/ApproximateMatch accept every string
			// match; the boundary observation is reported by
			// CurrentMatchType.
			it.cur = loc
			return
		}
		loc, _ = it.term.Next()
	}
	it.cur = UndefinedLocation
	it.end = true
}

func (it *WordNodeLocationListIterator) boundaryAt(loc uint32) bool {
	it.separator.Reset()
	return it.separator.Find(loc)
}

// exactBoundaries verifies that the corpus boundaries between the
// term's head and tail are exactly the term's own boundary set: every
// in-term boundary coincides with a corpus boundary and the set
// terminates exactly at term end.
func (it *WordNodeLocationListIterator) exactBoundaries(loc uint32) bool {
	if !it.boundaryAt(loc) {
		return false
	}
	termEnd := loc + it.wordLength
	cursor := loc
	for _, b := range it.tokenBoundary {
		// Boundary offsets are 1-based from the term head.
		want := loc + b - 1
		next, _ := it.separator.LowerBound(cursor + 1)
		if next == UndefinedLocation || next != want {
			return false
		}
		cursor = next
	}
	// The boundary set must terminate exactly at term end: no
	// corpus boundary may fall strictly inside the remainder.
	next, _ := it.separator.LowerBound(cursor + 1)
	return next == termEnd
}

// CurrentMatchType reports, for ApproximateMatch, the OR of the
// boundary agreements observed at the current position; other modes
// report their own mode's full agreement.
func (it *WordNodeLocationListIterator) CurrentMatchType() MatchType {
	switch it.mode {
	case ExactMatch:
		return MatchTypeExactWord
	case SimpleMatch, HeadMatch, TailMatch:
		t := MatchTypeString
		if it.mode != TailMatch {
			t |= MatchTypeWordHead
		}
		if it.mode != HeadMatch {
			t |= MatchTypeWordTail
		}
		return t
	}
	if it.end || it.cur == UndefinedLocation {
		return MatchTypeString
	}
	loc := it.cur
	if len(it.tokenBoundary) > 0 {
		if it.exactBoundaries(loc) {
			return MatchTypeExactWord
		}
		t := MatchTypeString
		if it.boundaryAt(loc) {
			t |= MatchTypeWordHead
		}
		if it.boundaryAt(loc + it.wordLength) {
			t |= MatchTypeWordTail
		}
		return t
	}
	t := MatchTypeString
	if it.boundaryAt(loc) {
		t |= MatchTypeWordHead
	}
	if it.boundaryAt(loc + it.wordLength) {
		t |= MatchTypeWordTail
	}
	// No in-term boundaries means head and tail agreement IS exact
	// agreement.
	if t == MatchTypeWordHead|MatchTypeWordTail {
		return MatchTypeExactWord
	}
	return t
}
