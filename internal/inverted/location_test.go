package inverted

import "testing"

func locs(it LocationListIterator) []uint32 {
	var out []uint32
	for loc, _ := it.Next(); loc != UndefinedLocation; loc, _ = it.Next() {
		out = append(out, loc)
	}
	return out
}

func TestBasicLocationListIterator_WalkAndSeek(t *testing.T) {
	it := NewBasicLocationListIterator([]uint32{2, 5, 9}, 1)
	if got := locs(it); len(got) != 3 || got[0] != 2 || got[2] != 9 {
		t.Fatalf("walk = %v, want [2 5 9]", got)
	}
	it.Reset()
	if !it.Find(5) {
		t.Fatal("Find(5) should succeed")
	}
	if it.Find(6) {
		t.Fatal("Find(6) should fail")
	}
	if got, _ := it.LowerBound(6); got != 9 {
		t.Fatalf("LowerBound(6) = %d, want 9", got)
	}
	if got, _ := it.LowerBound(10); got != UndefinedLocation {
		t.Fatalf("LowerBound(10) = %d, want undefined", got)
	}
}

func TestMergeLocationListIterator_DeduplicatesPositions(t *testing.T) {
	a := NewBasicLocationListIterator([]uint32{1, 3}, 1)
	b := NewBasicLocationListIterator([]uint32{3, 5}, 1)
	it := NewMergeLocationListIterator([]LocationListIterator{a, b})
	got := locs(it)
	want := []uint32{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merged = %v, want %v", got, want)
		}
	}
	if n := it.Count(); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestShortLeaf_TermFrequencyRecomputedFromMergedLocations(t *testing.T) {
	// Two index units carry the same document; position 3 appears
	// under both, so the true frequency is 3, not the 2+2 sum.
	a := &PostingList{}
	a.Insert(Posting{DocumentID: 1, TermFrequency: 2, Locations: []uint32{1, 3}})
	b := &PostingList{}
	b.Insert(Posting{DocumentID: 1, TermFrequency: 2, Locations: []uint32{3, 5}})

	leaf := NewShortLeaf([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)}, 2)
	doc, ok := leaf.Next(0)
	if !ok || doc != 1 {
		t.Fatalf("Next = (%d, %v), want (1, true)", doc, ok)
	}
	if tf := leaf.TermFrequency(); tf != 3 {
		t.Fatalf("tf = %d, want 3 (merged distinct positions)", tf)
	}
}

func TestNormalShortLeaf_VerifiesOffset(t *testing.T) {
	normal := &PostingList{}
	normal.Insert(Posting{DocumentID: 1, TermFrequency: 3, Locations: []uint32{1, 10, 20}})
	normal.Insert(Posting{DocumentID: 2, TermFrequency: 1, Locations: []uint32{4}})
	short := &PostingList{}
	short.Insert(Posting{DocumentID: 1, TermFrequency: 2, Locations: []uint32{3, 12}})
	short.Insert(Posting{DocumentID: 2, TermFrequency: 1, Locations: []uint32{9}})

	leaf := NewNormalShortLeaf(NewSimpleLeaf(normal), NewSimpleLeaf(short), 2)
	// Document 1: normal at 1 and 10 pair with short at 3 and 12;
	// normal at 20 has no partner.
	doc, ok := leaf.Next(0)
	if !ok || doc != 1 {
		t.Fatalf("Next = (%d, %v), want (1, true)", doc, ok)
	}
	if tf := leaf.TermFrequency(); tf != 2 {
		t.Fatalf("tf = %d, want 2", tf)
	}
	// Document 2: short at 9 is not at 4+2, no match.
	if doc, ok := leaf.Next(doc + 1); ok {
		t.Fatalf("Next = (%d, true), want exhausted", doc)
	}
}

func TestNormalShortLeaf_RecyclesLocationIterators(t *testing.T) {
	normal := &PostingList{}
	normal.Insert(Posting{DocumentID: 1, Locations: []uint32{1}})
	short := &PostingList{}
	short.Insert(Posting{DocumentID: 1, Locations: []uint32{3}})
	leaf := NewNormalShortLeaf(NewSimpleLeaf(normal), NewSimpleLeaf(short), 2)
	if _, ok := leaf.Next(0); !ok {
		t.Fatal("expected a match")
	}
	it := leaf.LocationListIterator().(*NormalShortLeafLocationListIterator)
	it.Release()
	if it.normal != nil || it.short != nil {
		t.Fatal("release should clear the side iterators")
	}
	again := leaf.LocationListIterator().(*NormalShortLeafLocationListIterator)
	if again != it {
		t.Fatal("released iterator should be reused from the free list")
	}
}

// Corpus layout for the word-unit tests: tokens span positions
// [1,3], [4,5] and [6,8], so boundaries sit at 1, 4, 6 and 9.
func wordBoundaries() LocationListIterator {
	return NewBasicLocationListIterator([]uint32{1, 4, 6, 9}, 1)
}

func TestWordNode_SimpleMatch(t *testing.T) {
	term := NewBasicLocationListIterator([]uint32{2, 4}, 1)
	it := NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, SimpleMatch)
	// Position 2 has no head boundary; position 4 has head (4) and
	// tail (6) boundaries.
	loc, length := it.Next()
	if loc != 4 || length != 2 {
		t.Fatalf("Next = (%d, %d), want (4, 2)", loc, length)
	}
	if loc, _ := it.Next(); loc != UndefinedLocation {
		t.Fatalf("Next = %d, want undefined", loc)
	}
	if !it.IsEnd() {
		t.Fatal("exhausting the subterm iterator should set the end status")
	}
}

func TestWordNode_ExactMatchChecksInternalBoundaries(t *testing.T) {
	// A 5-position compound starting at 4 whose internal boundary
	// offset is 3: the corpus boundary at 6 must coincide, and the
	// boundary walk must terminate exactly at 9.
	term := NewBasicLocationListIterator([]uint32{4}, 5)
	it := NewWordNodeLocationListIterator(term, wordBoundaries(), []uint32{3}, 5, ExactMatch)
	if loc, _ := it.Next(); loc != 4 {
		t.Fatalf("Next = %d, want 4", loc)
	}

	// The same span claiming an internal boundary at offset 2 does
	// not coincide with any corpus boundary.
	term = NewBasicLocationListIterator([]uint32{4}, 5)
	it = NewWordNodeLocationListIterator(term, wordBoundaries(), []uint32{2}, 5, ExactMatch)
	if loc, _ := it.Next(); loc != UndefinedLocation {
		t.Fatalf("Next = %d, want undefined", loc)
	}
}

func TestWordNode_ExactWithoutBoundariesIsSimple(t *testing.T) {
	// The short-word case: no in-term boundary set degrades exact
	// matching to the head-and-tail check.
	term := NewBasicLocationListIterator([]uint32{4}, 2)
	it := NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, ExactMatch)
	if loc, _ := it.Next(); loc != 4 {
		t.Fatalf("Next = %d, want 4", loc)
	}
}

func TestWordNode_HeadAndTail(t *testing.T) {
	term := NewBasicLocationListIterator([]uint32{4, 7}, 2)
	head := NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, HeadMatch)
	if loc, _ := head.Next(); loc != 4 {
		t.Fatalf("head Next = %d, want 4", loc)
	}

	term = NewBasicLocationListIterator([]uint32{4, 7}, 2)
	tail := NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, TailMatch)
	if loc, _ := tail.Next(); loc != 4 {
		t.Fatalf("tail Next = %d, want 4 (tail boundary at 6)", loc)
	}
	if loc, _ := tail.Next(); loc != 7 {
		t.Fatalf("tail Next = %d, want 7 (tail boundary at 9)", loc)
	}
}

func TestWordNode_ApproximateReportsMatchType(t *testing.T) {
	// Position 4 length 2: head and tail boundaries, no in-term
	// boundary set, so full agreement reports exact.
	term := NewBasicLocationListIterator([]uint32{4}, 2)
	it := NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, ApproximateMatch)
	if got := it.CurrentMatchType(); got != MatchTypeExactWord {
		t.Fatalf("match type = %v, want exact", got)
	}

	// Position 4 length 3: head boundary only (no boundary at 7).
	term = NewBasicLocationListIterator([]uint32{4}, 3)
	it = NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 3, ApproximateMatch)
	if got := it.CurrentMatchType(); got != MatchTypeWordHead {
		t.Fatalf("match type = %v, want word head", got)
	}

	// Position 2 length 2: tail boundary only (boundary at 4).
	term = NewBasicLocationListIterator([]uint32{2}, 2)
	it = NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 2, ApproximateMatch)
	if got := it.CurrentMatchType(); got != MatchTypeWordTail {
		t.Fatalf("match type = %v, want word tail", got)
	}

	// Position 2 length 1: no boundary agreement at all.
	term = NewBasicLocationListIterator([]uint32{2}, 1)
	it = NewWordNodeLocationListIterator(term, wordBoundaries(), nil, 1, ApproximateMatch)
	if got := it.CurrentMatchType(); got != MatchTypeString {
		t.Fatalf("match type = %v, want string", got)
	}
}

func TestEstimateCounts(t *testing.T) {
	a := &PostingList{}
	for i := uint32(0); i < 10; i++ {
		a.Insert(Posting{DocumentID: i})
	}
	b := &PostingList{}
	for i := uint32(0); i < 20; i++ {
		b.Insert(Posting{DocumentID: i * 2})
	}

	and := NewAndLeaf([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)})
	// 100 * (10/100) * (20/100) = 2.
	if got := and.EstimateCount(100); got != 2 {
		t.Fatalf("and estimate = %d, want 2", got)
	}

	// Independence estimate floors at 1.
	tiny := NewAndLeaf([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(a), NewSimpleLeaf(a)})
	if got := tiny.EstimateCount(1 << 20); got < 1 {
		t.Fatalf("and estimate = %d, want >= 1", got)
	}

	empty := NewMultiListIterator(nil)
	if got := empty.EstimateCount(100); got != 0 {
		t.Fatalf("empty or estimate = %d, want 0", got)
	}
	if _, ok := empty.Next(0); ok {
		t.Fatal("empty or should not produce documents")
	}

	or := NewMultiListIterator([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)})
	if got := or.EstimateCount(25); got != 25 {
		t.Fatalf("or estimate = %d, want capped at 25", got)
	}
}

func TestIteratorResetAndFind(t *testing.T) {
	pl := &PostingList{}
	pl.Insert(Posting{DocumentID: 3, TermFrequency: 2, Locations: []uint32{1, 7}})
	pl.Insert(Posting{DocumentID: 8, TermFrequency: 1, Locations: []uint32{4}})
	leaf := NewSimpleLeaf(pl)

	if _, ok := leaf.Next(0); !ok {
		t.Fatal("Next failed")
	}
	if _, ok := leaf.Next(4); !ok {
		t.Fatal("Next(4) failed")
	}
	leaf.Reset()
	if doc, ok := leaf.Next(0); !ok || doc != 3 {
		t.Fatalf("after Reset, Next = (%d, %v), want (3, true)", doc, ok)
	}
	if !leaf.Find(8) || leaf.Find(5) {
		t.Fatal("Find results wrong")
	}
	if leaf.TermFrequency() != 1 {
		t.Fatalf("tf = %d, want 1 (positioned on doc 8)", leaf.TermFrequency())
	}
	if got := locs(leaf.LocationListIterator()); len(got) != 1 || got[0] != 4 {
		t.Fatalf("locations = %v, want [4]", got)
	}
}
