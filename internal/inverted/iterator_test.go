package inverted

import "testing"

func collect(it ListIterator) []uint32 {
	var got []uint32
	doc, ok := it.Next(0)
	for ok {
		got = append(got, doc)
		doc, ok = it.Next(doc + 1)
	}
	return got
}

func TestSimpleLeaf_IncludesDocumentZero(t *testing.T) {
	pl := &PostingList{Term: "t"}
	pl.Insert(Posting{DocumentID: 0, TermFrequency: 1})
	pl.Insert(Posting{DocumentID: 2, TermFrequency: 1})
	got := collect(NewSimpleLeaf(pl))
	want := []uint32{0, 2}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got = %v, want %v", got, want)
	}
}

func TestAndLeaf_Intersection(t *testing.T) {
	a := &PostingList{}
	a.Insert(Posting{DocumentID: 0})
	a.Insert(Posting{DocumentID: 1})
	a.Insert(Posting{DocumentID: 2})
	b := &PostingList{}
	b.Insert(Posting{DocumentID: 1})
	b.Insert(Posting{DocumentID: 2})

	got := collect(NewAndLeaf([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)}))
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got = %v, want [1 2]", got)
	}
}

func TestMultiListIterator_Union(t *testing.T) {
	a := &PostingList{}
	a.Insert(Posting{DocumentID: 0})
	a.Insert(Posting{DocumentID: 3})
	b := &PostingList{}
	b.Insert(Posting{DocumentID: 1})
	b.Insert(Posting{DocumentID: 3})

	got := collect(NewMultiListIterator([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)}))
	want := []uint32{0, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got = %v, want %v", got, want)
		}
	}
}

func TestListIteratorWithMax_BoundsResults(t *testing.T) {
	pl := &PostingList{}
	for i := uint32(0); i < 5; i++ {
		pl.Insert(Posting{DocumentID: i})
	}
	got := collect(&ListIteratorWithMax{Child: NewSimpleLeaf(pl), Max: 2})
	if len(got) != 3 {
		t.Fatalf("got = %v, want 3 entries", got)
	}
}

func TestWithinOrderedLeafLocationListIterator_RequiresOrderAndDistance(t *testing.T) {
	a := &PostingList{}
	a.Insert(Posting{DocumentID: 0, Locations: []uint32{0}})
	a.Insert(Posting{DocumentID: 1, Locations: []uint32{5}})
	b := &PostingList{}
	b.Insert(Posting{DocumentID: 0, Locations: []uint32{1}}) // within 1 of doc0's "a" at 0
	b.Insert(Posting{DocumentID: 1, Locations: []uint32{20}}) // far from doc1's "a" at 5

	it := NewWithinOrderedLeafLocationListIterator([]ListIterator{NewSimpleLeaf(a), NewSimpleLeaf(b)}, 1, 2)
	got := collect(it)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("got = %v, want [0]", got)
	}
}

func TestDummyListIterator_NeverMatches(t *testing.T) {
	got := collect(DummyListIterator{})
	if len(got) != 0 {
		t.Fatalf("got = %v, want empty", got)
	}
}

func TestScoreCombiners(t *testing.T) {
	scores := []DocumentScore{0.5, 0.5}
	if got := (SumScoreCombiner{}).Apply(scores); got != 1.0 {
		t.Fatalf("sum = %v, want 1.0", got)
	}
	if got := (ProductScoreCombiner{}).Apply(scores); got != 0.25 {
		t.Fatalf("product = %v, want 0.25", got)
	}
	if got := (MinScoreCombiner{}).Apply(scores); got != 0.5 {
		t.Fatalf("min = %v, want 0.5", got)
	}
	if got := (ASumScoreCombiner{}).Apply(scores); got != 0.75 {
		t.Fatalf("asum = %v, want 0.75", got)
	}
}

func TestASumScoreCombiner_OverOneClampsAndShortCircuits(t *testing.T) {
	over := []DocumentScore{0.5, 1.2, 0.9}
	if got := (ASumScoreCombiner{}).Apply(over); got != 1 {
		t.Fatalf("asum over 1 = %v, want 1", got)
	}
	if got := (ASumScoreCombiner{}).Combine(1.5, 0.3); got != 1 {
		t.Fatalf("combine over 1 = %v, want 1", got)
	}
	if got := (ASumScoreCombiner{}).Combine(0.3, 1.5); got != 1 {
		t.Fatalf("combine over 1 (second operand) = %v, want 1", got)
	}
}

func TestNormalizedTfIdfScoreCalculator_HigherTfScoresHigher(t *testing.T) {
	c := NewNormalizedTfIdfScoreCalculator()
	low := Score(c, 1, 10, 10, 5, 100)
	high := Score(c, 5, 10, 10, 5, 100)
	if !(high > low) {
		t.Fatalf("expected higher term frequency to score higher: low=%v high=%v", low, high)
	}
}
