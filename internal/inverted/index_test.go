package inverted

import (
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	postingsID := vfile.DefaultFileID("postings", dir)
	vectorID := vfile.DefaultFileID("docvector", dir)
	idx, err := Open(postingsID, vectorID, 0, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_InsertAndSearchAnd(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(0, -1, 1, 3, []TermOccurrence{
		{Term: "go", Positions: []uint32{0}},
		{Term: "lang", Positions: []uint32{1}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(1, -1, 2, 2, []TermOccurrence{
		{Term: "go", Positions: []uint32{0}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	calc := NewNormalizedTfIdfScoreCalculator()
	results, err := idx.Search([]string{"go", "lang"}, OpAnd, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != 0 {
		t.Fatalf("results = %+v, want only document 0", results)
	}
}

func TestIndex_SearchOrRanksByScore(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(0, -1, 1, 5, []TermOccurrence{
		{Term: "go", Positions: []uint32{0, 1, 2}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(1, -1, 2, 5, []TermOccurrence{
		{Term: "go", Positions: []uint32{0}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	calc := NewNormalizedTfIdfScoreCalculator()
	results, err := idx.Search([]string{"go"}, OpOr, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].DocumentID != 0 {
		t.Fatalf("expected document 0 (higher TF) to rank first, got %+v", results)
	}
}

func TestIndex_ExpungeRemovesFromSearch(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(0, -1, 1, 1, []TermOccurrence{{Term: "x", Positions: []uint32{0}}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := idx.Expunge(0, -1, []string{"x"}); err != nil {
		t.Fatalf("expunge: %v", err)
	}
	calc := NewNormalizedTfIdfScoreCalculator()
	results, err := idx.Search([]string{"x"}, OpOr, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want empty after expunge", results)
	}
}

func TestIndex_SearchUnknownTermIsEmpty(t *testing.T) {
	idx := openTestIndex(t)
	calc := NewNormalizedTfIdfScoreCalculator()
	results, err := idx.Search([]string{"nope"}, OpOr, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want empty", results)
	}
}

func TestIndex_SearchReturnsTermFrequenciesWhenFieldMaskRequestsThem(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(0, -1, 1, 3, []TermOccurrence{
		{Term: "go", Positions: []uint32{0, 1}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	calc := NewNormalizedTfIdfScoreCalculator()
	results, err := idx.Search([]string{"go"}, OpOr, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].TermFrequencies != nil {
		t.Fatalf("expected no TermFrequencies without a configured FieldMask, got %+v", results[0].TermFrequencies)
	}

	fm := NewFieldMask(false, false)
	fm.Add(FieldTf)
	idx.SetFieldMask(fm)

	results, err = idx.Search([]string{"go"}, OpOr, calc, SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].TermFrequencies["go"] != 2 {
		t.Fatalf("TermFrequencies = %+v, want go:2", results[0].TermFrequencies)
	}
}
