package fulltext

import (
	"testing"

	"github.com/doquedb/sydcore/internal/inverted"
	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	postingsID := vfile.DefaultFileID("ft-postings", dir)
	vectorID := vfile.DefaultFileID("ft-vector", dir)
	f, err := Open(postingsID, vectorID, 0, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFile_InsertAndSearch(t *testing.T) {
	f := openTestFile(t)
	if err := f.Insert(0, -1, 1, 3, []inverted.TermOccurrence{
		{Term: "ricoh", Positions: []uint32{0}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	results, err := f.Search([]string{"ricoh"}, inverted.OpAnd,
		inverted.NewNormalizedTfIdfScoreCalculator(), inverted.SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != 0 {
		t.Fatalf("results = %+v, want document 0", results)
	}
}

func TestFile_ExpungeRemovesResult(t *testing.T) {
	f := openTestFile(t)
	terms := []inverted.TermOccurrence{{Term: "ricoh", Positions: []uint32{0}}}
	if err := f.Insert(0, -1, 1, 3, terms); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := f.Expunge(0, -1, []string{"ricoh"}); err != nil {
		t.Fatalf("expunge: %v", err)
	}
	results, err := f.Search([]string{"ricoh"}, inverted.OpAnd,
		inverted.NewNormalizedTfIdfScoreCalculator(), inverted.SumScoreCombiner{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want empty after expunge", results)
	}
}
