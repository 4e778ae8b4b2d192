package bitmap

import (
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	id := vfile.DefaultFileID("bitmap", dir)
	f, err := Open(id, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFile_AddLookup(t *testing.T) {
	f := openTestFile(t)
	if err := f.Add([]byte("red"), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.Add([]byte("red"), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.Add([]byte("blue"), 3); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := f.Lookup([]byte("red"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("lookup red = %v", got)
	}

	card, err := f.Cardinality([]byte("blue"))
	if err != nil || card != 1 {
		t.Fatalf("cardinality blue = %d, err = %v", card, err)
	}

	if f.DistinctValueCount() != 2 {
		t.Fatalf("distinct values = %d, want 2", f.DistinctValueCount())
	}
}

func TestFile_RemoveEmptiesChain(t *testing.T) {
	f := openTestFile(t)
	if err := f.Add([]byte("x"), 10); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.Remove([]byte("x"), 10); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := f.Lookup([]byte("x"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("lookup after remove = %v, want empty", got)
	}
	if f.DistinctValueCount() != 0 {
		t.Fatalf("distinct values = %d, want 0", f.DistinctValueCount())
	}
}

func TestFile_AndOr(t *testing.T) {
	f := openTestFile(t)
	for _, rid := range []uint32{1, 2, 3} {
		if err := f.Add([]byte("a"), rid); err != nil {
			t.Fatalf("add a: %v", err)
		}
	}
	for _, rid := range []uint32{2, 3, 4} {
		if err := f.Add([]byte("b"), rid); err != nil {
			t.Fatalf("add b: %v", err)
		}
	}

	and, err := f.And([][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	if len(and) != 2 || and[0] != 2 || and[1] != 3 {
		t.Fatalf("and = %v, want [2 3]", and)
	}

	or, err := f.Or([][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	if len(or) != 4 {
		t.Fatalf("or = %v, want 4 elements", or)
	}
}

func TestFile_LookupMissingValueIsEmpty(t *testing.T) {
	f := openTestFile(t)
	got, err := f.Lookup([]byte("nope"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
