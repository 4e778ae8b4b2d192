package record

import (
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	id := vfile.DefaultFileID("records", dir)
	f, err := Open(id, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFile_InsertGet(t *testing.T) {
	f := openTestFile(t)

	id, err := f.Insert(Tuple{int64(1), "alice", 3.5})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := f.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0].(int64) != 1 || got[1].(string) != "alice" {
		t.Fatalf("got = %v", got)
	}
}

func TestFile_UpdateInPlaceAndOverflow(t *testing.T) {
	f := openTestFile(t)

	id, err := f.Insert(Tuple{"short"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := f.Update(id, Tuple{"s"}); err != nil {
		t.Fatalf("update shrink: %v", err)
	}
	got, err := f.Get(id)
	if err != nil {
		t.Fatalf("get after shrink: %v", err)
	}
	if got[0].(string) != "s" {
		t.Fatalf("got = %v, want s", got)
	}

	if err := f.Update(id, Tuple{"a much longer replacement value"}); err != nil {
		t.Fatalf("update grow: %v", err)
	}
	got, err = f.Get(id)
	if err != nil {
		t.Fatalf("get after grow: %v", err)
	}
	if got[0].(string) != "a much longer replacement value" {
		t.Fatalf("got = %v", got)
	}
}

func TestFile_DeleteTombstones(t *testing.T) {
	f := openTestFile(t)

	id, err := f.Insert(Tuple{int64(7)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := f.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.Get(id); err == nil {
		t.Fatal("expected error getting a deleted tuple")
	}
}

func TestFile_ScanVisitsLiveTuplesAcrossPages(t *testing.T) {
	f := openTestFile(t)

	var ids []ID
	for i := 0; i < 500; i++ {
		id, err := f.Insert(Tuple{int64(i), "padding-value-to-force-page-splits"})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if err := f.Delete(ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	seen := 0
	if err := f.Scan(func(id ID, t Tuple) bool {
		seen++
		return true
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != len(ids)-1 {
		t.Fatalf("scan visited %d tuples, want %d", seen, len(ids)-1)
	}
}

func TestFile_ScanStopsEarly(t *testing.T) {
	f := openTestFile(t)
	for i := 0; i < 5; i++ {
		if _, err := f.Insert(Tuple{int64(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	seen := 0
	if err := f.Scan(func(id ID, t Tuple) bool {
		seen++
		return seen < 2
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != 2 {
		t.Fatalf("seen = %d, want 2", seen)
	}
}
