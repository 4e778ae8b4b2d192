package btree

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestTree(t *testing.T) *Tree {
	t.Helper()
	dir := t.TempDir()
	id := vfile.DefaultFileID("btree", dir)
	tr, err := Create(id, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTree_InsertGet(t *testing.T) {
	tr := openTestTree(t)
	if err := tr.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, ok, err := tr.Get([]byte("k1"))
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != "v1" {
		t.Fatalf("got = %q", got)
	}
	if _, ok, _ := tr.Get([]byte("missing")); ok {
		t.Fatal("expected missing key not found")
	}
}

func TestTree_UpdateExistingKey(t *testing.T) {
	tr := openTestTree(t)
	if err := tr.Insert([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tr.Insert([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("insert update: %v", err)
	}
	got, ok, err := tr.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got = %q, want v2", got)
	}
	n, err := tr.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestTree_ManyInsertsForceSplitsAndScan(t *testing.T) {
	tr := openTestTree(t)
	const n = 2000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("val-%05d", i))
		if err := tr.Insert(key, val); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < n; i += 137 {
		key := []byte(fmt.Sprintf("key-%05d", i))
		got, ok, err := tr.Get(key)
		if err != nil || !ok {
			t.Fatalf("get %d: err=%v ok=%v", i, err, ok)
		}
		want := fmt.Sprintf("val-%05d", i)
		if string(got) != want {
			t.Fatalf("get %d = %q, want %q", i, got, want)
		}
	}

	count, err := tr.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != n {
		t.Fatalf("count = %d, want %d", count, n)
	}

	seen := 0
	if err := tr.ScanRange([]byte("key-00000"), []byte("key-00099"), func(key, val []byte) bool {
		seen++
		return true
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != 100 {
		t.Fatalf("scan visited %d keys, want 100", seen)
	}
}

func TestTree_OverflowValueRoundTrips(t *testing.T) {
	tr := openTestTree(t)
	big := bytes.Repeat([]byte("x"), 8000)
	if err := tr.Insert([]byte("big"), big); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, ok, err := tr.Get([]byte("big"))
	if err != nil || !ok {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("overflow value mismatch: got %d bytes, want %d", len(got), len(big))
	}
}

func TestTree_DeleteFreesOverflowAndRemovesKey(t *testing.T) {
	tr := openTestTree(t)
	big := bytes.Repeat([]byte("y"), 8000)
	if err := tr.Insert([]byte("big"), big); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err := tr.Delete([]byte("big"))
	if err != nil || !ok {
		t.Fatalf("delete: err=%v ok=%v", err, ok)
	}
	if _, found, _ := tr.Get([]byte("big")); found {
		t.Fatal("expected key gone after delete")
	}
	if ok, _ := tr.Delete([]byte("big")); ok {
		t.Fatal("expected second delete to report not found")
	}
}
