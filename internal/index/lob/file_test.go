package lob

import (
	"bytes"
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	id := vfile.DefaultFileID("lob", dir)
	f, err := Open(id, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFile_PutGet(t *testing.T) {
	f := openTestFile(t)
	data := bytes.Repeat([]byte("lob"), 5000)
	if err := f.Put(1, data); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := f.Get(1)
	if err != nil || !ok {
		t.Fatalf("get: err=%v ok=%v", err, ok)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("roundtrip mismatch: got %d bytes, want %d", len(got), len(data))
	}
	size, ok, err := f.Size(1)
	if err != nil || !ok || size != len(data) {
		t.Fatalf("size = %d ok=%v err=%v, want %d", size, ok, err, len(data))
	}
}

func TestFile_GetMissing(t *testing.T) {
	f := openTestFile(t)
	_, ok, err := f.Get(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}

func TestFile_PutOverwritesOldValue(t *testing.T) {
	f := openTestFile(t)
	if err := f.Put(5, []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := f.Put(5, []byte("second value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := f.Get(5)
	if err != nil || !ok {
		t.Fatalf("get: err=%v ok=%v", err, ok)
	}
	if string(got) != "second value" {
		t.Fatalf("got = %q", got)
	}
}

func TestFile_Delete(t *testing.T) {
	f := openTestFile(t)
	if err := f.Put(9, []byte("data")); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := f.Delete(9)
	if err != nil || !ok {
		t.Fatalf("delete: err=%v ok=%v", err, ok)
	}
	if _, found, _ := f.Get(9); found {
		t.Fatal("expected gone after delete")
	}
	if f.Count() != 0 {
		t.Fatalf("count = %d, want 0", f.Count())
	}
}

func TestFile_EmptyValueRoundTrips(t *testing.T) {
	f := openTestFile(t)
	if err := f.Put(3, []byte{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := f.Get(3)
	if err != nil || !ok {
		t.Fatalf("get: err=%v ok=%v", err, ok)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v, want empty", got)
	}
}
