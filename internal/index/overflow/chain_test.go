package overflow

import (
	"bytes"
	"testing"

	"github.com/doquedb/sydcore/internal/vfile"
)

func openTestFile(t *testing.T) *vfile.File {
	t.Helper()
	dir := t.TempDir()
	id := vfile.DefaultFileID("overflow", dir)
	f, err := vfile.Open(id, vfile.OpenBatch, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteReadRoundTrip_MultiPage(t *testing.T) {
	vf := openTestFile(t)
	data := bytes.Repeat([]byte("overflow-payload-"), 2000)

	head, err := Write(vf, data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Read(vf, head)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestWriteEmpty(t *testing.T) {
	vf := openTestFile(t)
	head, err := Write(vf, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Read(vf, head)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d bytes, want 0", len(got))
	}
}

func TestFreeReleasesAllPages(t *testing.T) {
	vf := openTestFile(t)
	data := bytes.Repeat([]byte("x"), 10000)
	head, err := Write(vf, data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Free(vf, head); err != nil {
		t.Fatalf("free: %v", err)
	}
}
