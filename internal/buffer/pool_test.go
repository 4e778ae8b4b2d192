package buffer

import (
	"fmt"
	"sync"
	"testing"
)

// memSource is a trivial in-memory Source used to exercise Pool without
// the version layer.
type memSource struct {
	mu     sync.Mutex
	pages  map[PageID][]byte
	next   PageID
	writes int
	reads  int
}

func newMemSource() *memSource {
	return &memSource{pages: make(map[PageID][]byte), next: 1}
}

func (s *memSource) ReadPage(id PageID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	buf, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("no such page %d", id)
	}
	return append([]byte(nil), buf...), nil
}

func (s *memSource) AllocatePage() (PageID, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	buf := make([]byte, 64)
	s.pages[id] = buf
	return id, append([]byte(nil), buf...), nil
}

func (s *memSource) WritePage(id PageID, data []byte, ts Timestamp, async bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.pages[id] = append([]byte(nil), data...)
	return nil
}

func TestPool_FixUnfixRoundTrip(t *testing.T) {
	src := newMemSource()
	id, _, err := src.AllocatePage()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	p, err := NewPool(src, DefaultConfig())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	m, err := p.Fix(id, Write, Middle)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	copy(m.Bytes(), []byte("hello"))
	m.Touch(true)
	if err := m.Unfix(true, false); err != nil {
		t.Fatalf("unfix: %v", err)
	}

	src.mu.Lock()
	got := string(src.pages[id][:5])
	src.mu.Unlock()
	if got != "hello" {
		t.Fatalf("flushed payload = %q, want %q", got, "hello")
	}
}

func TestPool_ReadOnlyFixDoesNotFlush(t *testing.T) {
	src := newMemSource()
	id, _, _ := src.AllocatePage()

	p, err := NewPool(src, DefaultConfig())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	m, err := p.Fix(id, ReadOnly, Low)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if err := m.Unfix(false, false); err != nil {
		t.Fatalf("unfix: %v", err)
	}

	if src.writes != 0 {
		t.Fatalf("expected no writes for read-only fix, got %d", src.writes)
	}
}

func TestPool_RefCountKeepsPageResidentAcrossFixes(t *testing.T) {
	src := newMemSource()
	id, _, _ := src.AllocatePage()

	p, err := NewPool(src, DefaultConfig())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	m1, err := p.Fix(id, ReadOnly, Low)
	if err != nil {
		t.Fatalf("fix 1: %v", err)
	}
	m2, err := p.Fix(id, ReadOnly, Low)
	if err != nil {
		t.Fatalf("fix 2: %v", err)
	}
	if p.Resident() != 1 {
		t.Fatalf("resident = %d, want 1 (same page fixed twice)", p.Resident())
	}
	if err := m1.Unfix(false, false); err != nil {
		t.Fatalf("unfix 1: %v", err)
	}
	if p.Resident() != 1 {
		t.Fatalf("resident after first unfix = %d, want 1 (still held by second fix)", p.Resident())
	}
	if err := m2.Unfix(false, false); err != nil {
		t.Fatalf("unfix 2: %v", err)
	}
}

func TestPool_LowPriorityEvictedBeforeMiddle(t *testing.T) {
	src := newMemSource()
	cfg := Config{Strategy: StrategyLRU, LowCapacity: 1, MiddleCapacity: 8}
	p, err := NewPool(src, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	lowID, _, _ := src.AllocatePage()
	midID, _, _ := src.AllocatePage()

	mLow, _ := p.Fix(lowID, Write, Low)
	mLow.Touch(true)
	if err := mLow.Unfix(true, false); err != nil {
		t.Fatalf("unfix low: %v", err)
	}

	mMid, _ := p.Fix(midID, Write, Middle)
	mMid.Touch(true)
	if err := mMid.Unfix(true, false); err != nil {
		t.Fatalf("unfix mid: %v", err)
	}

	// A second low-priority page should evict the first (capacity 1),
	// but must not disturb the middle-priority page.
	low2ID, _, _ := src.AllocatePage()
	mLow2, _ := p.Fix(low2ID, Write, Low)
	mLow2.Touch(true)
	if err := mLow2.Unfix(true, false); err != nil {
		t.Fatalf("unfix low2: %v", err)
	}

	if p.Resident() != 2 {
		t.Fatalf("resident = %d, want 2 (evicted low, kept mid + low2)", p.Resident())
	}
}

func TestPool_FlushInhibitedDelaysEviction(t *testing.T) {
	src := newMemSource()
	cfg := Config{Strategy: StrategyLRU, LowCapacity: 1, MiddleCapacity: 1}
	p, err := NewPool(src, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	p.SetFlushInhibited(true)

	id1, _, _ := src.AllocatePage()
	m1, _ := p.Fix(id1, Write, Low)
	m1.Touch(true)
	if err := m1.Unfix(true, false); err != nil {
		t.Fatalf("unfix 1: %v", err)
	}
	writesAfterFirst := src.writes

	id2, _, _ := src.AllocatePage()
	m2, _ := p.Fix(id2, Write, Low)
	m2.Touch(true)
	if err := m2.Unfix(true, false); err != nil {
		t.Fatalf("unfix 2: %v", err)
	}

	// Neither unfix writes while inhibited, and the first (still dirty)
	// page is not evicted with a write-through when the second arrives.
	if src.writes != writesAfterFirst {
		t.Fatalf("expected no flush while inhibited, writes=%d", src.writes)
	}
}

func TestPool_DetachAllClearsResidency(t *testing.T) {
	src := newMemSource()
	p, err := NewPool(src, DefaultConfig())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	id, _, _ := src.AllocatePage()
	m, _ := p.Fix(id, ReadOnly, Low)
	if err := m.Unfix(false, false); err != nil {
		t.Fatalf("unfix: %v", err)
	}
	p.DetachAll()
	if p.Resident() != 0 {
		t.Fatalf("resident after DetachAll = %d, want 0", p.Resident())
	}
}
