package buffer

import (
	"errors"
	"fmt"
	"sync"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Errors returned by Fix. Unfix never errors under normal operation.
var (
	ErrIOError         = errors.New("buffer: i/o error")
	ErrBufferExhausted = errors.New("buffer: pool exhausted")
)

// CacheStrategy selects the eviction policy a Pool uses for
// unreferenced pages: segmented LRU, or ARC via
// hashicorp/golang-lru/arc/v2.
type CacheStrategy int

const (
	StrategyNone CacheStrategy = iota // no eviction; pages held until explicit free
	StrategyLRU
	StrategyARC
)

// Config configures a Pool.
type Config struct {
	Strategy CacheStrategy

	// LowCapacity/MiddleCapacity bound the number of unreferenced,
	// non-dirty pages held per ReplacementPriority when Strategy is
	// StrategyLRU. Low-priority pages are evicted before Middle ones.
	LowCapacity    int
	MiddleCapacity int

	// ARCCapacity sizes the ARC candidate set when Strategy is
	// StrategyARC (ARC does not distinguish replacement priority).
	// Pages that fall out of that set are not dropped from the pool.
	ARCCapacity int
}

// DefaultConfig returns a sensible LRU-backed configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyLRU,
		LowCapacity:    256,
		MiddleCapacity: 768,
		ARCCapacity:    1024,
	}
}

// Source is the backing store a Pool fixes pages through. The versioned
// page layer (internal/version) implements this.
type Source interface {
	ReadPage(id PageID) ([]byte, error)
	AllocatePage() (PageID, []byte, error)
	// WritePage persists data for id, stamped with ts. If async is
	// false the call blocks until durable.
	WritePage(id PageID, data []byte, ts Timestamp, async bool) error
}

// Pool is an LRU (or ARC) page cache implementing the fix/unfix
// protocol with replacement-priority-aware eviction.
type Pool struct {
	mu  sync.Mutex
	src Source
	cfg Config

	pages map[PageID]*Page

	lowCand *lru.Cache[PageID, struct{}]
	midCand *lru.Cache[PageID, struct{}]
	arcCand *arc.ARCCache[PageID, struct{}]

	flushInhibited bool
}

// NewPool creates a Pool reading/writing through src.
func NewPool(src Source, cfg Config) (*Pool, error) {
	p := &Pool{src: src, cfg: cfg, pages: make(map[PageID]*Page)}

	switch cfg.Strategy {
	case StrategyLRU:
		low, err := lru.NewWithEvict[PageID, struct{}](max(1, cfg.LowCapacity), func(id PageID, _ struct{}) {
			p.evictLocked(id)
		})
		if err != nil {
			return nil, fmt.Errorf("buffer: low-priority cache: %w", err)
		}
		mid, err := lru.NewWithEvict[PageID, struct{}](max(1, cfg.MiddleCapacity), func(id PageID, _ struct{}) {
			p.evictLocked(id)
		})
		if err != nil {
			return nil, fmt.Errorf("buffer: middle-priority cache: %w", err)
		}
		p.lowCand, p.midCand = low, mid
	case StrategyARC:
		a, err := arc.NewARC[PageID, struct{}](max(1, cfg.ARCCapacity))
		if err != nil {
			return nil, fmt.Errorf("buffer: arc cache: %w", err)
		}
		p.arcCand = a
	case StrategyNone:
		// no eviction candidate tracking; pages live until FreePage.
	}
	return p, nil
}

// SetFlushInhibited toggles the global flush-inhibit flag: while set,
// Unfix does not write dirty pages through (they stay dirty) and
// eviction of any page is refused, so pages stay resident rather than
// being written.
func (p *Pool) SetFlushInhibited(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushInhibited = v
}

// Memory is the reference-counted, fix-scoped handle to a page returned
// by Fix. It plays the role the design notes assign to FixGuard: a
// borrow of the pool's cache that must be released via Unfix.
type Memory struct {
	pool    *Page
	owner   *Pool
	mode    FixMode
	unfixed bool
}

// Bytes returns the page payload. Mutating it is only meaningful under a
// Write or Allocate fix.
func (m *Memory) Bytes() []byte { return m.pool.bytes() }

// ID returns the fixed page's identity.
func (m *Memory) ID() PageID { return m.pool.id }

// Touch marks the current modification as no-longer-undoable and
// stamps a fresh timestamp.
func (m *Memory) Touch(dirty bool) {
	m.pool.mu.Lock()
	defer m.pool.mu.Unlock()
	if dirty {
		m.pool.dirty = true
	}
	m.pool.block.LastModification = AssignTimestamp()
	m.pool.discardable = false
}

// Discardable flips the fix to permit rollback of subsequent writes.
func (m *Memory) Discardable() {
	m.pool.mu.Lock()
	defer m.pool.mu.Unlock()
	m.pool.discardable = true
}

// Evictable reports whether the underlying page currently has no
// outstanding fixes and no unflushed modification — the gate on any
// cache above this one reclaiming a page by policy rather than
// through Unfix.
func (m *Memory) Evictable() bool {
	m.pool.mu.Lock()
	defer m.pool.mu.Unlock()
	return m.pool.refCount == 0 && !m.pool.dirty
}

// Unfix releases the fix. dirty is ORed with any internally tracked
// dirty bit; a dirty unfix requests write-through (async unless
// asynchronously is false).
func (m *Memory) Unfix(dirty bool, asynchronously bool) error {
	return m.unfix(dirty, 0, asynchronously, false)
}

// UnfixAt is like Unfix but forces a caller-supplied timestamp rather
// than assigning a fresh one.
func (m *Memory) UnfixAt(ts Timestamp, asynchronously bool) error {
	return m.unfix(true, ts, asynchronously, true)
}

func (m *Memory) unfix(dirty bool, ts Timestamp, asynchronously bool, forceTS bool) error {
	if m.unfixed {
		return nil
	}
	m.unfixed = true

	pg := m.pool
	pg.mu.Lock()
	pg.dirty = pg.dirty || dirty
	mustFlush := pg.dirty
	if mustFlush {
		if forceTS {
			pg.block.LastModification = ts
		} else {
			pg.block.LastModification = AssignTimestamp()
		}
	}
	stampedTS := pg.block.LastModification
	payload := append([]byte(nil), pg.block.Payload...)
	pg.refCount--
	rc := pg.refCount
	pg.mu.Unlock()

	if mustFlush {
		owner := m.owner
		owner.mu.Lock()
		inhibited := owner.flushInhibited
		owner.mu.Unlock()
		if !inhibited {
			if err := m.owner.src.WritePage(pg.id, payload, stampedTS, asynchronously); err != nil {
				return fmt.Errorf("buffer: unfix flush page %d: %w", pg.id, err)
			}
			pg.mu.Lock()
			pg.dirty = false
			pg.mu.Unlock()
		}
	}

	if rc == 0 {
		m.owner.markCandidate(pg)
	}
	return nil
}

// Fix loads (or returns the cached copy of) page id, pinning it in the
// cache until Unfix is called.
func (p *Pool) Fix(id PageID, mode FixMode, prio ReplacementPriority) (*Memory, error) {
	p.mu.Lock()
	if pg, ok := p.pages[id]; ok {
		pg.mu.Lock()
		pg.refCount++
		pg.priority = prio
		pg.mu.Unlock()
		p.unmarkCandidateLocked(id)
		p.mu.Unlock()
		return &Memory{pool: pg, owner: p, mode: mode}, nil
	}
	p.mu.Unlock()

	raw, err := p.src.ReadPage(id)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrIOError, id, err)
	}
	pg := &Page{id: id, block: Block{Payload: raw}, refCount: 1, priority: prio, discardable: mode.Has(Discardable)}

	p.mu.Lock()
	p.pages[id] = pg
	p.mu.Unlock()

	return &Memory{pool: pg, owner: p, mode: mode}, nil
}

// AllocateFix fixes a brand-new page obtained from the source.
func (p *Pool) AllocateFix(prio ReplacementPriority) (*Memory, error) {
	id, raw, err := p.src.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBufferExhausted, err)
	}
	pg := &Page{id: id, block: Block{Payload: raw}, refCount: 1, priority: prio, dirty: true, discardable: true}

	p.mu.Lock()
	p.pages[id] = pg
	p.mu.Unlock()

	return &Memory{pool: pg, owner: p, mode: Write | Allocate | Discardable}, nil
}

// FreePage drops a page from the cache entirely (it has been freed at
// the logical-file level and must not be handed out again until
// reallocated).
func (p *Pool) FreePage(id PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pages, id)
	p.unmarkCandidateLocked(id)
}

func (p *Pool) markCandidate(pg *Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.cfg.Strategy {
	case StrategyLRU:
		if pg.priority == Low {
			p.lowCand.Add(pg.id, struct{}{})
		} else {
			p.midCand.Add(pg.id, struct{}{})
		}
	case StrategyARC:
		p.arcCand.Add(pg.id, struct{}{})
	}
}

func (p *Pool) unmarkCandidateLocked(id PageID) {
	switch p.cfg.Strategy {
	case StrategyLRU:
		p.lowCand.Remove(id)
		p.midCand.Remove(id)
	case StrategyARC:
		p.arcCand.Remove(id)
	}
}

// evictLocked is the onEvicted callback for the LRU candidate caches.
// golang-lru calls it synchronously from Add, Remove and Purge, and
// every such call in this file is made with p.mu already held, so it
// must not lock p.mu itself; it only touches p.pages. A page that has
// been fixed again since it became a candidate stays cached.
func (p *Pool) evictLocked(id PageID) {
	pg, ok := p.pages[id]
	if !ok {
		return
	}
	if p.flushInhibited {
		// Historical: refuse to evict while inhibited. Leave it
		// resident; it will be reconsidered on the next markCandidate.
		return
	}

	pg.mu.Lock()
	if pg.refCount > 0 {
		pg.mu.Unlock()
		return
	}
	delete(p.pages, id)
	dirty := pg.dirty
	payload := append([]byte(nil), pg.block.Payload...)
	ts := pg.block.LastModification
	pg.mu.Unlock()

	if dirty {
		// Best effort: synchronous write-through on eviction, since
		// there is no caller left to observe a deferred error.
		_ = p.src.WritePage(id, payload, ts, false)
	}
}

// DetachAll drops every cached page without flushing, used by the
// version layer's detach_page_all during recovery.
func (p *Pool) DetachAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = make(map[PageID]*Page)
	switch p.cfg.Strategy {
	case StrategyLRU:
		p.lowCand.Purge()
		p.midCand.Purge()
	case StrategyARC:
		p.arcCand.Purge()
	}
}

// Resident reports how many pages are currently cached (for tests/diagnostics).
func (p *Pool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
