package vfile

import "github.com/doquedb/sydcore/internal/buffer"

// handle is the per-attached-page bookkeeping a File keeps: the fix it
// is holding plus the LRU linkage used by the in-memory page cache.
// This is the object the instance free-list recycles. The header page
// (id 0) is never returned to this pool by File (each put site checks
// the id first): header pages carry their own layout and are never
// recycled as ordinary page objects.
type handle struct {
	id   buffer.PageID
	mem  *buffer.Memory
	free bool // true once on the logical free-list (not yet physically released)

	// detached is true once DetachPage has run this handle's Unfix;
	// only a detached handle is a candidate for watermark eviction. A
	// handle still short of DetachPage is a page some caller is
	// actively holding open and must never be reclaimed by LRU
	// position alone.
	detached bool

	lruPrev, lruNext *handle
}

// instancePool is a capped LIFO stack of spare *handle objects, reused
// instead of allocated fresh on every attach. golang-lru's
// eviction-by-recency cache doesn't fit this: the pool needs "give me
// any free instance" LIFO semantics with an observable, bounded
// count (capped at 10), so it stays a plain slice.
type instancePool struct {
	cap   int
	stack []*handle
}

func newInstancePool(capacity int) *instancePool {
	if capacity <= 0 {
		capacity = 10
	}
	return &instancePool{cap: capacity}
}

// get returns a recycled handle, or a freshly allocated one if the pool
// is empty.
func (p *instancePool) get() *handle {
	if n := len(p.stack); n > 0 {
		h := p.stack[n-1]
		p.stack = p.stack[:n-1]
		*h = handle{}
		return h
	}
	return &handle{}
}

// put returns h to the pool if there is room, otherwise it is dropped
// for the garbage collector.
func (p *instancePool) put(h *handle) {
	if len(p.stack) >= p.cap {
		return
	}
	*h = handle{}
	p.stack = append(p.stack, h)
}

// len reports how many spare instances are currently pooled (tests).
func (p *instancePool) len() int { return len(p.stack) }
