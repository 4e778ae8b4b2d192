package schema

import "sync/atomic"

// cachePressure tracks the global current-cache-size counter:
// incremented as database objects enter the cache,
// decremented as they leave. When it exceeds the configured limit,
// enter returns true and OverPressure reports it; this package has no
// routine of its own that trims older snapshots.
type cachePressure struct {
	limit   int64
	current atomic.Int64
}

func newCachePressure(limit int64) *cachePressure {
	return &cachePressure{limit: limit}
}

// enter accounts for n objects newly entering the cache, returning
// true if the limit was crossed (a hint to trim).
func (p *cachePressure) enter(n int64) bool {
	return p.current.Add(n) > p.limit && p.limit > 0
}

// leave accounts for n objects leaving the cache.
func (p *cachePressure) leave(n int64) {
	p.current.Add(-n)
}

// release accounts for every object a torn-down snapshot was holding.
func (p *cachePressure) release(s *Snapshot) {
	var n int64
	for _, db := range s.databases {
		n++
		for _, t := range db.Tables {
			n++
			n += int64(len(t.Indexes))
		}
	}
	p.leave(n)
}

// Size reports the current object-cache pressure counter.
func (r *Registry) Size() int64 {
	return r.pressure.current.Load()
}

// OverPressure reports whether the cache is currently over its
// configured Schema_ObjectCacheSize limit.
func (r *Registry) OverPressure() bool {
	return r.pressure.limit > 0 && r.pressure.current.Load() > r.pressure.limit
}

// AccountEnter records n objects entering the object cache (called
// when a DDL operation installs new catalog objects into a snapshot).
func (r *Registry) AccountEnter(n int64) bool {
	return r.pressure.enter(n)
}
