package schema

import (
	"sync"

	"github.com/google/uuid"
)

// TransactionID identifies the transaction a session is currently
// running, the registry's session-binding key.
type TransactionID uint64

// SessionID identifies a client session across transactions.
type SessionID uuid.UUID

// NewSessionID allocates a fresh session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// Snapshot is an immutable-from-the-outside view of the catalog as of
// some reorganize boundary. Objects are looked up by (category, id);
// mutation methods used during DDL preparation return a new *Snapshot
// rather than editing a shared one in place, so concurrently bound
// snapshots never observe each other's in-flight changes.
type Snapshot struct {
	id        uint64
	databases map[string]*Database
}

func newSnapshot(id uint64) *Snapshot {
	return &Snapshot{id: id, databases: make(map[string]*Database)}
}

// clone performs a shallow copy-on-write: the database map is copied,
// but Database/Table/Index values are shared until a reservation
// commits a new one over the top.
func (s *Snapshot) clone(nextID uint64) *Snapshot {
	out := newSnapshot(nextID)
	for k, v := range s.databases {
		out.databases[k] = v
	}
	return out
}

// Databases exposes the snapshot's mutable database map, for use
// inside a Registry.Commit mutation closure.
func (s *Snapshot) Databases() map[string]*Database {
	return s.databases
}

// Database looks up a database by id.
func (s *Snapshot) Database(id string) (*Database, bool) {
	db, ok := s.databases[id]
	return db, ok
}

// Table looks up a table by its owning database and table id.
func (s *Snapshot) Table(databaseID, tableID string) (*Table, bool) {
	db, ok := s.databases[databaseID]
	if !ok {
		return nil, false
	}
	t, ok := db.Tables[tableID]
	return t, ok
}

type sessionBinding struct {
	transactionID TransactionID
	snapshot      *Snapshot
}

// Registry is the process-singleton snapshot registry.
type Registry struct {
	mu sync.Mutex

	nextSnapshotID uint64
	readWriteSnapshot *Snapshot
	currentSnapshot   *Snapshot
	lastReorganize    TransactionID

	sessions map[SessionID]*sessionBinding

	pressure *cachePressure
}

// NewRegistry constructs an empty registry with the given
// object-cache pressure limit.
func NewRegistry(objectCacheSize int64) *Registry {
	return &Registry{
		sessions: make(map[SessionID]*sessionBinding),
		pressure: newCachePressure(objectCacheSize),
	}
}

func (r *Registry) nextID() uint64 {
	r.nextSnapshotID++
	return r.nextSnapshotID
}

// Select picks the snapshot a transaction identified by (session,
// txID, versioned) observes. versioned=false means the transaction
// reads and writes current state and shares the read-write snapshot.
func (r *Registry) Select(session SessionID, txID TransactionID, versioned bool) *Snapshot {
	r.mu.Lock()

	if !versioned {
		if r.readWriteSnapshot == nil {
			r.readWriteSnapshot = newSnapshot(r.nextID())
		}
		snap := r.readWriteSnapshot
		r.mu.Unlock()
		return snap
	}

	binding, ok := r.sessions[session]
	if !ok {
		binding = &sessionBinding{}
		r.sessions[session] = binding
	}

	// A binding swapped out here is released below, after the
	// registry latch is dropped, the same discipline Erase follows.
	var released *Snapshot
	switch {
	case txID > r.lastReorganize:
		if r.currentSnapshot == nil {
			r.currentSnapshot = newSnapshot(r.nextID())
		}
		if binding.snapshot != nil && binding.snapshot != r.currentSnapshot {
			released = binding.snapshot
		}
		binding.transactionID = txID
		binding.snapshot = r.currentSnapshot
	case binding.transactionID != txID:
		released = binding.snapshot
		binding.transactionID = txID
		binding.snapshot = newSnapshot(r.nextID())
	}

	snap := binding.snapshot
	r.mu.Unlock()
	if released != nil {
		r.pressure.release(released)
	}
	return snap
}

// Commit is how a DDL operation publishes a schema change: it clones
// the current shared snapshot (or starts a fresh one, if none has been
// selected yet), lets mutate edit the clone's maps, installs the clone
// as the new currentSnapshot, and advances the reorganize boundary to
// asOf so subsequent Select calls for later transactions pick it up.
// Sessions still bound to the prior snapshot are unaffected until they
// start a transaction that postdates asOf.
func (r *Registry) Commit(asOf TransactionID, mutate func(*Snapshot)) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := r.currentSnapshot
	var next *Snapshot
	if base == nil {
		next = newSnapshot(r.nextID())
	} else {
		next = base.clone(r.nextID())
	}
	mutate(next)

	r.currentSnapshot = next
	r.lastReorganize = asOf
	return next
}

// ReCache advances the reorganize boundary and discards the shared
// current snapshot: subsequent Select calls for
// transactions that now postdate the boundary build a fresh one.
func (r *Registry) ReCache(asOf TransactionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastReorganize = asOf
	r.currentSnapshot = nil
}

// Erase releases session's bound snapshot. It must
// not hold the registry's own latch while doing any snapshot teardown
// work that could itself need the latch (object-cache eviction,
// reference counting) — the lock is dropped before the teardown hook
// runs, to avoid a lock inversion against the schema map's own
// latches.
func (r *Registry) Erase(session SessionID) {
	r.mu.Lock()
	binding, ok := r.sessions[session]
	if ok {
		delete(r.sessions, session)
	}
	r.mu.Unlock()

	if ok && binding.snapshot != nil {
		r.pressure.release(binding.snapshot)
	}
}

// eraseObject propagates removal of a schema object to every snapshot
// the registry currently has bound (the shared ones plus every live
// session binding).
func (r *Registry) eraseObject(databaseID, tableID, indexID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apply := func(s *Snapshot) {
		if s == nil {
			return
		}
		db, ok := s.databases[databaseID]
		if !ok {
			return
		}
		if tableID == "" {
			delete(s.databases, databaseID)
			return
		}
		t, ok := db.Tables[tableID]
		if !ok {
			return
		}
		if indexID == "" {
			delete(db.Tables, tableID)
			return
		}
		delete(t.Indexes, indexID)
	}

	apply(r.readWriteSnapshot)
	apply(r.currentSnapshot)
	for _, b := range r.sessions {
		apply(b.snapshot)
	}
}

// EraseDatabase removes a database from every bound snapshot.
func (r *Registry) EraseDatabase(databaseID string) { r.eraseObject(databaseID, "", "") }

// EraseTable removes a table from every bound snapshot.
func (r *Registry) EraseTable(databaseID, tableID string) { r.eraseObject(databaseID, tableID, "") }

// EraseIndex removes an index from every bound snapshot.
func (r *Registry) EraseIndex(databaseID, tableID, indexID string) {
	r.eraseObject(databaseID, tableID, indexID)
}
