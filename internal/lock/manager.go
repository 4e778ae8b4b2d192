package lock

import (
	"fmt"
	"sync"
)

// Owner identifies whoever is requesting or holding a lock — a
// transaction ID, in practice, but kept opaque here so internal/schema
// and internal/reorganize can key it however suits them.
type Owner uint64

func (o Owner) String() string {
	return fmt.Sprintf("owner#%d", uint64(o))
}

type heldLock struct {
	mode     Mode
	duration Duration
}

type waiter struct {
	owner    Owner
	mode     Mode
	duration Duration
	ready    chan struct{}
}

type entry struct {
	holders map[Owner]heldLock
	queue   []*waiter
}

// Manager is the process-wide lock & hold matrix: a map from Name to the
// set of owners currently holding (or waiting for) a lock on it. Grant
// decisions go through Compatible; waiters are examined first-in-first-out
// and each is granted once the holder set no longer conflicts with it.
type Manager struct {
	mu      sync.Mutex
	entries map[Name]*entry
}

// NewManager constructs an empty lock table.
func NewManager() *Manager {
	return &Manager{entries: make(map[Name]*entry)}
}

// ErrWouldDeadlock is returned by Hold when granting the request would
// require the caller to wait on itself — i.e. the owner already holds
// an incompatible mode on the same name. Upgrading via convert is the
// correct path in that case, not a second Hold call.
var ErrWouldDeadlock = fmt.Errorf("lock: owner already holds an incompatible mode; use Convert")

// Hold blocks until name can be granted to owner at mode.
func (t *Manager) Hold(owner Owner, name Name, mode Mode, duration Duration) error {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok {
		e = &entry{holders: make(map[Owner]heldLock)}
		t.entries[name] = e
	}
	if existing, already := e.holders[owner]; already {
		t.mu.Unlock()
		if existing.mode == mode || Compatible(existing.mode, mode) {
			return nil
		}
		return ErrWouldDeadlock
	}
	if t.compatibleWithAllLocked(e, mode) {
		e.holders[owner] = heldLock{mode: mode, duration: duration}
		t.mu.Unlock()
		return nil
	}
	w := &waiter{owner: owner, mode: mode, duration: duration, ready: make(chan struct{})}
	e.queue = append(e.queue, w)
	t.mu.Unlock()

	<-w.ready
	return nil
}

func (t *Manager) compatibleWithAllLocked(e *entry, mode Mode) bool {
	for _, h := range e.holders {
		if !Compatible(h.mode, mode) {
			return false
		}
	}
	return true
}

// Convert upgrades owner's existing hold on name to the least upper
// bound of its current mode and requested, a no-op if that is already
// the mode held. It never blocks on other holders that are compatible
// with the joined mode; it returns an error if the join would conflict
// with someone else's hold (the caller must release enough for the
// convert to succeed first).
func (t *Manager) Convert(owner Owner, name Name, requested Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		return fmt.Errorf("lock: convert on unheld name %s", name)
	}
	cur, ok := e.holders[owner]
	if !ok {
		return fmt.Errorf("lock: convert by non-holder %s on %s", owner, name)
	}
	joined := GetLeastUpperBound(cur.mode, requested)
	if joined == cur.mode {
		return nil
	}
	for o, h := range e.holders {
		if o == owner {
			continue
		}
		if !Compatible(h.mode, joined) {
			return fmt.Errorf("lock: convert %s on %s to %s blocked by %s", owner, name, joined, o)
		}
	}
	e.holders[owner] = heldLock{mode: joined, duration: cur.duration}
	return nil
}

// Release drops owner's hold on name, provided it was acquired at a
// releasable duration (explicit release applies to Short/Cursor- and
// Long/User-duration holds only). It then wakes any
// waiters whose requested mode is now compatible with everyone still
// holding the name.
func (t *Manager) Release(owner Owner, name Name) error {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("lock: release on unheld name %s", name)
	}
	h, ok := e.holders[owner]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("lock: release by non-holder %s on %s", owner, name)
	}
	if !h.duration.Releasable() {
		t.mu.Unlock()
		return fmt.Errorf("lock: %s duration hold on %s is not explicitly releasable", h.duration, name)
	}
	delete(e.holders, owner)
	t.wakeLocked(e)
	if len(e.holders) == 0 && len(e.queue) == 0 {
		delete(t.entries, name)
	}
	t.mu.Unlock()
	return nil
}

// ReleaseAll drops every hold owner has regardless of duration — used
// at transaction end to discard Instant/Statement/Middle-duration
// holds in bulk, and at rollback time.
func (t *Manager) ReleaseAll(owner Owner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, e := range t.entries {
		if _, ok := e.holders[owner]; ok {
			delete(e.holders, owner)
			t.wakeLocked(e)
			if len(e.holders) == 0 && len(e.queue) == 0 {
				delete(t.entries, name)
			}
		}
	}
}

// wakeLocked walks the queue in FIFO order and grants each waiter whose
// mode is compatible with the holder set as it grows; a conflicting
// waiter stays queued and does not hold back the waiters behind it.
func (t *Manager) wakeLocked(e *entry) {
	remaining := e.queue[:0]
	for _, w := range e.queue {
		if t.compatibleWithAllLocked(e, w.mode) {
			e.holders[w.owner] = heldLock{mode: w.mode, duration: w.duration}
			close(w.ready)
		} else {
			remaining = append(remaining, w)
		}
	}
	e.queue = remaining
}

// Mode reports the mode owner currently holds on name, or N if none.
func (t *Manager) Mode(owner Owner, name Name) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		return N
	}
	h, ok := e.holders[owner]
	if !ok {
		return N
	}
	return h.mode
}
