package schema

import (
	"fmt"
	"sync"
)

// reservationKey is the (category, parent, name, databaseID) tuple
// each new object reserves during DDL preparation.
type reservationKey struct {
	category   Category
	parent     string
	name       string
	databaseID string
}

// Reservations tracks in-flight name reservations so that two
// concurrent DDL preparations targeting the same (category, parent,
// name) fail fast, without examining on-disk state, and tracks path
// reservations so concurrent DDL can't stage conflicting directory
// trees.
type Reservations struct {
	mu    sync.Mutex
	names map[reservationKey]bool
	paths map[string]bool
}

// NewReservations constructs an empty reservation tracker.
func NewReservations() *Reservations {
	return &Reservations{
		names: make(map[reservationKey]bool),
		paths: make(map[string]bool),
	}
}

// ErrNameReserved is returned by ReserveName when the tuple is already
// held by another in-flight DDL preparation.
var ErrNameReserved = fmt.Errorf("schema: name already reserved")

// ErrPathReserved is returned by ReservePath for the same reason,
// scoped to directory trees instead of catalog names.
var ErrPathReserved = fmt.Errorf("schema: path already reserved")

// AutoWithdraw releases a reservation when its scope exits:
// defer guard.Withdraw() after a successful
// Reserve call, and Commit() once the DDL has actually landed so the
// deferred Withdraw becomes a no-op.
type AutoWithdraw struct {
	withdraw func()
	done     bool
}

// Withdraw releases the reservation if Commit was never called.
func (g *AutoWithdraw) Withdraw() {
	if g.done {
		return
	}
	g.done = true
	g.withdraw()
}

// Commit marks the reservation as permanently consumed; the
// subsequent Withdraw (typically deferred) becomes a no-op.
func (g *AutoWithdraw) Commit() {
	g.done = true
}

// ReserveName reserves (category, parent, name, databaseID), failing
// with ErrNameReserved if it's already held.
func (r *Reservations) ReserveName(category Category, parent, name, databaseID string) (*AutoWithdraw, error) {
	key := reservationKey{category: category, parent: parent, name: name, databaseID: databaseID}

	r.mu.Lock()
	if r.names[key] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s %s/%s in database %s", ErrNameReserved, category, parent, name, databaseID)
	}
	r.names[key] = true
	r.mu.Unlock()

	return &AutoWithdraw{withdraw: func() {
		r.mu.Lock()
		delete(r.names, key)
		r.mu.Unlock()
	}}, nil
}

// ReservePath reserves a directory tree path for an in-flight DDL
// operation, failing with ErrPathReserved if the identical path is
// already held. Paths are compared as exact strings; a reservation of
// an enclosing or nested directory is not detected as a conflict.
func (r *Reservations) ReservePath(path string) (*AutoWithdraw, error) {
	r.mu.Lock()
	if r.paths[path] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPathReserved, path)
	}
	r.paths[path] = true
	r.mu.Unlock()

	return &AutoWithdraw{withdraw: func() {
		r.mu.Lock()
		delete(r.paths, path)
		r.mu.Unlock()
	}}, nil
}
