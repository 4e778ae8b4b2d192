package osprim

// Semaphore is a classic counting semaphore with a lock/trylock/
// unlock shape. Built on a buffered channel rather than a condition
// variable, the idiomatic Go counting-semaphore pattern.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a semaphore with initial count v.
func NewSemaphore(v uint) *Semaphore {
	s := &Semaphore{slots: make(chan struct{}, v)}
	for i := uint(0); i < v; i++ {
		s.slots <- struct{}{}
	}
	return s
}

// Lock blocks until a count is available, then consumes it.
func (s *Semaphore) Lock() { <-s.slots }

// TryLock consumes a count without blocking, reporting whether one
// was available.
func (s *Semaphore) TryLock() bool {
	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

// Unlock returns a count to the semaphore.
func (s *Semaphore) Unlock() {
	select {
	case s.slots <- struct{}{}:
	default:
	}
}
