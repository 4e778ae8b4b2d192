package osprim

import "testing"

func TestRWLock_ReadersConcurrentWritersExclusive(t *testing.T) {
	var l RWLock
	l.Lock(Read)
	if l.TryLock(Read) != true {
		t.Fatalf("second reader should be allowed in")
	}
	l.Unlock(Read)
	l.Unlock(Read)

	l.Lock(Write)
	if l.TryLock(Read) {
		t.Fatalf("reader should not be admitted while writer holds lock")
	}
	l.Unlock(Write)
}

func TestSemaphore_LockUnlockRespectsCount(t *testing.T) {
	s := NewSemaphore(1)
	s.Lock()
	if s.TryLock() {
		t.Fatalf("second lock should fail with count exhausted")
	}
	s.Unlock()
	if !s.TryLock() {
		t.Fatalf("lock should succeed after unlock")
	}
}

func TestEvent_ManualResetStaysSet(t *testing.T) {
	e := NewEvent(false)
	e.Set()
	e.Wait()
	e.Wait()
}

func TestEvent_AutoResetConsumesSignal(t *testing.T) {
	e := NewEvent(true)
	e.Set()
	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	<-done
}
