package rt

import "time"

// timedMutex is a mutex whose Lock can give up at an absolute deadline.
// Every access to shared worker state, from the controlling caller and
// from the worker thread itself, goes through it, which totally orders
// configuration calls against loop-body executions.
type timedMutex struct {
	ch chan struct{}
}

func newTimedMutex() *timedMutex {
	m := &timedMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}

	return m
}

// Lock blocks until the mutex is acquired.
func (m *timedMutex) Lock() {
	<-m.ch
}

// LockBefore tries to acquire the mutex, giving up at the absolute
// deadline. Returns true when the mutex was acquired.
func (m *timedMutex) LockBefore(deadline time.Time) bool {
	select {
	case <-m.ch:
		return true
	default:
	}

	wait := time.Until(deadline)
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-m.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex is a programming
// error and panics.
func (m *timedMutex) Unlock() {
	select {
	case m.ch <- struct{}{}:
	default:
		panic("rt: unlock of unlocked timedMutex")
	}
}
