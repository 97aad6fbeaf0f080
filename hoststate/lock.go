package hoststate

// UpdateStatus co-locates a lock flag with a FIFO of deferred
// continuations, per spec §3/§4.2. One UpdateStatus guards a DLEntry and
// every NWEntry that shares its dladdr, so contention serializes per
// dladdr rather than per nwaddr.
//
// This is deliberately not a sync.Mutex: the "lock" here defers a logical
// continuation until an in-flight directory RPC answers, which may be an
// arbitrary number of dispatch-loop turns later, not a few instructions on
// another goroutine. See SPEC_FULL.md §5A.
type UpdateStatus struct {
	locked  bool
	waiters []func()
}

// NewUpdateStatus returns an unlocked status.
func NewUpdateStatus() *UpdateStatus { return &UpdateStatus{} }

// Locked reports whether the entry is currently locked.
func (s *UpdateStatus) Locked() bool { return s.locked }

// Lock marks the entry locked. Callers must pair this with a later Unlock.
func (s *UpdateStatus) Lock() { s.locked = true }

// Enqueue defers fn until the next Unlock drains the waiter queue. If the
// entry is not currently locked, fn runs immediately instead.
func (s *UpdateStatus) Enqueue(fn func()) {
	if !s.locked {
		fn()
		return
	}
	s.waiters = append(s.waiters, fn)
}

// Unlock flips the lock off and drains waiters in FIFO order. Each waiter
// may re-lock the status (e.g. to issue another directory call); if it
// does, draining stops until the next Unlock call, exactly like the
// source's unlock_status.
func (s *UpdateStatus) Unlock() {
	s.locked = false
	for len(s.waiters) > 0 && !s.locked {
		fn := s.waiters[0]
		s.waiters = s.waiters[1:]
		fn()
	}
}

// HasWaiters reports whether any continuation is still queued, used by the
// timer sweep to avoid destroying entries a waiter still references.
func (s *UpdateStatus) HasWaiters() bool { return len(s.waiters) > 0 }
