package session

// Slot holds at most one pending listener. Registering replaces any pending
// listener; firing clears the slot before the listener runs, so a listener
// may register its successor.
type Slot[T any] struct {
	fn func(T)
}

// Set registers fn, overwriting any pending listener. A nil fn clears the slot.
func (s *Slot[T]) Set(fn func(T)) {
	s.fn = fn
}

// Clear drops the pending listener.
func (s *Slot[T]) Clear() {
	s.fn = nil
}

// Pending reports whether a listener is registered.
func (s *Slot[T]) Pending() bool {
	return s.fn != nil
}

// Fire invokes and clears the pending listener. It reports whether one ran.
func (s *Slot[T]) Fire(v T) bool {
	fn := s.fn
	s.fn = nil
	if fn == nil {
		return false
	}
	fn(v)
	return true
}
