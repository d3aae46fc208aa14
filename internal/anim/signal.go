package anim

// Signal is a polled completion handle for one or more transitions.
//
// A signal is finished once it completes or is cancelled. Joined signals
// finish when every part has finished and report cancelled if any part was.
type Signal struct {
	done      bool
	cancelled bool
	parts     []*Signal
}

// Completed returns a signal that is already finished.
func Completed() *Signal {
	return &Signal{done: true}
}

// Done reports whether the signal has finished, by completion or cancellation.
func (s *Signal) Done() bool {
	if s == nil {
		return true
	}
	if s.parts == nil {
		return s.done || s.cancelled
	}
	for _, p := range s.parts {
		if !p.Done() {
			return false
		}
	}
	return true
}

// Cancelled reports whether the signal, or any joined part, was cancelled.
func (s *Signal) Cancelled() bool {
	if s == nil {
		return false
	}
	if s.parts == nil {
		return s.cancelled
	}
	for _, p := range s.parts {
		if p.Cancelled() {
			return true
		}
	}
	return false
}

func (s *Signal) complete() {
	if !s.cancelled {
		s.done = true
	}
}

func (s *Signal) cancel() {
	if !s.done {
		s.cancelled = true
	}
}

// Join returns a signal that finishes when all of signals have finished.
// Joining nothing yields a completed signal.
func Join(signals ...*Signal) *Signal {
	parts := make([]*Signal, 0, len(signals))
	for _, s := range signals {
		if s != nil {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return Completed()
	}
	return &Signal{parts: parts}
}
