package ws

import "sync/atomic"

// ConnState is the lifecycle position of a Conn. A Conn only moves forward:
// idle -> connecting -> open -> closed. There is no way back to idle.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is an atomic ConnState.
type State struct {
	v atomic.Int32
}

func (s *State) Load() ConnState {
	return ConnState(s.v.Load())
}

func (s *State) Store(state ConnState) {
	s.v.Store(int32(state))
}

// CompareAndSwap moves from old to new and reports whether it did.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.v.CompareAndSwap(int32(old), int32(new))
}
