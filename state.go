package kernel

import (
	"sync/atomic"
)

// RunState represents the current lifecycle state of a Kernel.
//
// State Machine, as the kernel drives it:
//
//	StateAwake (0) → StateRunning (3)       [Run()]
//	StateRunning (3) → StateTerminated (1)  [shutdown complete]
//	StateTerminated (1) → (terminal)
//
// StateRunning covers the whole of Run: draining the ready queue, executing
// a task's turn, blocking in the selector's poll, and shutdown's drain.
// StateSleeping and StateTerminating are defined values that Run and
// shutdown never store.
type RunState uint64

const (
	// StateAwake indicates the kernel has been constructed but Run has not
	// yet been called.
	StateAwake RunState = 0
	// StateTerminated indicates the kernel has fully shut down: all pools,
	// the selector, and the signal dispatcher have released their resources.
	StateTerminated RunState = 1
	// StateSleeping names a kernel blocked in the selector's poll. The
	// kernel itself never stores it (see the state machine above).
	StateSleeping RunState = 2
	// StateRunning indicates Run is in progress.
	StateRunning RunState = 3
	// StateTerminating names a kernel draining tasks during shutdown. The
	// kernel itself never stores it (see the state machine above).
	StateTerminating RunState = 4
)

// String returns a human-readable representation of the state.
func (s RunState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding, used for
// the kernel's own run state. Pure atomic CAS, no mutex.
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte // padding before value, isolates from prior fields
	v atomic.Uint64
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte // pad to a full cache line
}

// newFastState creates a new state machine in the Awake state.
func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *fastState) Load() RunState {
	return RunState(s.v.Load())
}

func (s *fastState) Store(state RunState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to
// another, returning true on success.
func (s *fastState) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the kernel has fully shut down.
func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
