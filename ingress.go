package kernel

import "sync"

// ingress is the cross-goroutine admission queue for work that must run on
// the kernel goroutine but originates elsewhere: a worker thread's future
// completion, a subprocess reaper's exit notification, or a signal
// handler's delivery. The teacher's
// original lock-free MPSC ChunkedIngress/MicrotaskRing was built for a much
// higher submission frequency (per-microtask); this kernel's cross-goroutine
// traffic is comparatively rare (pool completions, signal deliveries), so a
// plain mutex-guarded slice -- the simpler path the teacher itself falls
// back to for its "legacy" ingress -- is the better fit here.
type ingress struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
}

func newIngress() *ingress {
	return &ingress{}
}

// push enqueues fn to run on the kernel goroutine and reports whether it
// was accepted (false if the kernel has already finished draining ingress
// during shutdown).
func (in *ingress) push(fn func()) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return false
	}
	in.pending = append(in.pending, fn)
	return true
}

// drain removes and returns all pending callbacks, resetting the queue.
func (in *ingress) drain() []func() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pending) == 0 {
		return nil
	}
	out := in.pending
	in.pending = nil
	return out
}

func (in *ingress) close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}
