package kernel

import "sync"

// future is a single-subscriber completion cell shared between a task
// parked on trapFutureWait and whatever goroutine eventually produces the
// result (a worker thread, a subprocess reaper, a user Executor). Unlike
// the teacher's original multi-subscriber promise with weak-pointer fan-out
// registry, a kernel future is always owned by exactly one Task, so a plain
// mutex-guarded cell with a single completion callback is sufficient.
type future struct {
	mu       sync.Mutex
	done     bool
	val      any
	err      error
	onDone   func(val any, err error) // invoked at most once, possibly off the kernel goroutine
}

func newFuture() *future {
	return &future{}
}

// complete settles the future. Safe to call from any goroutine; only the
// first call has an effect.
func (f *future) complete(val any, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.val, f.err = val, err
	cb := f.onDone
	f.onDone = nil
	f.mu.Unlock()

	if cb != nil {
		cb(val, err)
	}
}

// notify registers cb to run once, either immediately (if already done) or
// when complete is next called. Only the kernel goroutine calls notify, and
// it does so exactly once per future.
func (f *future) notify(cb func(val any, err error)) {
	f.mu.Lock()
	if f.done {
		val, err := f.val, f.err
		f.mu.Unlock()
		cb(val, err)
		return
	}
	f.onDone = cb
	f.mu.Unlock()
}
