package kernel

import (
	"fmt"
	"sync"
)

// Abide adapts a foreign (non-kernel-aware) primitive so a task can use it
// without blocking the kernel goroutine. Three shapes are recognized:
//
//   - func(ctx *TaskContext) (any, error): already coroutine-shaped, called
//     directly inline -- Abide is then just a pass-through.
//   - func() (any, error): an ordinary blocking callable, routed through
//     RunInThread.
//   - sync.Locker: a foreign lock, acquired on a dedicated goroutine (see
//     AbideLocker) so the kernel never blocks waiting for it.
//
// Anything else is a programming error, reported as a plain error rather
// than a panic, since the set of foreign primitives a caller might pass is
// inherently open-ended.
func Abide(ctx *TaskContext, v any) (any, error) {
	switch f := v.(type) {
	case func(ctx *TaskContext) (any, error):
		return f(ctx)
	case func() (any, error):
		return RunInThread(ctx, f)
	case sync.Locker:
		release, err := AbideLocker(ctx, f)
		return release, err
	default:
		return nil, fmt.Errorf("kernel: abide: unsupported primitive type %T", v)
	}
}

// AbideLocker acquires l asynchronously, parking the calling task until
// acquisition succeeds, and returns a release function to call (again
// asynchronously) when done. A backing goroutine actually owns the call
// into l.Lock/Unlock and is kept alive even if the waiting task is
// cancelled before acquisition completes: it still acquires and
// immediately releases the foreign lock, so a foreign mutex is never left
// permanently held just because the task that wanted it gave up waiting.
func AbideLocker(ctx *TaskContext, l sync.Locker) (release func(ctx *TaskContext) error, err error) {
	acquired := make(chan struct{})
	releaseRequested := make(chan struct{})
	released := make(chan struct{})

	go func() {
		l.Lock()
		close(acquired)
		<-releaseRequested
		l.Unlock()
		close(released)
	}()

	acquireFuture := newFuture()
	go func() {
		<-acquired
		acquireFuture.complete(nil, nil)
	}()

	_, werr := ctx.trap(&trapRequest{kind: trapFutureWait, future: acquireFuture})
	if werr != nil {
		// Cancelled before we ever acquired the lock. The backing
		// goroutine will still acquire it eventually; release it the
		// instant it does, so the foreign lock is never leaked.
		go func() {
			<-acquired
			close(releaseRequested)
			<-released
		}()
		return nil, werr
	}

	release = func(relCtx *TaskContext) error {
		close(releaseRequested)
		releaseFuture := newFuture()
		go func() {
			<-released
			releaseFuture.complete(nil, nil)
		}()
		_, rerr := relCtx.trap(&trapRequest{kind: trapFutureWait, future: releaseFuture})
		return rerr
	}
	return release, nil
}
