package kernel

import (
	"time"
)

// TaskContext is handed to every task's function. It is the task's sole
// means of reaching the kernel: every blocking operation in this package
// (Sleep, Spawn, RunInThread, the synchronization primitives, ...) takes a
// *TaskContext and funnels through its trap method, which is how a task's
// goroutine asks the kernel goroutine to suspend it.
type TaskContext struct {
	task   *Task
	kernel *Kernel
}

// Task returns the Task this context belongs to.
func (c *TaskContext) Task() *Task { return c.task }

// Kernel returns the Kernel running this task.
func (c *TaskContext) Kernel() *Kernel { return c.kernel }

// Deadline reports the active timeout_after/ignore_after deadline armed on
// this task's current trap, if any.
func (c *TaskContext) Deadline() (time.Time, bool) {
	if c.task.timeoutEntry == nil {
		return time.Time{}, false
	}
	return c.task.timeoutEntry.deadline, true
}

// trap sends req to the kernel goroutine and blocks until the kernel
// resumes this task, returning whatever value/error the kernel delivered.
func (c *TaskContext) trap(req *trapRequest) (any, error) {
	req.task = c.task
	c.kernel.trapCh <- req
	rv, ok := <-c.task.parkCh
	if !ok {
		return nil, ErrKernelClosed
	}
	return rv.val, rv.err
}

// Spawn starts fn as a new concurrently-scheduled task and returns a handle
// to it. The new task is queued ahead of the caller, so it has run at least
// one cycle by the time Spawn returns.
func Spawn(ctx *TaskContext, fn func(ctx *TaskContext) (any, error), opts ...SpawnOptions) (*Task, error) {
	var o SpawnOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	v, err := ctx.trap(&trapRequest{kind: trapSpawn, spawnFn: fn, spawnOpts: o})
	if err != nil {
		return nil, err
	}
	return v.(*Task), nil
}

// Sleep parks the current task for d, or until cancelled.
func Sleep(ctx *TaskContext, d time.Duration) error {
	_, err := ctx.trap(&trapRequest{kind: trapSleep, duration: d})
	return err
}

// Join blocks until target finishes, returning a *TaskError wrapping its
// terminal error if it failed.
func Join(ctx *TaskContext, target *Task) error {
	v, err := ctx.trap(&trapRequest{kind: trapJoinTask, target: target})
	if err != nil {
		return err
	}
	if terr, _ := v.(error); terr != nil {
		return &TaskError{Task: target, Err: terr}
	}
	return nil
}

// Cancel requests cancellation of target and blocks until it has finished
// unwinding, returning its terminal error (if it failed for a reason other
// than the cancellation itself) alongside effected, which reports whether
// this call actually tore down a running target versus finding it already
// terminated (a no-op). Cancelling the calling task itself is rejected
// synchronously: self-cancellation is a programming error, not a trap the
// kernel ever sees.
func Cancel(ctx *TaskContext, target *Task, cause error) (effected bool, err error) {
	if target == ctx.task {
		return false, ErrSelfCancel
	}
	v, err := ctx.trap(&trapRequest{kind: trapCancelTask, target: target, cause: cause})
	if err != nil {
		return false, err
	}
	out := v.(cancelOutcome)
	if out.err != nil && !isCancellation(out.err) {
		return out.effected, &TaskError{Task: target, Err: out.err}
	}
	return out.effected, nil
}

// CurrentTask returns the task executing this call.
func CurrentTask(ctx *TaskContext) (*Task, error) {
	v, err := ctx.trap(&trapRequest{kind: trapGetCurrent})
	if err != nil {
		return nil, err
	}
	return v.(*Task), nil
}

// CurrentKernel returns the kernel running the calling task.
func CurrentKernel(ctx *TaskContext) (*Kernel, error) {
	v, err := ctx.trap(&trapRequest{kind: trapGetKernel})
	if err != nil {
		return nil, err
	}
	return v.(*Kernel), nil
}

// TimeoutAfter runs fn under a deadline: if fn has not returned within d,
// its current (or next) trap is interrupted with a *TaskTimeout, which
// propagates out of TimeoutAfter as the returned error.
func TimeoutAfter(ctx *TaskContext, d time.Duration, fn func(ctx *TaskContext) (any, error)) (any, error) {
	seq, err := armTimeout(ctx, d, false)
	if err != nil {
		return nil, err
	}
	val, fnErr := fn(ctx)
	disarmTimeout(ctx, seq)
	return val, fnErr
}

// IgnoreAfter runs fn under a deadline like TimeoutAfter, but on expiry
// reports timedOut=true with a nil error instead of propagating
// *TaskTimeout, matching curio's ignore_after sentinel-return semantics.
func IgnoreAfter(ctx *TaskContext, d time.Duration, fn func(ctx *TaskContext) (any, error)) (result any, timedOut bool, err error) {
	seq, err := armTimeout(ctx, d, true)
	if err != nil {
		return nil, false, err
	}
	val, fnErr := fn(ctx)
	disarmTimeout(ctx, seq)
	if fnErr != nil {
		if isTaskTimeout(fnErr) {
			return nil, true, nil
		}
		return nil, false, fnErr
	}
	return val, false, nil
}

func armTimeout(ctx *TaskContext, d time.Duration, ignore bool) (uint64, error) {
	v, err := ctx.trap(&trapRequest{kind: trapSetTimeout, duration: d, ignore: ignore})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func disarmTimeout(ctx *TaskContext, seq uint64) {
	ctx.trap(&trapRequest{kind: trapUnsetTimeout, timeoutSeq: seq})
}

func isTaskTimeout(err error) bool {
	_, ok := err.(*TaskTimeout)
	if ok {
		return true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if _, ok := err.(*TaskTimeout); ok {
			return true
		}
	}
	return false
}
