package kernel

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskID uniquely identifies a Task within a Kernel's lifetime.
type TaskID uint64

// TaskState describes where a Task is in its lifecycle.
type TaskState int32

const (
	// TaskRunnable means the task is on the ready queue, waiting for its turn.
	TaskRunnable TaskState = iota
	// TaskRunning means the task's goroutine currently holds the kernel's
	// single execution slot.
	TaskRunning
	// TaskBlocked means the task is parked on a trap (I/O, timer, future,
	// queue, or join) awaiting a wakeup.
	TaskBlocked
	// TaskDone means the task's function has returned, panicked, or been
	// cancelled to completion. Terminal.
	TaskDone
)

func (s TaskState) String() string {
	switch s {
	case TaskRunnable:
		return "runnable"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// resumeValue is delivered to a parked task's parkCh to unblock it. Exactly
// one of val/err is meaningful per trap; cancellation is always delivered
// as err set to a *CancelledError (or a value satisfying errors.As against
// it).
type resumeValue struct {
	val any
	err error
}

// Task is a single coroutine managed by a Kernel: one goroutine, parked on
// parkCh between turns, unparked by the kernel goroutine exactly when it
// holds the kernel's single execution slot. Fields touched only by the
// kernel goroutine (everything except parkCh sends and the atomics) need no
// synchronization by construction of the scheduling discipline.
type Task struct {
	id        TaskID
	name      string
	kernel    *Kernel
	fn        func(ctx *TaskContext) (any, error)
	spawnedAt time.Time

	taskCtx *TaskContext

	parkCh chan resumeValue

	// pendingResume is the value the kernel goroutine will hand to parkCh
	// the next time this task is dequeued and granted its turn. resume sets
	// it and enqueues the task rather than sending to parkCh directly, so
	// that exactly one task's code ever runs at a time: a direct send would
	// let the resumed goroutine start running immediately, concurrently
	// with whatever the kernel goroutine does next.
	pendingResume resumeValue

	state TaskState

	// cycles counts how many times the kernel goroutine has granted this
	// task the single execution slot. Incremented in runUntil at the same
	// point parkCh is sent to. Like state, it is written only on the kernel
	// goroutine; reads from elsewhere may observe a stale value.
	cycles uint64

	result    any
	resultErr error

	cancelRequested bool
	cancelErr       error // the specific CancelledError/TaskTimeout to deliver

	// daemon tasks do not keep the run loop alive: Kernel.Run returns once
	// every non-daemon task has terminated, regardless of any daemon tasks
	// still running, then cancels whatever daemons remain as part of
	// shutdown. Immutable after newTask, so safe to read from any goroutine.
	daemon bool

	joiners []joinWaiter // tasks parked in join_task/cancel_task, to be woken on completion

	// reportCrash controls whether an unhandled non-cancellation error
	// exiting this task is logged at Error level by finishTask.
	reportCrash bool

	pendingTimeoutSeq uint64        // sequence of the active timeout_after deadline, 0 if none
	timeoutEntry      *timerEntry   // the armed timeout_after/ignore_after heap entry, if any
	ignoreTimeout     bool          // true if the armed deadline is ignore_after (sentinel, not cancellation)

	// cancelCleanup, if set, removes this task from whatever trap-specific
	// registration (selector, wait queue, join list) is currently holding
	// it blocked. The kernel calls and clears it just before forcing a
	// resume out of turn.
	cancelCleanup func()

	done atomic.Bool
}

// ID returns the task's identifier, stable for its lifetime.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task's human-readable name, defaulting to "task-<id>"
// if not set via SpawnOptions.
func (t *Task) Name() string { return t.name }

// State returns the task's current lifecycle state. Safe to call from any
// goroutine; the value may be stale by the time it is observed.
func (t *Task) State() TaskState {
	if t.done.Load() {
		return TaskDone
	}
	return t.state
}

// Result returns the task's return value and error once it has finished.
// Calling Result before the task is Done returns (nil, ErrTaskNotDone).
func (t *Task) Result() (any, error) {
	if !t.done.Load() {
		return nil, ErrTaskNotDone
	}
	return t.result, t.resultErr
}

// Cycles returns how many times this task has been granted the kernel's
// execution slot. A freshly spawned task is guaranteed to already show at
// least one cycle by the time Spawn returns its handle to the caller.
// Safe to call from any goroutine; the value may be stale by the time it
// is observed.
func (t *Task) Cycles() int { return int(t.cycles) }

// Cancelled reports whether cancellation has been requested against this
// task, whether or not it has finished unwinding yet. Safe to call from
// any goroutine; the value may be stale by the time it is observed.
func (t *Task) Cancelled() bool { return t.cancelRequested }

// Daemon reports whether this task was spawned with SpawnOptions.Daemon.
func (t *Task) Daemon() bool { return t.daemon }

func (t *Task) String() string {
	return fmt.Sprintf("Task(id=%d, name=%q, state=%s)", t.id, t.name, t.State())
}

// run is the task's goroutine body. It waits for its first turn, executes
// fn, and reports the outcome to the kernel via the shared trap channel.
func (t *Task) run() {
	if _, ok := <-t.parkCh; !ok {
		return // kernel shut down before ever starting this task
	}

	var (
		result any
		fnErr  error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				fnErr = &taskPanicError{Value: r, stack: capturePanicStack()}
			}
		}()
		result, fnErr = t.fn(t.taskCtx)
	}()

	t.kernel.trapCh <- &trapRequest{
		task: t,
		kind: trapExit,
		exitResult: resumeValue{
			val: result,
			err: fnErr,
		},
	}
}

// SpawnOptions customizes a spawned Task.
type SpawnOptions struct {
	// Name overrides the task's display name.
	Name string
	// Daemon marks the task as not counted toward Kernel.Run's non-daemon
	// completion count: Run can return while daemon tasks are still alive,
	// at which point they are cancelled as part of shutdown.
	Daemon bool
	// ReportCrash disables the kernel's crash escalation for this task's
	// unhandled errors when false is explicit; defaults to true.
	ReportCrash *bool
}
