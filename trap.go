package kernel

import "time"

// trapKind tags the kind of request a task's goroutine sends to the
// kernel's trapCh when it needs to suspend. The kernel goroutine is the
// only receiver of trapCh, which is what guarantees at most one task's
// Go code runs at any instant: a task is never resumed (parkCh sent to)
// until it has either trapped or exited.
type trapKind int

const (
	trapSleep            trapKind = iota // park until a deadline elapses
	trapReadWait                         // park until fd is readable
	trapWriteWait                        // park until fd is writable
	trapFutureWait                       // park until a future completes
	trapJoinTask                         // park until another task finishes
	trapCancelTask                       // request cancellation of another task
	trapSpawn                            // register a newly created task
	trapAdmin                            // run an arbitrary kernel-goroutine-side mutation, optionally parking
	trapSigWait                          // park until one watched signal arrives
	trapSetTimeout                       // arm a timeout_after/ignore_after deadline
	trapUnsetTimeout                     // disarm a previously armed deadline
	trapGetKernel                        // return the running Kernel
	trapGetCurrent                       // return the calling Task
	trapExit                             // task goroutine finished (fn returned or panicked)
)

func (k trapKind) String() string {
	switch k {
	case trapSleep:
		return "sleep"
	case trapReadWait:
		return "read_wait"
	case trapWriteWait:
		return "write_wait"
	case trapFutureWait:
		return "future_wait"
	case trapJoinTask:
		return "join_task"
	case trapCancelTask:
		return "cancel_task"
	case trapSpawn:
		return "spawn"
	case trapAdmin:
		return "admin"
	case trapSigWait:
		return "sig_wait"
	case trapSetTimeout:
		return "set_timeout"
	case trapUnsetTimeout:
		return "unset_timeout"
	case trapGetKernel:
		return "get_kernel"
	case trapGetCurrent:
		return "get_current"
	case trapExit:
		return "exit"
	default:
		return "unknown"
	}
}

// trapRequest is the single message type tasks send to the kernel. Only the
// fields relevant to kind are populated.
type trapRequest struct {
	task *Task
	kind trapKind

	// trapSleep
	duration time.Duration

	// trapReadWait / trapWriteWait
	fd int

	// trapFutureWait
	future       *future
	futureCancel func() // optional: invoked if the waiting task is cancelled/timed out

	// trapJoinTask / trapCancelTask
	target *Task
	cause  error // optional cancellation cause for trapCancelTask

	// trapSpawn
	spawnFn   func(ctx *TaskContext) (any, error)
	spawnOpts SpawnOptions

	// trapAdmin: runs on the kernel goroutine with access to both the
	// kernel and the calling task, and reports whether the caller should
	// park (and on which wait queue) or be resumed immediately.
	admin func(k *Kernel, t *Task) adminOutcome

	// trapSigWait
	sigSet *SignalSet

	// trapSetTimeout / trapUnsetTimeout
	timeoutSeq uint64
	ignore     bool // ignore_after semantics: expiry resumes with sentinel, not CancelledError

	// trapExit
	exitResult resumeValue
}

// joinWaiter is an entry on a task's joiners list: the parked task to wake,
// and whether it got there via cancel_task (in which case it needs a
// cancelOutcome rather than a bare error) or a plain join_task.
type joinWaiter struct {
	task     *Task
	asCancel bool
}

// cancelOutcome is delivered to a task parked on trapCancelTask once its
// target finishes, so Cancel can distinguish an effectual cancellation
// (the target was still alive and was torn down) from a no-op one (the
// target had already finished before the cancel was requested).
type cancelOutcome struct {
	effected bool
	err      error
}

// adminOutcome is what a trapAdmin closure reports back to the dispatcher:
// either an immediate result/error, or a request to park the calling task
// on queue until some other admin op reschedules it.
type adminOutcome struct {
	result any
	err    error
	park   bool
	queue  *waitQueue
}
