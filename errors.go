package kernel

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// CancelledError is delivered to a task's current trap when it is
// cancelled, either directly via Cancel or as the terminal unwind of a
// TaskTimeout. A task that catches and swallows a CancelledError without
// returning is not granted a reprieve: the kernel re-raises it on that
// task's very next trap, so cancellation cannot be silently absorbed.
type CancelledError struct {
	Cause error // optional underlying reason (e.g. Shutdown, a parent's cancellation)
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task cancelled: %v", e.Cause)
	}
	return "task cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// TaskTimeout is raised in place of a bare CancelledError when a
// timeout_after deadline fires. It wraps a CancelledError so that
// errors.As(err, new(*CancelledError)) still matches.
type TaskTimeout struct {
	Duration string
}

func (e *TaskTimeout) Error() string {
	return fmt.Sprintf("task timed out after %s", e.Duration)
}

func (e *TaskTimeout) Unwrap() error { return &CancelledError{Cause: e} }

// TaskError wraps the terminal error of a task that another task Joined,
// so the joiner can distinguish "the task I joined failed" from an error
// return of its own.
type TaskError struct {
	Task *Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task.Name(), e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Synchronous invariant-violation errors: these are never delivered via a
// trap's resumeValue, only returned directly by the offending call.
var (
	// ErrTaskNotDone is returned by Task.Result before the task finishes.
	ErrTaskNotDone = errors.New("kernel: task has not finished")
	// ErrKernelClosed is returned by trap calls made after the kernel has
	// torn down its trap channel during shutdown.
	ErrKernelClosed = errors.New("kernel: kernel is closed")
	// ErrSelfCancel is returned synchronously (never via a trap) when a
	// task attempts to cancel itself; self-cancellation is rejected rather
	// than silently rewritten into a normal return.
	ErrSelfCancel = errors.New("kernel: task cannot cancel itself")
	// ErrSemaphoreOverRelease is returned when BoundedSemaphore.Release
	// would raise the count beyond its configured maximum. A plain
	// Semaphore's Release never returns it.
	ErrSemaphoreOverRelease = errors.New("kernel: semaphore released more times than acquired")
	// ErrLockNotHeld is returned when a task releases a Lock it does not
	// hold.
	ErrLockNotHeld = errors.New("kernel: lock released by a task that does not hold it")
	// ErrTaskDoneWithoutPut is returned by Queue.TaskDone when more
	// completions are reported than items were Put.
	ErrTaskDoneWithoutPut = errors.New("kernel: more task-done calls than queue puts")
	// ErrQueueClosed is returned by Queue.Get/Put after Queue.Close.
	ErrQueueClosed = errors.New("kernel: queue is closed")
	// ErrJournalDisabled is returned by Kernel.JournalEntries when WithJournal
	// was not supplied to New.
	ErrJournalDisabled = errors.New("kernel: journal is not enabled")
)

// taskPanicError wraps a recovered panic value from a task's function,
// preserving the stack captured at the moment of the panic for diagnostics.
type taskPanicError struct {
	Value any
	stack []byte
}

func (e *taskPanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

func (e *taskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func capturePanicStack() []byte {
	return debug.Stack()
}
