package kernel

import "sync/atomic"

// Event is a task-aware one-shot broadcast flag, analogous to curio's
// Event: any number of tasks may Wait concurrently, and a single Set
// wakes all of them at once.
type Event struct {
	queue *waitQueue
	set   atomic.Bool
}

// NewEvent returns an unset Event.
func NewEvent() *Event {
	return &Event{queue: newWaitQueue()}
}

// Wait blocks until the event is set. If already set, returns immediately.
func (e *Event) Wait(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if e.set.Load() {
			return adminOutcome{}
		}
		return adminOutcome{park: true, queue: e.queue}
	}})
	return err
}

// Set marks the event set and wakes every task parked in Wait.
func (e *Event) Set(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		e.set.Store(true)
		for {
			w := e.queue.dequeue()
			if w == nil {
				break
			}
			k.resume(w, nil, nil)
		}
		return adminOutcome{}
	}})
	return err
}

// Clear unsets the event. Tasks already past Wait are unaffected; future
// Wait calls will block again until the next Set.
func (e *Event) Clear(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		e.set.Store(false)
		return adminOutcome{}
	}})
	return err
}

// IsSet reports whether the event is currently set. Safe to call from any
// goroutine.
func (e *Event) IsSet() bool {
	return e.set.Load()
}
