package kernel

// Lock is a task-aware mutual exclusion lock: a task parked in Acquire is
// suspended without blocking the kernel goroutine, and Release hands
// ownership directly to the longest-waiting task rather than simply
// clearing a flag for anyone to race on.
type Lock struct {
	queue *waitQueue
	held  bool
}

// NewLock returns an unheld Lock.
func NewLock() *Lock {
	return &Lock{queue: newWaitQueue()}
}

// Acquire blocks until the lock is held by the calling task.
func (l *Lock) Acquire(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if !l.held {
			l.held = true
			return adminOutcome{}
		}
		return adminOutcome{park: true, queue: l.queue}
	}})
	return err
}

// Release releases the lock. It is an error (ErrLockNotHeld) to call
// Release when the lock is not held.
func (l *Lock) Release(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if !l.held {
			return adminOutcome{err: ErrLockNotHeld}
		}
		if w := l.queue.dequeue(); w != nil {
			k.resume(w, nil, nil) // ownership passes directly; held stays true
		} else {
			l.held = false
		}
		return adminOutcome{}
	}})
	return err
}

// Locked reports whether the lock is currently held. The result may be
// stale by the time the caller observes it if called from outside a task.
func (l *Lock) Locked() bool {
	return l.held
}
