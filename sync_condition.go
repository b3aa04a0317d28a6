package kernel

// Condition is a task-aware condition variable associated with a Lock,
// mirroring curio's Condition / sync.Cond: Wait releases the lock, parks,
// and reacquires the lock before returning.
type Condition struct {
	lock  *Lock
	queue *waitQueue
}

// NewCondition returns a Condition guarded by lock.
func NewCondition(lock *Lock) *Condition {
	return &Condition{lock: lock, queue: newWaitQueue()}
}

// Wait releases the associated lock, blocks until notified, then
// reacquires the lock before returning. The caller must hold the lock.
func (c *Condition) Wait(ctx *TaskContext) error {
	if err := c.lock.Release(ctx); err != nil {
		return err
	}
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		return adminOutcome{park: true, queue: c.queue}
	}})
	if err != nil {
		return err
	}
	return c.lock.Acquire(ctx)
}

// Notify wakes one task parked in Wait, if any.
func (c *Condition) Notify(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if w := c.queue.dequeue(); w != nil {
			k.resume(w, nil, nil)
		}
		return adminOutcome{}
	}})
	return err
}

// NotifyAll wakes every task parked in Wait.
func (c *Condition) NotifyAll(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		for {
			w := c.queue.dequeue()
			if w == nil {
				break
			}
			k.resume(w, nil, nil)
		}
		return adminOutcome{}
	}})
	return err
}
