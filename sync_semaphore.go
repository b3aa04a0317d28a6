package kernel

// Semaphore is a task-aware counting semaphore.
type Semaphore struct {
	queue *waitQueue
	count int
}

// NewSemaphore returns a Semaphore with initial permits available.
func NewSemaphore(initial int) *Semaphore {
	return &Semaphore{queue: newWaitQueue(), count: initial}
}

// Acquire blocks until a permit is available, then takes it.
func (s *Semaphore) Acquire(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if s.count > 0 {
			s.count--
			return adminOutcome{}
		}
		return adminOutcome{park: true, queue: s.queue}
	}})
	return err
}

// Release returns a permit, waking the longest-waiting acquirer if any.
func (s *Semaphore) Release(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		s.releaseLocked(k)
		return adminOutcome{}
	}})
	return err
}

func (s *Semaphore) releaseLocked(k *Kernel) {
	if w := s.queue.dequeue(); w != nil {
		k.resume(w, nil, nil)
		return
	}
	s.count++
}

// BoundedSemaphore is a Semaphore that rejects a Release which would push
// the available count above max, returning ErrSemaphoreOverRelease.
type BoundedSemaphore struct {
	*Semaphore
	max int
}

// NewBoundedSemaphore returns a BoundedSemaphore with initial permits
// available, capped at max.
func NewBoundedSemaphore(initial, max int) *BoundedSemaphore {
	return &BoundedSemaphore{Semaphore: NewSemaphore(initial), max: max}
}

// Release returns a permit, or fails with ErrSemaphoreOverRelease if doing
// so would exceed max outstanding permits.
func (b *BoundedSemaphore) Release(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if b.queue.len() == 0 && b.count >= b.max {
			return adminOutcome{err: ErrSemaphoreOverRelease}
		}
		b.releaseLocked(k)
		return adminOutcome{}
	}})
	return err
}
