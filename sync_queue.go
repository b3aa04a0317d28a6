package kernel

// Queue is a task-aware bounded (or unbounded, if maxSize <= 0)
// producer/consumer queue, mirroring curio's UniversalQueue: Put blocks
// while full, Get blocks while empty, and TaskDone/Join let producers wait
// for consumers to finish processing everything that has been Put.
type Queue struct {
	items   []any
	maxSize int

	notEmpty *waitQueue
	notFull  *waitQueue
	allDone  *waitQueue

	unfinished int
	closed     bool
}

// retryParked is delivered to a task woken off notEmpty/notFull so its
// tryGet/tryPut retry loop can tell "parked, then woken, recheck" apart
// from a legitimately nil queued item.
var retryParked = new(struct{})

// NewQueue returns an empty Queue. maxSize <= 0 means unbounded.
func NewQueue(maxSize int) *Queue {
	return &Queue{
		maxSize:  maxSize,
		notEmpty: newWaitQueue(),
		notFull:  newWaitQueue(),
		allDone:  newWaitQueue(),
	}
}

// Put blocks while the queue is full, then enqueues item.
func (q *Queue) Put(ctx *TaskContext, item any) error {
	for {
		done, err := q.tryPut(ctx, item)
		if err != nil || done {
			return err
		}
	}
}

func (q *Queue) tryPut(ctx *TaskContext, item any) (bool, error) {
	v, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if q.closed {
			return adminOutcome{err: ErrQueueClosed}
		}
		if q.maxSize > 0 && len(q.items) >= q.maxSize {
			return adminOutcome{park: true, queue: q.notFull}
		}
		q.items = append(q.items, item)
		q.unfinished++
		if w := q.notEmpty.dequeue(); w != nil {
			k.resume(w, retryParked, nil)
		}
		return adminOutcome{result: true}
	}})
	if err != nil {
		return false, err
	}
	done, _ := v.(bool)
	return done, nil
}

// Get blocks while the queue is empty, then removes and returns the
// oldest item.
func (q *Queue) Get(ctx *TaskContext) (any, error) {
	for {
		item, done, err := q.tryGet(ctx)
		if err != nil || done {
			return item, err
		}
	}
}

func (q *Queue) tryGet(ctx *TaskContext) (any, bool, error) {
	v, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if len(q.items) == 0 {
			if q.closed {
				return adminOutcome{err: ErrQueueClosed}
			}
			return adminOutcome{park: true, queue: q.notEmpty}
		}
		item := q.items[0]
		q.items = q.items[1:]
		if w := q.notFull.dequeue(); w != nil {
			k.resume(w, retryParked, nil)
		}
		return adminOutcome{result: item}
	}})
	if err != nil {
		return nil, false, err
	}
	if v == retryParked {
		return nil, false, nil // parked and woken; caller retries
	}
	return v, true, nil
}

// TaskDone records that one previously Put item has finished processing.
// It is an error (ErrTaskDoneWithoutPut) to call TaskDone more times than
// items have been Put and not yet marked done.
func (q *Queue) TaskDone(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if q.unfinished <= 0 {
			return adminOutcome{err: ErrTaskDoneWithoutPut}
		}
		q.unfinished--
		if q.unfinished == 0 {
			for {
				w := q.allDone.dequeue()
				if w == nil {
					break
				}
				k.resume(w, nil, nil)
			}
		}
		return adminOutcome{}
	}})
	return err
}

// Join blocks until every item Put has had a matching TaskDone.
func (q *Queue) Join(ctx *TaskContext) error {
	for {
		done, err := q.tryJoin(ctx)
		if err != nil || done {
			return err
		}
	}
}

func (q *Queue) tryJoin(ctx *TaskContext) (bool, error) {
	v, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		if q.unfinished == 0 {
			return adminOutcome{result: true}
		}
		return adminOutcome{park: true, queue: q.allDone}
	}})
	if err != nil {
		return false, err
	}
	done, _ := v.(bool)
	return done, nil
}

// Close marks the queue closed: pending and future Get/Put calls fail with
// ErrQueueClosed once the queue is drained (Get still returns buffered
// items before failing).
func (q *Queue) Close(ctx *TaskContext) error {
	_, err := ctx.trap(&trapRequest{kind: trapAdmin, admin: func(k *Kernel, t *Task) adminOutcome {
		q.closed = true
		for {
			w := q.notFull.dequeue()
			if w == nil {
				break
			}
			k.resume(w, retryParked, nil)
		}
		for {
			w := q.notEmpty.dequeue()
			if w == nil {
				break
			}
			k.resume(w, retryParked, nil)
		}
		return adminOutcome{}
	}})
	return err
}

// Len returns the number of items currently buffered.
func (q *Queue) Len() int {
	return len(q.items)
}
