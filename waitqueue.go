package kernel

import "github.com/emirpasic/gods/queues/linkedlistqueue"

// waitQueue is the FIFO parking queue backing the synchronization
// primitives in this package's sync_*.go files: Lock, Semaphore, Event,
// Condition, and Queue
// all park blocked tasks here and wake them in arrival order. Built on
// gods' linkedlistqueue rather than a hand-rolled slice so enqueue/dequeue
// stay O(1) without amortized-growth slice juggling.
type waitQueue struct {
	q *linkedlistqueue.Queue
}

func newWaitQueue() *waitQueue {
	return &waitQueue{q: linkedlistqueue.New()}
}

func (w *waitQueue) enqueue(t *Task) {
	w.q.Enqueue(t)
}

// dequeue removes and returns the longest-waiting task, or nil if empty.
func (w *waitQueue) dequeue() *Task {
	v, ok := w.q.Dequeue()
	if !ok {
		return nil
	}
	return v.(*Task)
}

func (w *waitQueue) len() int {
	return w.q.Size()
}

// remove drops t from the queue if present, used to unwind a task that is
// being cancelled or timed out while parked. O(n); wait queues are
// expected to stay small (bounded by contending task counts).
func (w *waitQueue) remove(t *Task) bool {
	items := w.q.Values()
	w.q.Clear()
	removed := false
	for _, v := range items {
		if task := v.(*Task); task == t && !removed {
			removed = true
			continue
		} else {
			w.q.Enqueue(v)
		}
	}
	return removed
}
