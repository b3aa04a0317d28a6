package kernel

import "time"

// dispatchTrap handles every trap kind except trapExit, which handleTrap
// deals with directly. It runs entirely on the kernel goroutine.
func (k *Kernel) dispatchTrap(req *trapRequest) {
	t := req.task

	// A task that caught and swallowed a CancelledError does not get a
	// reprieve: its next trap, of any kind but introspection, re-raises
	// the same cancellation immediately rather than performing the
	// requested operation.
	if t.cancelRequested && req.kind != trapGetKernel && req.kind != trapGetCurrent {
		k.resume(t, nil, t.cancelErr)
		return
	}

	switch req.kind {
	case trapSleep:
		entry := k.timers.schedule(time.Now().Add(req.duration), timerSleep, t, nil)
		t.cancelCleanup = func() { k.timers.cancel(entry) }

	case trapReadWait:
		if err := k.sel.SetRead(req.fd, func(ev IOEvents) { k.resume(t, ev, nil) }); err != nil {
			k.resume(t, nil, err)
			return
		}
		k.logger.Debug("selector registered", "task", t.name, "fd", req.fd, "direction", "read")
		fd := req.fd
		t.cancelCleanup = func() {
			k.sel.ClearRead(fd)
			k.logger.Debug("selector cleared", "task", t.name, "fd", fd, "direction", "read")
		}

	case trapWriteWait:
		if err := k.sel.SetWrite(req.fd, func(ev IOEvents) { k.resume(t, ev, nil) }); err != nil {
			k.resume(t, nil, err)
			return
		}
		k.logger.Debug("selector registered", "task", t.name, "fd", req.fd, "direction", "write")
		fd := req.fd
		t.cancelCleanup = func() {
			k.sel.ClearWrite(fd)
			k.logger.Debug("selector cleared", "task", t.name, "fd", fd, "direction", "write")
		}

	case trapFutureWait:
		f := req.future
		f.notify(func(val any, err error) {
			k.ingress.push(func() { k.resume(t, val, err) })
			k.wakeKernel()
		})
		if req.futureCancel != nil {
			t.cancelCleanup = req.futureCancel
		}
		// Otherwise: zombie semantics. A cancelled wait on a future does
		// not stop whatever is computing it; the result, once it arrives,
		// is just discarded by resume's TaskDone check.

	case trapJoinTask:
		target := req.target
		if target.State() == TaskDone {
			k.resume(t, target.resultErr, nil)
			return
		}
		target.joiners = append(target.joiners, joinWaiter{task: t})
		t.cancelCleanup = func() { removeJoiner(target, t) }

	case trapCancelTask:
		target := req.target
		// The target may already have finished before this cancel was even
		// requested: cancelTask is then a no-op, and the caller needs to be
		// told so via cancelOutcome.effected=false rather than treated as
		// though it tore anything down.
		alreadyDone := target.State() == TaskDone
		k.cancelTask(target, req.cause)
		if alreadyDone {
			k.resume(t, cancelOutcome{effected: false, err: target.resultErr}, nil)
			return
		}
		target.joiners = append(target.joiners, joinWaiter{task: t, asCancel: true})
		t.cancelCleanup = func() { removeJoiner(target, t) }

	case trapSpawn:
		spawned := k.newTask(req.spawnFn, req.spawnOpts)
		k.enqueueReady(spawned)
		k.resume(t, spawned, nil)

	case trapAdmin:
		out := req.admin(k, t)
		if out.park {
			q := out.queue
			q.enqueue(t)
			t.cancelCleanup = func() { q.remove(t) }
			return
		}
		k.resume(t, out.result, out.err)

	case trapSigWait:
		ss := req.sigSet
		ss.mu.Lock()
		if len(ss.pending) > 0 {
			sig := ss.pending[0]
			ss.pending = ss.pending[1:]
			ss.mu.Unlock()
			k.resume(t, sig, nil)
			return
		}
		ss.waiter = t
		ss.mu.Unlock()
		t.cancelCleanup = func() {
			ss.mu.Lock()
			if ss.waiter == t {
				ss.waiter = nil
			}
			ss.mu.Unlock()
		}

	case trapSetTimeout:
		cause := error(&TaskTimeout{Duration: req.duration.String()})
		entry := k.timers.schedule(time.Now().Add(req.duration), timerDeadline, t, cause)
		t.timeoutEntry = entry
		t.ignoreTimeout = req.ignore
		k.resume(t, entry.seq, nil)

	case trapUnsetTimeout:
		if t.timeoutEntry != nil && t.timeoutEntry.seq == req.timeoutSeq {
			k.timers.cancel(t.timeoutEntry)
			t.timeoutEntry = nil
		}
		k.resume(t, nil, nil)

	case trapGetKernel:
		k.resume(t, k, nil)

	case trapGetCurrent:
		k.resume(t, t, nil)
	}
}

func removeJoiner(target, joiner *Task) {
	for i, j := range target.joiners {
		if j.task == joiner {
			target.joiners = append(target.joiners[:i], target.joiners[i+1:]...)
			return
		}
	}
}

// timeoutFire interrupts whatever trap t is currently parked in with cause,
// without marking the task as cancelled: unlike cancelTask, this is a
// one-shot interruption that a timeout_after/ignore_after wrapper is
// expected to catch and decide the fate of.
func (k *Kernel) timeoutFire(t *Task, cause error) {
	if t.State() == TaskDone {
		return
	}
	t.timeoutEntry = nil
	if t.state == TaskBlocked {
		k.unpark(t)
		k.resume(t, nil, cause)
	}
	// If t is TaskRunnable (already rescheduled and waiting in the ready
	// queue), the expired deadline is discarded: timeoutEntry is cleared
	// and nothing is delivered to the task.
}
