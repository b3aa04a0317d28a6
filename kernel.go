package kernel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Kernel is a single-goroutine task scheduler. Construct one with New,
// then call Run from the goroutine that should host it; Run blocks until
// every non-daemon task, the entry function's task included, has completed.
type Kernel struct {
	trapCh  chan *trapRequest
	ingress *ingress

	sel     *selector
	timers  *timerQueue
	sigDisp *sigDispatcher

	wakeR, wakeW int

	threadPool *workerThreadPool
	procPool   *workerProcessPool

	logger  Logger
	metrics *metricsRegistry
	journal *journal

	state *fastState

	mu     sync.Mutex
	tasks  map[TaskID]*Task
	nextID atomic.Uint64

	ready []*Task // FIFO ready queue; only touched on the kernel goroutine

	// nonDaemonCount is the number of live tasks spawned with Daemon:false,
	// including the root task. loop exits once it reaches zero; touched
	// only on the kernel goroutine.
	nonDaemonCount int

	runID uuid.UUID

	kernelGoroutine atomic.Uint64 // set once Run begins, 0 until then

	crashErr error
}

// New constructs a Kernel with the given options but does not start it.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	sel, err := newSelector()
	if err != nil {
		return nil, fmt.Errorf("kernel: init selector: %w", err)
	}

	wr, ww, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		sel.Close()
		return nil, fmt.Errorf("kernel: init wake fd: %w", err)
	}

	k := &Kernel{
		trapCh:  make(chan *trapRequest),
		ingress: newIngress(),
		sel:     sel,
		timers:  newTimerQueue(),
		tasks:   make(map[TaskID]*Task),
		state:   newFastState(),
		wakeR:   wr,
		wakeW:   ww,
		logger:  cfg.logger,
		runID:   uuid.New(),
	}
	k.sigDisp = newSigDispatcher(k)
	go k.sigDisp.run()

	k.threadPool = newWorkerThreadPool(cfg.maxWorkerThreads)
	if cfg.maxWorkerProcs > 0 {
		k.procPool = newWorkerProcessPool(cfg.maxWorkerProcs, cfg.workerReexecPath)
	}
	if cfg.metricsEnabled {
		k.metrics = newMetricsRegistry()
	}
	if cfg.journalPath != "" {
		j, err := openJournal(cfg.journalPath)
		if err != nil {
			return nil, fmt.Errorf("kernel: open journal: %w", err)
		}
		k.journal = j
	}

	return k, nil
}

// Run starts the kernel on the calling goroutine, spawns fn as the root
// task, and blocks until every non-daemon task (the root, and anything it
// or its descendants spawned with Daemon:false) has terminated. A
// non-daemon task that outlives the root is given the chance to finish
// naturally rather than being cut off the moment the root returns. Once
// the non-daemon count reaches zero, any daemon tasks still alive are
// cancelled and the kernel releases its resources before Run returns.
// The root task's own result and error are returned directly;
// TaskTimeout/CancelledError are returned as the error the same as for
// any other task.
func (k *Kernel) Run(fn func(ctx *TaskContext) (any, error)) (any, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	k.kernelGoroutine.Store(goroutineID())
	k.state.Store(StateRunning)

	if err := k.sel.SetRead(k.wakeR, k.onWake); err != nil {
		return nil, fmt.Errorf("kernel: register wake fd: %w", err)
	}

	root := k.newTask(fn, SpawnOptions{Name: "main"})
	k.enqueueReady(root)

	k.loop()

	// Every non-daemon task, root included, has now terminated naturally.
	// Only daemons can still be alive at this point; shutdown cancels them
	// and releases the kernel's resources.
	k.shutdown()

	return root.result, root.resultErr
}

// loop is the heart of the scheduler: pick a runnable task, grant it the
// single execution slot, and block exclusively on trapCh until that same
// task either traps again or exits. No other task's parkCh is ever sent to
// in between, which is what keeps exactly one task's code running. It runs
// until every non-daemon task has terminated, not merely until the root
// task returns: a non-daemon task spawned by root and still running when
// root exits is allowed to finish on its own.
func (k *Kernel) loop() {
	k.runUntil(func() bool { return k.nonDaemonCount == 0 })
}

// runUntil drives the scheduler loop until done reports true, granting the
// single execution slot to one ready task per iteration and waiting for
// that same task's next trap before looping again. Both Run's main loop and
// shutdown's drain use this so a cancelled task parked mid-shutdown still
// gets a real, serialized turn rather than being silently left stuck.
func (k *Kernel) runUntil(done func() bool) {
	for !done() {
		k.drainIngress()
		k.runTimers()

		t := k.dequeueReady()
		if t == nil {
			timeout := k.calculateTimeout()
			if _, err := k.sel.Poll(timeout); err != nil && !errors.Is(err, ErrSelectorClosed) {
				k.logger.Error("selector poll failed", "error", err)
			}
			continue
		}

		k.state.Store(StateRunning)
		t.state = TaskRunning
		t.cycles++
		t.parkCh <- t.pendingResume
		t.pendingResume = resumeValue{}

		req := <-k.trapCh
		k.handleTrap(req)
	}
}

func (k *Kernel) calculateTimeout() int {
	if len(k.ready) > 0 {
		return 0
	}
	deadline, ok := k.timers.nextDeadline()
	if !ok {
		return -1
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 10000 {
		ms = 10000
	}
	return int(ms) + 1
}

func (k *Kernel) runTimers() {
	for _, e := range k.timers.popExpired(time.Now()) {
		switch e.kind {
		case timerSleep:
			k.logger.Debug("timer fired", "task", e.task.name, "kind", "sleep")
			k.resume(e.task, nil, nil)
		case timerDeadline:
			k.logger.Debug("timer fired", "task", e.task.name, "kind", "deadline")
			k.timeoutFire(e.task, e.cause)
		}
	}
}

func (k *Kernel) drainIngress() {
	for _, fn := range k.ingress.drain() {
		fn()
	}
}

func (k *Kernel) onWake(_ IOEvents) {
	var buf [8]byte
	readFD(k.wakeR, buf[:])
	k.sel.SetRead(k.wakeR, k.onWake)
}

// wakeKernel is safe to call from any goroutine; it ensures the kernel's
// Poll wakes promptly to drain ingress rather than sleeping out its full
// timeout.
func (k *Kernel) wakeKernel() {
	var one = [1]byte{1}
	writeFD(k.wakeW, one[:])
}

func (k *Kernel) newTask(fn func(ctx *TaskContext) (any, error), opts SpawnOptions) *Task {
	id := TaskID(k.nextID.Add(1))
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("task-%d", id)
	}
	reportCrash := true
	if opts.ReportCrash != nil {
		reportCrash = *opts.ReportCrash
	}
	t := &Task{
		id:          id,
		name:        name,
		kernel:      k,
		fn:          fn,
		spawnedAt:   time.Now(),
		parkCh:      make(chan resumeValue, 1),
		state:       TaskRunnable,
		daemon:      opts.Daemon,
		reportCrash: reportCrash,
	}
	t.taskCtx = &TaskContext{task: t, kernel: k}

	if !t.daemon {
		k.nonDaemonCount++
	}

	k.logger.Debug("task spawned", "task", t.name, "id", t.id, "daemon", t.daemon)

	if k.metrics != nil {
		k.metrics.observeSpawn()
	}

	k.mu.Lock()
	k.tasks[id] = t
	k.mu.Unlock()

	go t.run()
	return t
}

func (k *Kernel) enqueueReady(t *Task) {
	t.state = TaskRunnable
	k.ready = append(k.ready, t)
}

func (k *Kernel) dequeueReady() *Task {
	if len(k.ready) == 0 {
		return nil
	}
	t := k.ready[0]
	k.ready = k.ready[1:]
	return t
}

// resume marks a parked task runnable again, recording val/err as the value
// its trap call will receive once the kernel goroutine actually grants it
// the execution slot (in loop's or shutdown's dequeueReady step). resume
// itself never touches parkCh: every caller runs on the kernel goroutine,
// and a task's goroutine must not start running again until the scheduler
// chooses to hand it the slot, or two tasks' code could run concurrently.
func (k *Kernel) resume(t *Task, val any, err error) {
	if t.State() == TaskDone {
		return
	}
	t.pendingResume = resumeValue{val: val, err: err}
	k.enqueueReady(t)
}

func (k *Kernel) cancelTask(t *Task, cause error) {
	if cause == nil {
		cause = &CancelledError{}
	} else if !isCancellation(cause) {
		cause = &CancelledError{Cause: cause}
	}
	if t.State() == TaskDone {
		return
	}
	t.cancelRequested = true
	t.cancelErr = cause
	// A runnable-but-not-yet-dispatched task simply sees cancelErr on its
	// next trap; a blocked task must be unparked now to observe it.
	if t.state == TaskBlocked {
		k.unpark(t)
		k.resume(t, nil, cause)
	}
}

// unpark removes t from whichever timer/selector/waitqueue registration is
// currently holding it blocked, called just before forcing a resume out of
// turn (cancellation, timeout).
func (k *Kernel) unpark(t *Task) {
	// Concrete traps register their own cleanup in t.cancelCleanup; see the
	// handlers in trap_dispatch.go's dispatchTrap.
	if t.cancelCleanup != nil {
		t.cancelCleanup()
		t.cancelCleanup = nil
	}
}

func (k *Kernel) handleTrap(req *trapRequest) {
	t := req.task
	if k.metrics != nil {
		k.metrics.observeTrap(req.kind)
	}
	switch req.kind {
	case trapExit:
		k.finishTask(t, req.exitResult.val, req.exitResult.err)
	default:
		t.state = TaskBlocked
		k.dispatchTrap(req)
	}
}

func (k *Kernel) finishTask(t *Task, val any, err error) {
	t.result = val
	t.resultErr = err
	t.state = TaskDone
	t.done.Store(true)
	if !t.daemon {
		k.nonDaemonCount--
	}

	if isCancellation(err) {
		k.logger.Debug("task cancelled", "task", t.name, "id", t.id, "cycles", t.cycles)
	} else {
		k.logger.Debug("task finished", "task", t.name, "id", t.id, "cycles", t.cycles, "error", err)
	}

	if k.journal != nil {
		k.journal.record(t)
	}
	if k.metrics != nil {
		k.metrics.observeTaskDone(t.spawnedAt, err)
	}

	for _, j := range t.joiners {
		if j.asCancel {
			k.resume(j.task, cancelOutcome{effected: true, err: t.resultErr}, nil)
		} else {
			k.resume(j.task, t.resultErr, nil)
		}
	}
	t.joiners = nil

	if err != nil && !isCancellation(err) && t.reportCrash {
		k.logger.Error("task exited with error", "task", t.name, "error", err)
	}

	k.mu.Lock()
	delete(k.tasks, t.id)
	k.mu.Unlock()
}

// isCancellation reports whether err is, or wraps, a CancelledError.
func isCancellation(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// shutdown cancels every remaining task and waits for the pools/selector/
// signal dispatcher to release their resources.
func (k *Kernel) shutdown() {
	k.mu.Lock()
	remaining := make([]*Task, 0, len(k.tasks))
	for _, t := range k.tasks {
		remaining = append(remaining, t)
	}
	k.mu.Unlock()

	for _, t := range remaining {
		k.cancelTask(t, &CancelledError{})
	}
	k.runUntil(func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return len(k.tasks) == 0
	})

	k.ingress.close()
	k.sigDisp.close()
	k.threadPool.close()
	if k.procPool != nil {
		k.procPool.close()
	}
	if k.journal != nil {
		k.journal.close()
	}
	k.sel.Close()
	closeFD(k.wakeR)
	if k.wakeW != k.wakeR {
		closeFD(k.wakeW)
	}

	k.state.Store(StateTerminated)
}

// Metrics returns the kernel's Prometheus registry, or nil if WithMetrics
// was not enabled.
func (k *Kernel) Metrics() *prometheus.Registry {
	if k.metrics == nil {
		return nil
	}
	return k.metrics.Registry()
}

// JournalEntries returns every task outcome recorded so far, or an error
// if WithJournal was not enabled.
func (k *Kernel) JournalEntries() ([]journalEntry, error) {
	if k.journal == nil {
		return nil, ErrJournalDisabled
	}
	return k.journal.Entries()
}

// TaskByID returns the task with the given ID, if it is still alive.
// Safe to call from any goroutine.
func (k *Kernel) TaskByID(id TaskID) (*Task, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[id]
	return t, ok
}

// Stats is a snapshot of kernel-wide counters, safe to call concurrently
// from any goroutine.
type Stats struct {
	LiveTasks   int
	RunID       string
	State       RunState
}

// Stats returns a point-in-time snapshot of kernel health.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	n := len(k.tasks)
	k.mu.Unlock()
	return Stats{LiveTasks: n, RunID: k.runID.String(), State: k.state.Load()}
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The stack header looks like "goroutine 123 [running]:".
	var id uint64
	for _, b := range buf[len("goroutine "):n] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + uint64(b-'0')
	}
	return id
}

// onKernelGoroutine reports whether the calling goroutine is the one
// running Kernel.Run's loop.
func (k *Kernel) onKernelGoroutine() bool {
	return k.kernelGoroutine.Load() == goroutineID()
}
