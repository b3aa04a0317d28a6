package kernel

import (
	"os"
	"os/signal"
	"sync"
)

// SignalSet groups a handful of OS signals that tasks can block waiting on,
// mirroring curio's SignalSet: construct one with Kernel.SigSet, then call
// Wait repeatedly from a task to receive each arrival in turn. A SignalSet
// not currently Watch()-ed drops signals on the floor rather than queuing
// them; while watched, every arrival with no task waiting is appended to an
// unbounded pending queue.
type SignalSet struct {
	kernel  *Kernel
	signals []os.Signal

	mu      sync.Mutex
	pending []os.Signal
	waiter  *Task
	watched bool
}

// sigDispatcher multiplexes the single process-wide os/signal.Notify
// channel across however many SignalSets are currently watched, forwarding
// arrivals onto the kernel's ingress queue so delivery happens on the
// kernel goroutine.
type sigDispatcher struct {
	kernel *Kernel

	mu       sync.Mutex
	notifyCh chan os.Signal
	watchers map[os.Signal]map[*SignalSet]bool
}

func newSigDispatcher(k *Kernel) *sigDispatcher {
	return &sigDispatcher{
		kernel:   k,
		notifyCh: make(chan os.Signal, 64),
		watchers: make(map[os.Signal]map[*SignalSet]bool),
	}
}

func (d *sigDispatcher) run() {
	for sig := range d.notifyCh {
		sig := sig
		d.kernel.ingress.push(func() {
			d.deliver(sig)
		})
		d.kernel.wakeKernel()
	}
}

func (d *sigDispatcher) deliver(sig os.Signal) {
	d.mu.Lock()
	sets := d.watchers[sig]
	d.mu.Unlock()
	for ss := range sets {
		ss.mu.Lock()
		if ss.waiter != nil {
			w := ss.waiter
			ss.waiter = nil
			ss.mu.Unlock()
			d.kernel.resume(w, sig, nil)
			continue
		}
		ss.pending = append(ss.pending, sig)
		ss.mu.Unlock()
	}
}

func (d *sigDispatcher) watch(ss *SignalSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var newSigs []os.Signal
	for _, sig := range ss.signals {
		set, ok := d.watchers[sig]
		if !ok {
			set = make(map[*SignalSet]bool)
			d.watchers[sig] = set
			newSigs = append(newSigs, sig)
		}
		set[ss] = true
	}
	if len(newSigs) > 0 {
		signal.Notify(d.notifyCh, newSigs...)
	}
}

func (d *sigDispatcher) unwatch(ss *SignalSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var dropped []os.Signal
	for _, sig := range ss.signals {
		set, ok := d.watchers[sig]
		if !ok {
			continue
		}
		delete(set, ss)
		if len(set) == 0 {
			delete(d.watchers, sig)
			dropped = append(dropped, sig)
		}
	}
	if len(dropped) > 0 {
		signal.Stop(d.notifyCh)
		// Re-arm for whatever signals remain watched by other sets.
		var remaining []os.Signal
		for sig := range d.watchers {
			remaining = append(remaining, sig)
		}
		if len(remaining) > 0 {
			signal.Notify(d.notifyCh, remaining...)
		}
	}
}

func (d *sigDispatcher) close() {
	signal.Stop(d.notifyCh)
}

// SigSet returns a new SignalSet covering the given signals, watching none
// of them until Watch is called.
func (k *Kernel) SigSet(signals ...os.Signal) *SignalSet {
	return &SignalSet{kernel: k, signals: signals}
}

// Watch arms this SignalSet: from now until Unwatch, arriving signals are
// queued (or delivered immediately to a parked Wait).
func (ss *SignalSet) Watch() {
	ss.mu.Lock()
	if ss.watched {
		ss.mu.Unlock()
		return
	}
	ss.watched = true
	ss.mu.Unlock()
	ss.kernel.sigDisp.watch(ss)
}

// Unwatch disarms this SignalSet, discarding any unconsumed pending signal.
func (ss *SignalSet) Unwatch() {
	ss.mu.Lock()
	ss.watched = false
	ss.pending = nil
	ss.mu.Unlock()
	ss.kernel.sigDisp.unwatch(ss)
}

// Wait parks the calling task until one watched signal arrives (or one is
// already pending), returning it. The caller must be running inside a task
// spawned by ss's Kernel.
func (ss *SignalSet) Wait(ctx *TaskContext) (os.Signal, error) {
	ss.mu.Lock()
	if len(ss.pending) > 0 {
		sig := ss.pending[0]
		ss.pending = ss.pending[1:]
		ss.mu.Unlock()
		return sig, nil
	}
	ss.mu.Unlock()

	v, err := ctx.trap(&trapRequest{task: ctx.task, kind: trapSigWait, sigSet: ss})
	if err != nil {
		return nil, err
	}
	return v.(os.Signal), nil
}
