// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package kernel implements a single-threaded, cooperative task scheduler
// that multiplexes goroutine-backed coroutines over nonblocking I/O, timers,
// OS signals, and synchronization primitives, in the spirit of Python's
// curio. Exactly one task's user code ever runs at a time; every suspension
// point goes through an explicit trap protocol rather than an opaque
// runtime scheduler, so cancellation, timeouts, and I/O readiness compose
// predictably.
//
// # Architecture
//
// A [Kernel] owns exactly one goroutine's worth of execution authority.
// Construct one with [New], then call [Kernel.Run] from the goroutine that
// should host it; Run spawns the supplied entry function as the root task
// and blocks until every non-daemon task has finished, at which point any
// daemon tasks still alive are cancelled and the kernel drains before Run
// returns.
//
// Tasks suspend themselves by sending a trapRequest on a channel only the
// kernel goroutine receives, then blocking on their own buffered resume
// channel until the kernel goroutine grants them another turn. This is what
// guarantees at most one task's Go code executes at any instant, without
// any mutex guarding task state itself.
//
// [Spawn], [Sleep], [Join], [Cancel], [TimeoutAfter], and [IgnoreAfter] are
// the package-level entry points a task's function uses to talk to the
// kernel running it, each taking the [TaskContext] handed to that function.
//
// # Synchronization primitives
//
// [Lock], [Semaphore], [BoundedSemaphore], [Event], [Condition], and [Queue]
// mirror curio's sync primitives. All of them are built on a single
// kernel-goroutine-side admin trap, so adding a new primitive never requires
// a new trap kind.
//
// # I/O and OS integration
//
// [WaitReadable] and [WaitWritable] park a task on a file descriptor's
// readiness via epoll (Linux) or kqueue (Darwin). [SignalSet] delivers OS
// signals to waiting tasks without the usual signal.Notify channel-fan-out.
// [RunInThread], [RunInProcess], and [RunInExecutor] offload blocking work
// to a goroutine pool, a re-exec'd subprocess pool, or a caller-supplied
// [Executor], without blocking the kernel goroutine itself.
//
// # Observability
//
// [WithLogger] attaches a structured [Logger]. [WithMetrics] enables a
// per-kernel Prometheus registry, retrievable via [Kernel.Metrics].
// [WithJournal] records every task's terminal outcome to a bbolt-backed
// journal, retrievable via [Kernel.JournalEntries].
package kernel
