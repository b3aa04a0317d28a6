package kernel

// Executor runs a unit of work outside the kernel's own pools, e.g. a
// caller-supplied worker pool, a rate-limited external service client, or
// a GPU job queue. Submit must not block; it should hand work off and
// return immediately, invoking the given callback exactly once when done.
type Executor interface {
	Submit(fn func() (any, error), done func(result any, err error))
}

// RunInExecutor runs fn via executor, parking the calling task until
// executor invokes the completion callback. As with RunInThread, a
// cancelled wait only interrupts the park; executor is responsible for its
// own cancellation policy, if any.
func RunInExecutor(ctx *TaskContext, executor Executor, fn func() (any, error)) (any, error) {
	ctx.kernel.logger.Debug("executor dispatched", "task", ctx.task.name)
	f := newFuture()
	executor.Submit(fn, func(result any, err error) {
		f.complete(result, err)
	})
	return ctx.trap(&trapRequest{kind: trapFutureWait, future: f})
}
