package kernel

// WaitReadable parks the calling task until fd is ready for reading (or
// reports an error/hangup condition), returning the observed IOEvents.
func WaitReadable(ctx *TaskContext, fd int) (IOEvents, error) {
	v, err := ctx.trap(&trapRequest{kind: trapReadWait, fd: fd})
	if err != nil {
		return 0, err
	}
	return v.(IOEvents), nil
}

// WaitWritable parks the calling task until fd is ready for writing.
func WaitWritable(ctx *TaskContext, fd int) (IOEvents, error) {
	v, err := ctx.trap(&trapRequest{kind: trapWriteWait, fd: fd})
	if err != nil {
		return 0, err
	}
	return v.(IOEvents), nil
}
