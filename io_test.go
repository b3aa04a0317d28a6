package kernel

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReadable_FiresOnPipeWrite(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])
	require.NoError(t, syscall.SetNonblock(fds[0], true))

	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		reader, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			events, err := WaitReadable(ctx, fds[0])
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 16)
			n, rerr := syscall.Read(fds[0], buf)
			if rerr != nil {
				return nil, rerr
			}
			return struct {
				events IOEvents
				data   string
			}{events, string(buf[:n])}, nil
		})
		require.NoError(t, err)

		if err := Sleep(ctx, 5*time.Millisecond); err != nil {
			return nil, err
		}
		_, werr := syscall.Write(fds[1], []byte("hello"))
		if werr != nil {
			return nil, werr
		}
		return nil, Join(ctx, reader)
	})
	require.NoError(t, err)
}

func TestWaitReadable_CancelClearsSelectorAndReportsEffected(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])
	require.NoError(t, syscall.SetNonblock(fds[0], true))

	k := newTestKernel(t)
	var blockedErr error
	var effected bool
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		blocked, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			_, err := WaitReadable(ctx, fds[0])
			return nil, err
		})
		require.NoError(t, err)

		if err := Sleep(ctx, 10*time.Millisecond); err != nil {
			return nil, err
		}
		assert.True(t, k.sel.registered(fds[0]), "selector should hold the read registration while blocked")

		effected, err = Cancel(ctx, blocked, nil)
		if err != nil {
			return nil, err
		}
		blockedErr = Join(ctx, blocked)
		return nil, nil
	})
	require.NoError(t, err)

	assert.True(t, effected, "cancelling a task blocked on I/O should report effected=true")
	var taskErr *TaskError
	require.ErrorAs(t, blockedErr, &taskErr)
	assert.True(t, isCancellation(taskErr.Err))
	assert.False(t, k.sel.registered(fds[0]), "selector registration should be cleared once the blocked task is cancelled")
}

func TestWaitWritable_FiresWhenPipeHasSpace(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])
	require.NoError(t, syscall.SetNonblock(fds[1], true))

	k := newTestKernel(t)
	var events IOEvents
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		var err error
		events, err = WaitWritable(ctx, fds[1])
		return nil, err
	})
	require.NoError(t, err)
	assert.NotZero(t, events&EventWrite)
}
