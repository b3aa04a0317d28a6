package kernel

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSet_WaitReceivesArrival(t *testing.T) {
	k := newTestKernel(t)
	var received os.Signal
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		ss := ctx.kernel.SigSet(syscall.SIGUSR1)
		ss.Watch()
		defer ss.Unwatch()

		waiter, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			sig, err := ss.Wait(ctx)
			received = sig
			return nil, err
		})
		require.NoError(t, err)

		if err := Sleep(ctx, 5*time.Millisecond); err != nil {
			return nil, err
		}
		proc, err := os.FindProcess(os.Getpid())
		require.NoError(t, err)
		require.NoError(t, proc.Signal(syscall.SIGUSR1))

		return nil, Join(ctx, waiter)
	})
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGUSR1, received)
}
