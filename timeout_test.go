package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutAfter_FiresTaskTimeout(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		return TimeoutAfter(ctx, 10*time.Millisecond, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		})
	})
	var tt *TaskTimeout
	require.ErrorAs(t, err, &tt)
}

func TestTimeoutAfter_CompletesBeforeDeadline(t *testing.T) {
	k := newTestKernel(t)
	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		return TimeoutAfter(ctx, 100*time.Millisecond, func(ctx *TaskContext) (any, error) {
			return "done", Sleep(ctx, time.Millisecond)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestIgnoreAfter_ReturnsTimedOutWithoutError(t *testing.T) {
	k := newTestKernel(t)
	var timedOut bool
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		var err error
		_, timedOut, err = IgnoreAfter(ctx, 10*time.Millisecond, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		})
		return nil, err
	})
	require.NoError(t, err)
	assert.True(t, timedOut)
}

func TestIgnoreAfter_ReturnsResultWhenNotTimedOut(t *testing.T) {
	k := newTestKernel(t)
	var result any
	var timedOut bool
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		var err error
		result, timedOut, err = IgnoreAfter(ctx, 100*time.Millisecond, func(ctx *TaskContext) (any, error) {
			return "value", nil
		})
		return nil, err
	})
	require.NoError(t, err)
	assert.False(t, timedOut)
	assert.Equal(t, "value", result)
}

func TestRunInThread_OffloadsBlockingWork(t *testing.T) {
	k := newTestKernel(t)
	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		return RunInThread(ctx, func() (any, error) {
			time.Sleep(5 * time.Millisecond)
			return "thread-result", nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "thread-result", result)
}

func TestRunInThread_CancelDiscardsResultButThreadKeepsRunning(t *testing.T) {
	k := newTestKernel(t)
	finished := make(chan struct{})
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return RunInThread(ctx, func() (any, error) {
				time.Sleep(30 * time.Millisecond)
				close(finished)
				return "late", nil
			})
		})
		require.NoError(t, err)
		if err := Sleep(ctx, 5*time.Millisecond); err != nil {
			return nil, err
		}
		_, cancelErr := Cancel(ctx, child, nil)
		return nil, cancelErr
	})
	require.NoError(t, err)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("zombie thread never finished")
	}
}
