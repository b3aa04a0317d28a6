package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := New()
	require.NoError(t, err)
	return k
}

func TestKernel_RunReturnsRootResult(t *testing.T) {
	k := newTestKernel(t)
	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestKernel_RunPropagatesRootError(t *testing.T) {
	k := newTestKernel(t)
	boom := assertErr("boom")
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestKernel_SpawnAndJoin(t *testing.T) {
	k := newTestKernel(t)
	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return "child-result", nil
		})
		require.NoError(t, err)
		if err := Join(ctx, child); err != nil {
			return nil, err
		}
		v, _ := child.Result()
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "child-result", result)
}

func TestKernel_JoinPropagatesChildError(t *testing.T) {
	k := newTestKernel(t)
	boom := assertErr("child failed")
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, boom
		})
		require.NoError(t, err)
		return nil, Join(ctx, child)
	})
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.ErrorIs(t, taskErr.Err, boom)
}

func TestKernel_SpawnObservesChildCycleBeforeReturning(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		}, SpawnOptions{Daemon: true})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, child.Cycles(), 1)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestKernel_RunWaitsForOutlivingNonDaemonChild(t *testing.T) {
	k := newTestKernel(t)
	childDone := make(chan struct{})
	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		_, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			if err := Sleep(ctx, 20*time.Millisecond); err != nil {
				return nil, err
			}
			close(childDone)
			return nil, nil
		})
		require.NoError(t, err)
		return "root done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "root done", result)
	select {
	case <-childDone:
	default:
		t.Fatal("non-daemon child should have been allowed to finish after root returned")
	}
}

func TestKernel_RunCancelsOutlivingDaemonChild(t *testing.T) {
	k := newTestKernel(t)
	start := time.Now()
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		_, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		}, SpawnOptions{Daemon: true})
		require.NoError(t, err)
		return "root done", nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "daemon child should not block Run from returning")
}

func TestKernel_Sleep(t *testing.T) {
	k := newTestKernel(t)
	start := time.Now()
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		return nil, Sleep(ctx, 20*time.Millisecond)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestKernel_CancelWakesSleeper(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		})
		require.NoError(t, err)
		if err := Sleep(ctx, 5*time.Millisecond); err != nil {
			return nil, err
		}
		_, cancelErr := Cancel(ctx, child, nil)
		return nil, cancelErr
	})
	require.NoError(t, err)
}

func TestKernel_SelfCancelRejected(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		self, err := CurrentTask(ctx)
		require.NoError(t, err)
		_, cancelErr := Cancel(ctx, self, nil)
		return nil, cancelErr
	})
	assert.ErrorIs(t, err, ErrSelfCancel)
}

func TestTask_CancelledAndDaemonAccessors(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		}, SpawnOptions{Daemon: true})
		require.NoError(t, err)
		assert.True(t, child.Daemon())
		assert.False(t, child.Cancelled())

		_, err = Cancel(ctx, child, nil)
		require.NoError(t, err)
		assert.True(t, child.Cancelled())
		return nil, nil
	})
	require.NoError(t, err)
}

func TestKernel_CancelReportsEffectedVsNoop(t *testing.T) {
	k := newTestKernel(t)
	var effectedOnLive, effectedOnFinished bool
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		live, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return nil, Sleep(ctx, time.Hour)
		})
		require.NoError(t, err)
		finished, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return "already done", nil
		})
		require.NoError(t, err)
		require.NoError(t, Join(ctx, finished))

		effectedOnLive, err = Cancel(ctx, live, nil)
		if err != nil {
			return nil, err
		}
		effectedOnFinished, err = Cancel(ctx, finished, nil)
		return nil, err
	})
	require.NoError(t, err)
	assert.True(t, effectedOnLive, "cancelling a still-running task should report effected=true")
	assert.False(t, effectedOnFinished, "cancelling an already-finished task should report effected=false")
}

func TestKernel_CancelledTaskCannotEscapeByCatching(t *testing.T) {
	k := newTestKernel(t)
	caught := make(chan struct{})
	_, err := k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			if err := Sleep(ctx, time.Hour); err != nil {
				close(caught)
				// swallow the cancellation and try to keep going
				if err := Sleep(ctx, time.Millisecond); err != nil {
					return nil, err
				}
			}
			return "should never get here", nil
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
	case <-caught:
	default:
		t.Fatal("child never observed its cancellation")
	}
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

func assertErr(msg string) error { return sentinelErr(msg) }
