package kernel

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoUpperProcessFunc = "kernel-test-echo-upper"

func init() {
	RegisterProcessFunc(echoUpperProcessFunc, func(args []byte) ([]byte, error) {
		out := make([]byte, len(args))
		for i, b := range args {
			if b >= 'a' && b <= 'z' {
				b -= 'a' - 'A'
			}
			out[i] = b
		}
		return out, nil
	})
}

// TestMain lets this same test binary double as the re-exec'd worker
// process: RunInProcess execs os.Executable() with KERNEL_WORKER_PROCESS_FUNC
// set, and RunWorkerProcessIfRequested recognizes that and runs the
// registered func instead of the test suite.
func TestMain(m *testing.M) {
	if RunWorkerProcessIfRequested() {
		return
	}
	os.Exit(m.Run())
}

func TestRunInProcess_RoundTripsThroughSubprocess(t *testing.T) {
	k, err := New(WithMaxWorkerProcesses(1))
	require.NoError(t, err)

	result, err := k.Run(func(ctx *TaskContext) (any, error) {
		return RunInProcess(ctx, echoUpperProcessFunc, []byte("hello"))
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), result)
}

func TestRunInProcess_DisabledWithoutPoolOption(t *testing.T) {
	k, err := New(WithMaxWorkerProcesses(0))
	require.NoError(t, err)
	_, err = k.Run(func(ctx *TaskContext) (any, error) {
		return RunInProcess(ctx, echoUpperProcessFunc, nil)
	})
	assert.Error(t, err)
}

func TestRunInProcess_CancelSendsSIGTERM(t *testing.T) {
	RegisterProcessFunc("kernel-test-sleep-forever", func(args []byte) ([]byte, error) {
		time.Sleep(time.Hour)
		return nil, nil
	})

	k, err := New(WithMaxWorkerProcesses(1))
	require.NoError(t, err)

	_, err = k.Run(func(ctx *TaskContext) (any, error) {
		child, err := Spawn(ctx, func(ctx *TaskContext) (any, error) {
			return RunInProcess(ctx, "kernel-test-sleep-forever", nil)
		})
		require.NoError(t, err)
		if err := Sleep(ctx, 20*time.Millisecond); err != nil {
			return nil, err
		}
		if _, err := Cancel(ctx, child, nil); err != nil {
			return nil, err
		}
		return nil, Join(ctx, child)
	})
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.True(t, isCancellation(taskErr.Err))
}
