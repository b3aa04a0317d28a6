package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	kernel "github.com/corolib/taskkernel"
)

var (
	runScenario string
	runMetrics  bool
	runListen   string
)

func init() {
	runCmd.Flags().StringVar(&runScenario, "scenario", "fanout", "scenario to run: fanout, timeout, cancel")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "enable Prometheus metrics collection")
	runCmd.Flags().StringVar(&runListen, "listen", "", "serve /metrics on this address while the scenario runs (requires --metrics)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a canned task tree to completion and report the outcome",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	fileCfg, err := kernel.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := fileCfg.Options()
	opts = append(opts, kernel.WithLogger(kernel.DefaultLogger()))
	if runMetrics {
		opts = append(opts, kernel.WithMetrics(true))
	}

	k, err := kernel.New(opts...)
	if err != nil {
		return fmt.Errorf("new kernel: %w", err)
	}

	scenario, ok := scenarios[runScenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q", runScenario)
	}

	var (
		result  any
		runErr  error
		elapsed time.Duration
	)
	serveMetrics(runListen, k, func() {
		start := time.Now()
		result, runErr = k.Run(scenario)
		elapsed = time.Since(start)
	})
	err = runErr

	fmt.Printf("scenario %q finished in %s\n", runScenario, elapsed)
	if err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Printf("result: %v\n", result)
	}

	if runMetrics {
		printMetrics(k)
	}
	return nil
}

var scenarios = map[string]func(ctx *kernel.TaskContext) (any, error){
	"fanout":  fanoutScenario,
	"timeout": timeoutScenario,
	"cancel":  cancelScenario,
}

func fanoutScenario(ctx *kernel.TaskContext) (any, error) {
	const workers = 8
	tasks := make([]*kernel.Task, workers)
	for i := range tasks {
		i := i
		t, err := kernel.Spawn(ctx, func(ctx *kernel.TaskContext) (any, error) {
			if err := kernel.Sleep(ctx, time.Duration(i+1)*5*time.Millisecond); err != nil {
				return nil, err
			}
			return i * i, nil
		}, kernel.SpawnOptions{Name: fmt.Sprintf("worker-%d", i)})
		if err != nil {
			return nil, err
		}
		tasks[i] = t
	}
	total := 0
	for _, t := range tasks {
		if err := kernel.Join(ctx, t); err != nil {
			return nil, err
		}
		v, _ := t.Result()
		total += v.(int)
	}
	return total, nil
}

func timeoutScenario(ctx *kernel.TaskContext) (any, error) {
	_, timedOut, err := kernel.IgnoreAfter(ctx, 20*time.Millisecond, func(ctx *kernel.TaskContext) (any, error) {
		return nil, kernel.Sleep(ctx, 200*time.Millisecond)
	})
	if err != nil {
		return nil, err
	}
	return timedOut, nil
}

func cancelScenario(ctx *kernel.TaskContext) (any, error) {
	child, err := kernel.Spawn(ctx, func(ctx *kernel.TaskContext) (any, error) {
		return nil, kernel.Sleep(ctx, time.Hour)
	}, kernel.SpawnOptions{Name: "victim"})
	if err != nil {
		return nil, err
	}
	if err := kernel.Sleep(ctx, 10*time.Millisecond); err != nil {
		return nil, err
	}
	_, err = kernel.Cancel(ctx, child, fmt.Errorf("cancel scenario done"))
	return nil, err
}
