// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package kernel

import "runtime"

// kernelOptions holds configuration applied at Kernel construction.
type kernelOptions struct {
	logger           Logger
	metricsEnabled   bool
	maxWorkerThreads int
	maxWorkerProcs   int
	journalPath      string
	workerReexecPath string
}

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions) error
}

type optionFunc func(*kernelOptions) error

func (f optionFunc) applyKernel(opts *kernelOptions) error {
	return f(opts)
}

// WithLogger attaches a structured logger to the kernel. Trap dispatch,
// task lifecycle transitions, and worker pool events are logged through it.
func WithLogger(logger Logger) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithMetrics enables Prometheus metrics collection on the kernel.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.metricsEnabled = enabled
		return nil
	})
}

// WithMaxWorkerThreads bounds the goroutine pool backing RunInThread.
func WithMaxWorkerThreads(n int) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.maxWorkerThreads = n
		return nil
	})
}

// WithMaxWorkerProcesses bounds the subprocess pool backing RunInProcess.
func WithMaxWorkerProcesses(n int) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.maxWorkerProcs = n
		return nil
	})
}

// WithJournal enables a bbolt-backed task journal at path, recording
// terminal task outcomes for post-mortem inspection.
func WithJournal(path string) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.journalPath = path
		return nil
	})
}

// WithWorkerReexecPath overrides the executable path used to re-exec
// subprocess workers for RunInProcess. Defaults to os.Executable().
func WithWorkerReexecPath(path string) Option {
	return optionFunc(func(opts *kernelOptions) error {
		opts.workerReexecPath = path
		return nil
	})
}

// resolveOptions applies Option instances to a fresh kernelOptions.
func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		logger:           noopLogger{},
		maxWorkerThreads: 64,
		maxWorkerProcs:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
