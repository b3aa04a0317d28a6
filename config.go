package kernel

import (
	"os"
	"runtime"

	yaml "github.com/goccy/go-yaml"
)

// FileConfig mirrors a kernel.yaml, letting deployments configure a Kernel
// without recompiling. Zero values mean "use the kernel's own default".
type FileConfig struct {
	MaxWorkerThreads int    `yaml:"max_worker_threads"`
	MaxWorkerProcs   int    `yaml:"max_worker_processes"`
	MetricsEnabled   bool   `yaml:"metrics_enabled"`
	JournalPath      string `yaml:"journal_path"`
	WorkerReexecPath string `yaml:"worker_reexec_path"`
}

// defaultFileConfig mirrors the zero-value defaults resolveOptions applies
// when no Option overrides them.
func defaultFileConfig() FileConfig {
	return FileConfig{
		MaxWorkerThreads: 64,
		MaxWorkerProcs:   runtime.NumCPU(),
	}
}

// LoadConfig reads a YAML file at path and overlays it onto the defaults.
// An empty path, or a missing file, yields defaults only.
func LoadConfig(path string) (FileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxWorkerThreads <= 0 {
		cfg.MaxWorkerThreads = 64
	}
	if cfg.MaxWorkerProcs <= 0 {
		cfg.MaxWorkerProcs = runtime.NumCPU()
	}
	return cfg, nil
}

// Options translates the file config into kernel.Options, ready to pass to
// New alongside any programmatic overrides (which should come after, so
// they win).
func (c FileConfig) Options() []Option {
	opts := []Option{
		WithMaxWorkerThreads(c.MaxWorkerThreads),
		WithMaxWorkerProcesses(c.MaxWorkerProcs),
		WithMetrics(c.MetricsEnabled),
	}
	if c.JournalPath != "" {
		opts = append(opts, WithJournal(c.JournalPath))
	}
	if c.WorkerReexecPath != "" {
		opts = append(opts, WithWorkerReexecPath(c.WorkerReexecPath))
	}
	return opts
}
