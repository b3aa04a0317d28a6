package kernel

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultFileConfig(), cfg)
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultFileConfig(), cfg)
}

func TestLoadConfig_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	contents := "max_worker_threads: 8\nmetrics_enabled: true\njournal_path: /tmp/kernel.db\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxWorkerThreads)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "/tmp/kernel.db", cfg.JournalPath)
	assert.Equal(t, runtime.NumCPU(), cfg.MaxWorkerProcs) // not set in YAML, default preserved
}

func TestLoadConfig_NonPositiveValuesClampToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_worker_threads: 0\nmax_worker_processes: -1\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxWorkerThreads)
	assert.Equal(t, runtime.NumCPU(), cfg.MaxWorkerProcs)
}

func TestFileConfig_OptionsIncludesJournalOnlyWhenSet(t *testing.T) {
	withoutJournal := FileConfig{MaxWorkerThreads: 1, MaxWorkerProcs: 1}.Options()
	assert.Len(t, withoutJournal, 3)

	withJournal := FileConfig{MaxWorkerThreads: 1, MaxWorkerProcs: 1, JournalPath: "/tmp/j.db"}.Options()
	assert.Len(t, withJournal, 4)
}
