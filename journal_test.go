package kernel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RecordThenEntriesRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := openJournal(path)
	require.NoError(t, err)
	defer j.close()

	ok := &Task{id: 1, name: "ok", spawnedAt: time.Now()}
	failed := &Task{id: 2, name: "bad", spawnedAt: time.Now(), resultErr: assertErr("boom")}

	j.record(ok)
	j.record(failed)

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := make(map[TaskID]journalEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.Equal(t, "ok", byID[1].Name)
	assert.Empty(t, byID[1].Error)
	assert.Equal(t, "bad", byID[2].Name)
	assert.Equal(t, "boom", byID[2].Error)
}

func TestJournal_RecordOverwritesSameTaskID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := openJournal(path)
	require.NoError(t, err)
	defer j.close()

	task := &Task{id: 7, name: "first", spawnedAt: time.Now()}
	j.record(task)
	task.name = "second"
	j.record(task)

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Name)
}

func TestKernel_JournalEntriesDisabledByDefault(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.JournalEntries()
	assert.ErrorIs(t, err, ErrJournalDisabled)
}

func TestKernel_JournalRecordsTaskOutcomeOnRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	k, err := New(WithJournal(path))
	require.NoError(t, err)

	_, err = k.Run(func(ctx *TaskContext) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	// Run's shutdown already closed the kernel's journal handle; reopen the
	// same file to confirm the outcome was actually persisted to disk.
	reopened, err := openJournal(path)
	require.NoError(t, err)
	defer reopened.close()

	entries, err := reopened.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main", entries[0].Name)
	assert.Empty(t, entries[0].Error)
}
