package history_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exeforge/exeforge/pkg/history"
	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/types"
)

func quietLogger() logger.Logger {
	return logger.CreateLoggerWithOutput("", "error", io.Discard)
}

func TestManager_RecordAndRead(t *testing.T) {
	m := history.NewManager(t.TempDir(), quietLogger())

	spec := types.JobSpec{ScriptPath: "app.py"}
	result := types.JobResult{ArtifactPath: "/tmp/dist/app.exe", SizeMB: 8}

	record, err := m.Record("app", spec, types.JobStateSucceeded, result)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Conversions)
	assert.Equal(t, 0, record.Failures)

	got, err := m.Read("app")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dist/app.exe", got.ArtifactPath)
	assert.EqualValues(t, 8, got.SizeMB)
	assert.Equal(t, types.JobStateSucceeded, got.State)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestManager_CountersCarryAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	spec := types.JobSpec{ScriptPath: "app.py"}

	m1 := history.NewManager(dir, quietLogger())
	_, err := m1.Record("app", spec, types.JobStateFailed,
		types.JobResult{Message: "Conversion failed, please see the error message above."})
	require.NoError(t, err)

	// A fresh manager reads the counters back from disk.
	m2 := history.NewManager(dir, quietLogger())
	record, err := m2.Record("app", spec, types.JobStateSucceeded,
		types.JobResult{ArtifactPath: "/tmp/dist/app.exe", SizeMB: 5})
	require.NoError(t, err)

	assert.Equal(t, 2, record.Conversions)
	assert.Equal(t, 1, record.Failures)
}

func TestManager_List(t *testing.T) {
	m := history.NewManager(t.TempDir(), quietLogger())

	_, err := m.Record("tool", types.JobSpec{ScriptPath: "tool.py"}, types.JobStateSucceeded, types.JobResult{})
	require.NoError(t, err)
	_, err = m.Record("app", types.JobSpec{ScriptPath: "app.py"}, types.JobStateCancelled,
		types.JobResult{Message: "Conversion canceled by user."})
	require.NoError(t, err)

	records, err := m.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "app", records[0].Name)
	assert.Equal(t, "tool", records[1].Name)
}

func TestManager_Remove(t *testing.T) {
	m := history.NewManager(t.TempDir(), quietLogger())

	_, err := m.Record("app", types.JobSpec{ScriptPath: "app.py"}, types.JobStateSucceeded, types.JobResult{})
	require.NoError(t, err)

	require.NoError(t, m.Remove("app"))
	_, err = m.Read("app")
	require.Error(t, err)

	// Removing a missing record is not an error.
	require.NoError(t, m.Remove("app"))
}
