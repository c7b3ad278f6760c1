package types_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exeforge/exeforge/pkg/types"
)

func TestValidVersion(t *testing.T) {
	tests := []struct {
		version string
		valid   bool
	}{
		{"1.0.0.0", true},
		{"10.2.33.4", true},
		{"0.0.0.0", true},
		{"1.0.0", false},
		{"1.0.0.0.0", false},
		{"1.0.0.x", false},
		{"1..0.0", false},
		{"", false},
		{"1.0.0.-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.valid, types.ValidVersion(tt.version))
		})
	}
}

func TestJobSpec_Validate(t *testing.T) {
	spec := types.JobSpec{}
	assert.Error(t, spec.Validate(), "missing script path must fail validation")

	spec.ScriptPath = "/tmp/app.py"
	assert.NoError(t, spec.Validate())

	spec.FileVersion = "not-a-version"
	assert.Error(t, spec.Validate())

	spec.FileVersion = "2.1.0.7"
	assert.NoError(t, spec.Validate())
}

func TestJobSpec_EffectiveDefaults(t *testing.T) {
	spec := types.JobSpec{ScriptPath: filepath.Join("/work", "tool.py")}

	assert.Equal(t, "tool", spec.EffectiveName())
	assert.Equal(t, "/work", spec.EffectiveOutputDir())

	spec.OutputName = "renamed"
	spec.OutputDir = "/out"
	assert.Equal(t, "renamed", spec.EffectiveName())
	assert.Equal(t, "/out", spec.EffectiveOutputDir())
}

func TestValidTransition(t *testing.T) {
	assert.True(t, types.ValidTransition(types.JobStatePending, types.JobStateCheckingTool))
	assert.True(t, types.ValidTransition(types.JobStatePending, types.JobStateCancelled))
	assert.True(t, types.ValidTransition(types.JobStateCheckingTool, types.JobStateFailed))
	assert.True(t, types.ValidTransition(types.JobStateRunning, types.JobStateSucceeded))

	// No backward transitions.
	assert.False(t, types.ValidTransition(types.JobStateRunning, types.JobStatePreparing))
	assert.False(t, types.ValidTransition(types.JobStatePreparing, types.JobStatePending))

	// Terminal states are final.
	assert.False(t, types.ValidTransition(types.JobStateFailed, types.JobStateRunning))
	assert.False(t, types.ValidTransition(types.JobStateCancelled, types.JobStateSucceeded))
	assert.False(t, types.ValidTransition(types.JobStateSucceeded, types.JobStateFailed))
}

func TestJobStateIsTerminal(t *testing.T) {
	for _, s := range []types.JobState{types.JobStateSucceeded, types.JobStateFailed, types.JobStateCancelled} {
		assert.True(t, s.IsTerminal(), string(s))
	}
	for _, s := range []types.JobState{types.JobStatePending, types.JobStateCheckingTool, types.JobStatePreparing, types.JobStateRunning} {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestNewJobID_Unique(t *testing.T) {
	a, b := types.NewJobID(), types.NewJobID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
