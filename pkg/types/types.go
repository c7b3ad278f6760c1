// Package types provides core types and configurations for Exeforge
package types

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// JobState represents the current state of a build job
type JobState string

const (
	JobStatePending      JobState = "pending"
	JobStateCheckingTool JobState = "checking-tool"
	JobStatePreparing    JobState = "preparing"
	JobStateRunning      JobState = "running"
	JobStateSucceeded    JobState = "succeeded"
	JobStateFailed       JobState = "failed"
	JobStateCancelled    JobState = "cancelled"
)

// IsTerminal reports whether no further transitions can occur from s.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// stateRank orders states along the job lifecycle. Terminal states share
// the highest rank so the machine never moves between them.
func stateRank(s JobState) int {
	switch s {
	case JobStatePending:
		return 0
	case JobStateCheckingTool:
		return 1
	case JobStatePreparing:
		return 2
	case JobStateRunning:
		return 3
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return 4
	default:
		return -1
	}
}

// ValidTransition reports whether moving from one state to another is a
// forward transition. Backward transitions and leaving a terminal state
// are rejected.
func ValidTransition(from, to JobState) bool {
	if from.IsTerminal() {
		return false
	}
	return stateRank(to) > stateRank(from)
}

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// JobSpec describes one script-to-executable conversion request. A spec is
// immutable after submission; the pool copies it by value into each job.
type JobSpec struct {
	// ScriptPath is the Python source script to package. Required.
	ScriptPath string `json:"scriptPath" yaml:"scriptPath"`

	// SingleFile selects --onefile packaging; false selects --onedir.
	SingleFile bool `json:"singleFile" yaml:"singleFile"`

	// ConsoleWindow keeps the console window (--console vs --windowed).
	ConsoleWindow bool `json:"consoleWindow" yaml:"consoleWindow"`

	// OutputDir is where the artifact lands. Empty means the script's
	// own directory.
	OutputDir string `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`

	// OutputName names the artifact. Empty means the script basename.
	OutputName string `json:"outputName,omitempty" yaml:"outputName,omitempty"`

	// IconPath is an optional .png or .ico icon asset.
	IconPath string `json:"iconPath,omitempty" yaml:"iconPath,omitempty"`

	// FileVersion is an optional "a.b.c.d" version string.
	FileVersion string `json:"fileVersion,omitempty" yaml:"fileVersion,omitempty"`

	// Copyright is an optional legal-copyright string.
	Copyright string `json:"copyright,omitempty" yaml:"copyright,omitempty"`

	// HiddenImports is a comma-separated list of extra module names
	// passed as --hidden-import flags.
	HiddenImports string `json:"hiddenImports,omitempty" yaml:"hiddenImports,omitempty"`

	// ExtraOptions is a free-form string of additional tool arguments,
	// split on whitespace and appended verbatim.
	ExtraOptions string `json:"extraOptions,omitempty" yaml:"extraOptions,omitempty"`

	// PythonPath is the interpreter that owns the packaging tool.
	// Empty means "python" from PATH.
	PythonPath string `json:"pythonPath,omitempty" yaml:"pythonPath,omitempty"`
}

// Validate checks the fields a caller must get right before submission.
func (s *JobSpec) Validate() error {
	if s.ScriptPath == "" {
		return fmt.Errorf("script path is required")
	}
	if s.FileVersion != "" && !ValidVersion(s.FileVersion) {
		return fmt.Errorf("invalid version %q: expected four dot-separated integers", s.FileVersion)
	}
	return nil
}

// EffectiveName resolves the artifact name: the explicit output name, else
// the script basename without extension.
func (s *JobSpec) EffectiveName() string {
	if s.OutputName != "" {
		return s.OutputName
	}
	base := filepath.Base(s.ScriptPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EffectiveOutputDir resolves the destination directory: the explicit
// output dir, else the script's own directory.
func (s *JobSpec) EffectiveOutputDir() string {
	if s.OutputDir != "" {
		return s.OutputDir
	}
	return filepath.Dir(s.ScriptPath)
}

// ValidVersion reports whether v is four dot-separated non-negative
// integers, e.g. "1.2.3.4".
func ValidVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// JobResult is the terminal outcome of one job.
type JobResult struct {
	// ArtifactPath is set on success: the produced executable.
	ArtifactPath string `json:"artifactPath,omitempty"`

	// SizeMB is the artifact size in whole megabytes (file size for
	// single-file mode, recursive directory size otherwise).
	SizeMB int64 `json:"sizeMB,omitempty"`

	// Message explains a failure or cancellation.
	Message string `json:"message,omitempty"`
}

// NewJobID returns a fresh unique job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// ExecutableSuffix is the platform extension the packaging tool gives its
// artifacts (".exe" on Windows, none elsewhere).
func ExecutableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
