// Package builder implements the per-job build lifecycle: tool check,
// icon and version-manifest preparation, tool invocation, artifact
// verification, and guaranteed cleanup of temporaries on every exit path.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/exeforge/exeforge/pkg/events"
	"github.com/exeforge/exeforge/pkg/icon"
	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/progress"
	"github.com/exeforge/exeforge/pkg/pyinstaller"
	"github.com/exeforge/exeforge/pkg/types"
	"github.com/exeforge/exeforge/pkg/versioninfo"
)

// ToolChecker verifies the packaging tool is usable.
type ToolChecker interface {
	EnsureAvailable(ctx context.Context, pythonPath string) bool
}

// Invoker runs the packaging tool and streams its output.
type Invoker interface {
	Invoke(ctx context.Context, pythonPath string, args []string, scriptPath string, onLine func(string), cancelled func() bool) bool
}

// IconPreparer resolves an icon asset into the tool's native format.
type IconPreparer interface {
	Prepare(iconPath, workDir string) string
}

// ManifestGenerator emits the version-resource file.
type ManifestGenerator interface {
	Generate(version, copyright, productName, workDir string) string
}

// Collaborators bundles the stage implementations a job drives. Tests
// substitute stubs; production jobs get the pyinstaller/icon/versioninfo
// implementations.
type Collaborators struct {
	Checker  ToolChecker
	Invoker  Invoker
	Icon     IconPreparer
	Manifest ManifestGenerator
}

// Job converts one script into a native executable. A job owns exactly
// the temporary files it creates and removes them on every exit path.
type Job struct {
	id   string
	spec types.JobSpec
	log  logger.Logger
	sink events.Sink

	collab Collaborators

	cancelled atomic.Bool

	mu       sync.RWMutex
	state    types.JobState
	progress int
	result   types.JobResult
	temps    []string
}

// New creates a job with the production collaborators.
func New(spec types.JobSpec, log logger.Logger, sink events.Sink) *Job {
	j := newJob(spec, log, sink)
	runner := pyinstaller.NewRunner(j.status)
	j.collab = Collaborators{
		Checker:  runner,
		Invoker:  runner,
		Icon:     icon.NewPreprocessor(j.status),
		Manifest: versioninfo.NewGenerator(j.status),
	}
	return j
}

// NewWithCollaborators creates a job with injected stage implementations.
func NewWithCollaborators(spec types.JobSpec, log logger.Logger, sink events.Sink, collab Collaborators) *Job {
	j := newJob(spec, log, sink)
	j.collab = collab
	return j
}

func newJob(spec types.JobSpec, log logger.Logger, sink events.Sink) *Job {
	if log == nil {
		log = logger.CreateLogger("", "info")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	id := types.NewJobID()
	return &Job{
		id:    id,
		spec:  spec,
		log:   log.WithJob(id),
		sink:  sink,
		state: types.JobStatePending,
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Spec returns the immutable job specification.
func (j *Job) Spec() types.JobSpec { return j.spec }

// State returns the current lifecycle state.
func (j *Job) State() types.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns the last emitted percentage for this job.
func (j *Job) Progress() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// Result returns the terminal outcome. Meaningful once State is terminal.
func (j *Job) Result() types.JobResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Stop requests cooperative cancellation. Takes effect at the next output
// line, or immediately if the tool has not been invoked yet.
func (j *Job) Stop() {
	j.cancelled.Store(true)
}

// Run executes the job's stage sequence. It never panics past its
// boundary: unexpected panics are recovered and reported as a failure,
// and temporaries are removed regardless of the exit path.
func (j *Job) Run(ctx context.Context) {
	defer j.cleanup()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Exception occurred during conversion: %v", r)
			j.status(msg)
			j.fail(msg)
		}
	}()

	if j.cancelled.Load() {
		j.cancel("Conversion canceled by user.")
		return
	}

	name := j.spec.EffectiveName()
	outDir := j.spec.EffectiveOutputDir()
	scriptDir := filepath.Dir(j.spec.ScriptPath)

	j.transition(types.JobStateCheckingTool)
	if !j.collab.Checker.EnsureAvailable(ctx, j.spec.PythonPath) {
		j.fail("PyInstaller is not available and could not be installed.")
		return
	}

	j.transition(types.JobStatePreparing)
	args := pyinstaller.BuildArgs(j.spec, name, outDir)

	if j.spec.IconPath != "" {
		if iconFile := j.collab.Icon.Prepare(j.spec.IconPath, scriptDir); iconFile != "" {
			args = append(args, "--icon="+iconFile)
			if iconFile != j.spec.IconPath {
				j.addTemp(iconFile)
			}
		}
	}

	if j.spec.FileVersion != "" || j.spec.Copyright != "" {
		if manifest := j.collab.Manifest.Generate(j.spec.FileVersion, j.spec.Copyright, name, scriptDir); manifest != "" {
			args = append(args, "--version-file="+manifest)
			j.addTemp(manifest)
		}
	}

	if j.cancelled.Load() {
		j.cancel("Conversion canceled by user.")
		return
	}

	j.status("Start converting...")
	j.transition(types.JobStateRunning)
	ok := j.collab.Invoker.Invoke(ctx, j.spec.PythonPath, args, j.spec.ScriptPath, j.onLine, j.cancelled.Load)
	if !ok {
		if j.cancelled.Load() {
			j.cancel("Conversion canceled by user.")
			return
		}
		msg := "Conversion failed, please see the error message above."
		j.status(msg)
		j.fail(msg)
		return
	}

	artifact := ArtifactPath(j.spec.SingleFile, outDir, name)
	if _, err := os.Stat(artifact); err != nil {
		msg := "Conversion completed, but the resulting executable was not found."
		j.status(msg)
		j.fail(msg)
		return
	}

	sizeMB, err := ArtifactSizeMB(artifact, j.spec.SingleFile)
	if err != nil {
		j.log.Warn("Failed to measure artifact size", logger.WithField("error", err))
	}
	j.succeed(artifact, sizeMB)
}

// onLine handles one line of tool output: durably logged, forwarded as a
// status event, and run through the progress estimator.
func (j *Job) onLine(line string) {
	j.status(line)
	if percent, ok := progress.Estimate(line); ok {
		j.emitProgress(percent)
	}
}

// status logs a message and forwards it to the event sink.
func (j *Job) status(message string) {
	j.log.Info(message)
	j.sink.Status(j.id, message)
}

// emitProgress reports a percentage, clamped monotonic per job so a later
// lower estimate never regresses an observer's display.
func (j *Job) emitProgress(percent int) {
	j.mu.Lock()
	if percent <= j.progress {
		j.mu.Unlock()
		return
	}
	j.progress = percent
	j.mu.Unlock()

	j.sink.Progress(j.id, percent)
}

// transition moves the state machine forward. Invalid (backward or
// post-terminal) transitions are ignored.
func (j *Job) transition(to types.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !types.ValidTransition(j.state, to) {
		return
	}
	j.state = to
}

func (j *Job) succeed(artifact string, sizeMB int64) {
	j.transition(types.JobStateSucceeded)
	j.mu.Lock()
	j.result = types.JobResult{ArtifactPath: artifact, SizeMB: sizeMB}
	j.mu.Unlock()

	j.log.Success(fmt.Sprintf("Executable is located at: %s (size: %d MB)", artifact, sizeMB))
	j.sink.Finished(j.id, artifact, sizeMB)
}

func (j *Job) fail(message string) {
	// A stop request that raced a genuine failure still reports Failed:
	// the terminal transition below wins exactly once.
	j.mu.Lock()
	if j.state.IsTerminal() {
		j.mu.Unlock()
		return
	}
	j.state = types.JobStateFailed
	j.result = types.JobResult{Message: message}
	j.mu.Unlock()

	j.log.Error(message)
	j.sink.Failed(j.id, message)
}

func (j *Job) cancel(message string) {
	j.mu.Lock()
	if j.state.IsTerminal() {
		j.mu.Unlock()
		return
	}
	j.state = types.JobStateCancelled
	j.result = types.JobResult{Message: message}
	j.mu.Unlock()

	j.log.Warn(message)
	j.sink.Cancelled(j.id, message)
}

// addTemp records a temporary file owned by this job.
func (j *Job) addTemp(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.temps = append(j.temps, path)
}

// cleanup removes the job's temporary files. Best-effort: failures are
// logged, never raised.
func (j *Job) cleanup() {
	j.mu.Lock()
	temps := j.temps
	j.temps = nil
	j.mu.Unlock()

	for _, path := range temps {
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				j.log.Warn("Unable to delete temporary file", logger.WithField("path", path), logger.WithField("error", err))
			}
			continue
		}
		switch filepath.Base(path) {
		case versioninfo.FileName:
			j.status("Delete the version information file.")
		case icon.ConvertedName:
			j.status("Delete temporary ICO files.")
		default:
			j.status(fmt.Sprintf("Deleted temporary file: %s", path))
		}
	}
}
