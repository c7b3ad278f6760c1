package builder_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exeforge/exeforge/pkg/builder"
	"github.com/exeforge/exeforge/pkg/types"
	"github.com/exeforge/exeforge/pkg/versioninfo"
)

// recordSink captures every event a job emits.
type recordSink struct {
	mu         sync.Mutex
	statuses   []string
	progresses []int
	finished   int
	failed     int
	cancelled  int
	batchDone  int
	failMsg    string
	artifact   string
	sizeMB     int64
}

func (r *recordSink) Status(jobID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
}

func (r *recordSink) Progress(jobID string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progresses = append(r.progresses, percent)
}

func (r *recordSink) Finished(jobID, artifactPath string, sizeMB int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.artifact = artifactPath
	r.sizeMB = sizeMB
}

func (r *recordSink) Failed(jobID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	r.failMsg = message
}

func (r *recordSink) Cancelled(jobID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled++
}

func (r *recordSink) BatchDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchDone++
}

type stubChecker struct {
	ok    bool
	calls int
}

func (s *stubChecker) EnsureAvailable(ctx context.Context, pythonPath string) bool {
	s.calls++
	return s.ok
}

type stubInvoker struct {
	ok        bool
	lines     []string
	panicWith string
	before    func() // runs after the first line, e.g. to stop the job
	prepare   func() // runs before returning, e.g. to create the artifact
	gotArgs   []string
	calls     int
}

func (s *stubInvoker) Invoke(ctx context.Context, pythonPath string, args []string, scriptPath string, onLine func(string), cancelled func() bool) bool {
	s.calls++
	s.gotArgs = args
	if s.panicWith != "" {
		panic(s.panicWith)
	}
	for i, line := range s.lines {
		if cancelled() {
			return false
		}
		onLine(line)
		if i == 0 && s.before != nil {
			s.before()
		}
	}
	if cancelled() {
		return false
	}
	if s.prepare != nil {
		s.prepare()
	}
	return s.ok
}

type stubIcon struct{ path string }

func (s *stubIcon) Prepare(iconPath, workDir string) string { return s.path }

type stubManifest struct{ path string }

func (s *stubManifest) Generate(version, copyright, productName, workDir string) string {
	return s.path
}

func newSpec(t *testing.T) types.JobSpec {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')\n"), 0644))
	return types.JobSpec{ScriptPath: script, SingleFile: true, ConsoleWindow: true}
}

func TestJob_SuccessPath(t *testing.T) {
	spec := newSpec(t)
	sink := &recordSink{}

	invoker := &stubInvoker{
		ok: true,
		lines: []string{
			"Analyzing: app.py",
			"Collecting submodules",
			"Building EXE completed successfully.",
		},
	}
	invoker.prepare = func() {
		artifact := builder.ArtifactPath(true, spec.EffectiveOutputDir(), "app")
		require.NoError(t, os.WriteFile(artifact, make([]byte, 2*(1<<20)), 0755))
	}

	job := builder.NewWithCollaborators(spec, nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  invoker,
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})

	job.Run(context.Background())

	assert.Equal(t, types.JobStateSucceeded, job.State())
	assert.Equal(t, 1, sink.finished)
	assert.Equal(t, 0, sink.failed)
	assert.Equal(t, builder.ArtifactPath(true, spec.EffectiveOutputDir(), "app"), sink.artifact)
	assert.Equal(t, int64(2), sink.sizeMB)
	assert.Equal(t, []int{30, 50, 100}, sink.progresses)
	assert.Contains(t, sink.statuses, "Start converting...")
	assert.Contains(t, sink.statuses, "Analyzing: app.py")
	assert.Equal(t, builder.ArtifactPath(true, spec.EffectiveOutputDir(), "app"), job.Result().ArtifactPath)
}

func TestJob_ToolUnavailable(t *testing.T) {
	sink := &recordSink{}
	invoker := &stubInvoker{ok: true}

	job := builder.NewWithCollaborators(newSpec(t), nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: false},
		Invoker:  invoker,
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})
	job.Run(context.Background())

	assert.Equal(t, types.JobStateFailed, job.State())
	assert.Equal(t, 0, invoker.calls, "tool must not be invoked when unavailable")
	assert.Equal(t, 1, sink.failed)
}

func TestJob_InvocationFailure(t *testing.T) {
	sink := &recordSink{}
	job := builder.NewWithCollaborators(newSpec(t), nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  &stubInvoker{ok: false, lines: []string{"error: something broke"}},
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})
	job.Run(context.Background())

	assert.Equal(t, types.JobStateFailed, job.State())
	assert.Contains(t, sink.failMsg, "Conversion failed")
}

func TestJob_ArtifactMissing(t *testing.T) {
	sink := &recordSink{}
	job := builder.NewWithCollaborators(newSpec(t), nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  &stubInvoker{ok: true}, // reports success but produces nothing
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})
	job.Run(context.Background())

	assert.Equal(t, types.JobStateFailed, job.State())
	assert.Contains(t, sink.failMsg, "was not found")
}

func TestJob_CancelBeforeStart(t *testing.T) {
	sink := &recordSink{}
	checker := &stubChecker{ok: true}
	invoker := &stubInvoker{ok: true}

	job := builder.NewWithCollaborators(newSpec(t), nil, sink, builder.Collaborators{
		Checker:  checker,
		Invoker:  invoker,
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})

	job.Stop()
	job.Run(context.Background())

	assert.Equal(t, types.JobStateCancelled, job.State())
	assert.Equal(t, 0, checker.calls)
	assert.Equal(t, 0, invoker.calls)
	assert.Equal(t, 1, sink.cancelled)
	assert.Equal(t, 0, sink.failed)
}

func TestJob_CancelDuringInvocation(t *testing.T) {
	sink := &recordSink{}
	invoker := &stubInvoker{ok: true, lines: []string{"Analyzing: app.py", "Collecting", "Building"}}

	job := builder.NewWithCollaborators(newSpec(t), nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  invoker,
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})
	invoker.before = job.Stop

	job.Run(context.Background())

	assert.Equal(t, types.JobStateCancelled, job.State())
	assert.Equal(t, 1, sink.cancelled)
	assert.Equal(t, 0, sink.failed)
}

func TestJob_MonotonicProgress(t *testing.T) {
	spec := newSpec(t)
	sink := &recordSink{}
	invoker := &stubInvoker{
		ok:    true,
		lines: []string{"Building EXE", "Analyzing late import", "Building again"},
	}
	invoker.prepare = func() {
		artifact := builder.ArtifactPath(true, spec.EffectiveOutputDir(), "app")
		require.NoError(t, os.WriteFile(artifact, []byte("x"), 0755))
	}

	job := builder.NewWithCollaborators(spec, nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  invoker,
		Icon:     &stubIcon{},
		Manifest: &stubManifest{},
	})
	job.Run(context.Background())

	// The later "Analyzing" estimate (30) must not regress past 70.
	assert.Equal(t, []int{70}, sink.progresses)
	assert.Equal(t, 70, job.Progress())
}

func TestJob_IconAndManifestFlagsAppended(t *testing.T) {
	spec := newSpec(t)
	spec.IconPath = filepath.Join(t.TempDir(), "logo.png")
	spec.FileVersion = "1.2.3.4"

	iconOut := filepath.Join(filepath.Dir(spec.ScriptPath), "icon_converted.ico")
	require.NoError(t, os.WriteFile(iconOut, []byte("ico"), 0644))
	manifestOut := filepath.Join(filepath.Dir(spec.ScriptPath), versioninfo.FileName)
	require.NoError(t, os.WriteFile(manifestOut, []byte("vsinfo"), 0644))

	invoker := &stubInvoker{ok: false}
	job := builder.NewWithCollaborators(spec, nil, &recordSink{}, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  invoker,
		Icon:     &stubIcon{path: iconOut},
		Manifest: &stubManifest{path: manifestOut},
	})
	job.Run(context.Background())

	assert.Contains(t, invoker.gotArgs, "--icon="+iconOut)
	assert.Contains(t, invoker.gotArgs, "--version-file="+manifestOut)

	// Both temporaries must be gone after the (failed) run.
	assert.NoFileExists(t, iconOut)
	assert.NoFileExists(t, manifestOut)
}

func TestJob_SoftFailuresSkipFlags(t *testing.T) {
	spec := newSpec(t)
	spec.IconPath = "/assets/logo.svg"
	spec.Copyright = "(c) 2026"

	invoker := &stubInvoker{ok: false}
	job := builder.NewWithCollaborators(spec, nil, &recordSink{}, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  invoker,
		Icon:     &stubIcon{path: ""},     // conversion failed
		Manifest: &stubManifest{path: ""}, // generation failed
	})
	job.Run(context.Background())

	for _, arg := range invoker.gotArgs {
		assert.NotContains(t, arg, "--icon=")
		assert.NotContains(t, arg, "--version-file=")
	}
	// The job still reached the invocation stage.
	assert.Equal(t, 1, invoker.calls)
}

func TestJob_CleanupRunsOnPanic(t *testing.T) {
	spec := newSpec(t)
	spec.FileVersion = "1.0.0.0"
	scriptDir := filepath.Dir(spec.ScriptPath)

	sink := &recordSink{}
	job := builder.NewWithCollaborators(spec, nil, sink, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  &stubInvoker{panicWith: "unexpected explosion"},
		Icon:     &stubIcon{},
		Manifest: versioninfo.NewGenerator(nil), // writes a real temp file
	})

	job.Run(context.Background())

	assert.Equal(t, types.JobStateFailed, job.State())
	assert.Contains(t, sink.failMsg, "unexpected explosion")
	assert.NoFileExists(t, filepath.Join(scriptDir, versioninfo.FileName))
}

func TestJob_PassthroughIconIsNotDeleted(t *testing.T) {
	spec := newSpec(t)
	ico := filepath.Join(t.TempDir(), "app.ico")
	require.NoError(t, os.WriteFile(ico, []byte("ico"), 0644))
	spec.IconPath = ico

	job := builder.NewWithCollaborators(spec, nil, &recordSink{}, builder.Collaborators{
		Checker:  &stubChecker{ok: true},
		Invoker:  &stubInvoker{ok: false},
		Icon:     &stubIcon{path: ico}, // passthrough: input returned unchanged
		Manifest: &stubManifest{},
	})
	job.Run(context.Background())

	assert.FileExists(t, ico, "a caller-supplied icon is not a temporary")
}
