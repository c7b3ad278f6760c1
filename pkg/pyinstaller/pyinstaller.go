// Package pyinstaller wraps the external packaging tool: availability
// probing, argument-list construction, and line-streamed invocation.
package pyinstaller

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/exeforge/exeforge/pkg/types"
)

// ModuleName is the Python module invoked as `<runtime> -m <module>`.
const ModuleName = "PyInstaller"

// defaultRuntime is used when a job does not pin an interpreter.
const defaultRuntime = "python"

// Runner drives the packaging tool for one job. Status lines are
// reported through the injected callback; no failure escapes as an error
// or panic — callers get a boolean outcome plus status text.
type Runner struct {
	status func(string)
}

// NewRunner creates a runner reporting through status. A nil status is
// allowed and discards messages.
func NewRunner(status func(string)) *Runner {
	if status == nil {
		status = func(string) {}
	}
	return &Runner{status: status}
}

func resolveRuntime(pythonPath string) string {
	if pythonPath == "" {
		return defaultRuntime
	}
	return pythonPath
}

// EnsureAvailable verifies the packaging tool is importable by the given
// interpreter, installing it on demand. Returns true iff the tool is
// usable after the call.
func (r *Runner) EnsureAvailable(ctx context.Context, pythonPath string) bool {
	runtime := resolveRuntime(pythonPath)

	probe := exec.CommandContext(ctx, runtime, "-m", ModuleName, "--version")
	if err := probe.Run(); err == nil {
		r.status("PyInstaller detected.")
		return true
	}

	r.status("PyInstaller not detected, trying to install...")
	install := exec.CommandContext(ctx, runtime, "-m", "pip", "install", "pyinstaller")
	if err := install.Run(); err != nil {
		r.status(fmt.Sprintf("Failed to install PyInstaller: %v", err))
		return false
	}

	r.status("PyInstaller was installed successfully.")
	return true
}

// BuildArgs constructs the base flag list for a job. Icon and
// version-file flags are appended later by the job, only when their
// preparation steps succeed. Destination and name flags stay last,
// matching the tool's CLI conventions.
func BuildArgs(spec types.JobSpec, name, outDir string) []string {
	var args []string
	if spec.SingleFile {
		args = append(args, "--onefile", "--clean")
	} else {
		args = append(args, "--onedir", "--clean")
	}

	if spec.ConsoleWindow {
		args = append(args, "--console")
	} else {
		args = append(args, "--windowed")
	}

	if spec.HiddenImports != "" {
		for _, mod := range strings.Split(spec.HiddenImports, ",") {
			if mod = strings.TrimSpace(mod); mod != "" {
				args = append(args, "--hidden-import="+mod)
			}
		}
	}

	if spec.ExtraOptions != "" {
		args = append(args, strings.Fields(spec.ExtraOptions)...)
	}

	args = append(args, "--distpath", outDir, "-n", name)
	return args
}

// Invoke runs `<runtime> -m PyInstaller <args...> <script>` and streams
// its combined output line-by-line to onLine. The cancelled callback is
// polled at every line; when it reports true, the child is killed and
// false is returned without reading further output. Returns true iff the
// process exits 0 and was not cancelled. Spawn and IO failures become a
// status line plus a false return.
func (r *Runner) Invoke(ctx context.Context, pythonPath string, args []string, scriptPath string, onLine func(string), cancelled func() bool) bool {
	runtime := resolveRuntime(pythonPath)

	full := append([]string{"-m", ModuleName}, args...)
	full = append(full, scriptPath)
	r.status(fmt.Sprintf("Execute Command: %s %s", runtime, strings.Join(full, " ")))

	cmd := exec.CommandContext(ctx, runtime, full...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.status(fmt.Sprintf("Exception occurred during conversion: %v", err))
		return false
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		r.status(fmt.Sprintf("Exception occurred during conversion: %v", err))
		return false
	}

	wasCancelled := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if cancelled() {
			// Kill without reading further output; the Wait below
			// reaps the child.
			wasCancelled = true
			_ = cmd.Process.Kill()
			r.status("Conversion canceled by user.")
			break
		}
		onLine(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil && !wasCancelled {
		r.status(fmt.Sprintf("Exception occurred during conversion: %v", err))
	}

	err = cmd.Wait()
	if wasCancelled {
		return false
	}
	if err != nil {
		return false
	}
	return !cancelled()
}
