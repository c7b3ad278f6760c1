package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/exeforge/exeforge/pkg/events"
)

// presenter renders batch events on the console. Each job line carries the
// job's display name so interleaved batch output stays readable.
type presenter struct {
	out   io.Writer
	names map[string]string
	mu    sync.Mutex
	done  chan struct{}

	succeeded int
	failed    int
	cancelled int
}

func newPresenter(out io.Writer, names map[string]string) *presenter {
	return &presenter{
		out:   out,
		names: names,
		done:  make(chan struct{}),
	}
}

// Run consumes events until the batch-complete event arrives or the
// channel closes, whichever happens first. The sink may drop events under
// backpressure, so a closed channel is treated like batch completion
// rather than waiting for an event that may never come. It is meant to
// run on its own goroutine.
func (p *presenter) Run(ch <-chan events.Event) {
	defer close(p.done)

	for event := range ch {
		switch event.Type {
		case events.TypeStatus:
			fmt.Fprintf(p.out, "🔨 %s %s\n", p.prefix(event.JobID), event.Message)

		case events.TypeProgress:
			fmt.Fprintf(p.out, "🔨 %s %s\n", p.prefix(event.JobID),
				color.CyanString("%d%%", event.Percent))

		case events.TypeFinished:
			p.mu.Lock()
			p.succeeded++
			p.mu.Unlock()
			fmt.Fprintf(p.out, "🔨 %s %s %s (%d MB)\n", p.prefix(event.JobID),
				color.GreenString("✅ done:"), event.ArtifactPath, event.SizeMB)

		case events.TypeFailed:
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()
			fmt.Fprintf(p.out, "🔨 %s %s %s\n", p.prefix(event.JobID),
				color.RedString("❌ failed:"), event.Message)

		case events.TypeCancelled:
			p.mu.Lock()
			p.cancelled++
			p.mu.Unlock()
			fmt.Fprintf(p.out, "🔨 %s %s %s\n", p.prefix(event.JobID),
				color.YellowString("🚫 cancelled:"), event.Message)

		case events.TypeBatchDone:
			p.printSummary()
			return
		}
	}

	// Channel closed without a batch-done event.
	p.printSummary()
}

// Done is closed once the batch summary has been printed.
func (p *presenter) Done() <-chan struct{} {
	return p.done
}

func (p *presenter) prefix(jobID string) string {
	if name, ok := p.names[jobID]; ok {
		return color.New(color.Bold).Sprintf("[%s]", name)
	}
	return color.New(color.Bold).Sprintf("[%s]", jobID)
}

func (p *presenter) printSummary() {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.succeeded + p.failed + p.cancelled
	fmt.Fprintf(p.out, "🔨 %s %d job(s): %s, %s, %s\n",
		color.New(color.Bold).Sprint("[Exeforge]"),
		total,
		color.GreenString("%d succeeded", p.succeeded),
		color.RedString("%d failed", p.failed),
		color.YellowString("%d cancelled", p.cancelled))
}

// Summary reports the terminal-state counts seen so far.
func (p *presenter) Summary() (succeeded, failed, cancelled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed, p.cancelled
}
