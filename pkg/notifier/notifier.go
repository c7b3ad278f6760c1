// Package notifier provides desktop notifications for build outcomes.
package notifier

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/exeforge/exeforge/pkg/events"
	"github.com/exeforge/exeforge/pkg/logger"
)

// BuildNotifier surfaces job and batch outcomes as desktop notifications.
// It implements events.Sink so it can be fanned in next to any other
// observer; status and progress events are intentionally ignored to keep
// the notification volume sane.
type BuildNotifier struct {
	enabled bool
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	return &BuildNotifier{
		enabled: config.Enabled,
		logger:  log,
	}
}

var _ events.Sink = (*BuildNotifier)(nil)

// Status is ignored; per-line output is too noisy for notifications.
func (n *BuildNotifier) Status(jobID, text string) {}

// Progress is ignored for the same reason.
func (n *BuildNotifier) Progress(jobID string, percent int) {}

// Finished notifies that a conversion produced its executable.
func (n *BuildNotifier) Finished(jobID, artifactPath string, sizeMB int64) {
	n.send("✅ Conversion Succeeded", fmt.Sprintf("%s (%d MB)", artifactPath, sizeMB))
}

// Failed notifies that a conversion failed.
func (n *BuildNotifier) Failed(jobID, message string) {
	n.send("❌ Conversion Failed", message)
}

// Cancelled notifies that a conversion was cancelled by the user.
func (n *BuildNotifier) Cancelled(jobID, message string) {
	n.send("⏹ Conversion Cancelled", message)
}

// BatchDone notifies that every job in the batch reached a terminal state.
func (n *BuildNotifier) BatchDone() {
	n.send("🔨 Exeforge", "All conversion tasks completed.")
}

func (n *BuildNotifier) send(title, message string) {
	if !n.enabled {
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil && n.logger != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}
