package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/exeforge/exeforge/pkg/events"
	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/notifier"
	"github.com/exeforge/exeforge/pkg/pool"
	"github.com/exeforge/exeforge/pkg/process"
	"github.com/exeforge/exeforge/pkg/types"
	"github.com/exeforge/exeforge/pkg/watcher"
)

func newWatchCmd() *cobra.Command {
	var flags buildFlags
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch [script.py...]",
		Short: "Rebuild executables when scripts change",
		Long: `Watch Python scripts and rebuild their executables on every save.

Scripts can be given as arguments or read from a batch config file with
--batch. An initial build runs first unless --skip-initial is set.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := resolveSpecs(args, &flags)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), specs, flags.notify, skipInitial)
		},
	}

	addJobFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.batchFile, "batch", "b", "", "batch config file (JSON or YAML)")
	cmd.Flags().BoolVar(&flags.notify, "notify", false, "send a desktop notification per finished job")
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first change instead of building immediately")

	return cmd
}

// watchSession rebuilds specs as their scripts change. One batch runs at a
// time per script; changes during a build queue up through the watcher's
// debounce.
type watchSession struct {
	log     logger.Logger
	notify  bool
	specs   map[string]types.JobSpec // script path -> spec
	mu      sync.Mutex
	current *pool.Batch
}

func runWatch(ctx context.Context, specs []types.JobSpec, notify, skipInitial bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.CreateLogger(logFile, verbosity)

	session := &watchSession{
		log:    log,
		notify: notify,
		specs:  make(map[string]types.JobSpec, len(specs)),
	}
	scriptPaths := make([]string, 0, len(specs))
	for _, spec := range specs {
		session.specs[spec.ScriptPath] = spec
		scriptPaths = append(scriptPaths, spec.ScriptPath)
	}

	rebuilds := make(chan string, len(specs))
	sw, err := watcher.NewScriptWatcher(scriptPaths, log)
	if err != nil {
		return err
	}
	sw.AddCallback(func(script string) {
		select {
		case rebuilds <- script:
		default:
		}
	})

	signals := process.NewManager(log)
	signals.RegisterCancelHandler(func() {
		session.cancelCurrent()
		cancel()
	})
	signals.Start(ctx)
	defer signals.Stop()

	printInfo(fmt.Sprintf("Starting Exeforge v%s in watch mode", version))
	printInfo(fmt.Sprintf("Watching %d script(s), press Ctrl-C to stop", len(specs)))

	if !skipInitial {
		session.build(ctx, specs)
	}

	if err := sw.Start(); err != nil {
		return err
	}
	defer sw.Stop()

	for {
		select {
		case <-ctx.Done():
			printInfo("Watch mode stopped")
			return nil
		case script := <-rebuilds:
			spec, ok := session.specs[script]
			if !ok {
				continue
			}
			printInfo(fmt.Sprintf("Change detected: %s", script))
			session.build(ctx, []types.JobSpec{spec})
		}
	}
}

// build runs one batch to completion, rendering its events on the console.
func (s *watchSession) build(ctx context.Context, specs []types.JobSpec) {
	if ctx.Err() != nil {
		return
	}

	channelSink := events.NewChannelSink(256)
	sink := events.NewMultiSink(channelSink)
	if s.notify {
		sink.Add(notifier.New(notifier.Config{Enabled: true}, s.log))
	}

	jobs := pool.New(s.log, sink)
	batch := jobs.Submit(ctx, specs)

	s.mu.Lock()
	s.current = batch
	s.mu.Unlock()

	display := newPresenter(os.Stdout, jobDisplayNames(batch))
	go display.Run(channelSink.Events())

	// Jobs poll for cancellation, so the batch terminates promptly even
	// when ctx is cancelled mid-build. Close only after the last send;
	// the presenter exits on the closed channel even if the batch-done
	// event was dropped under backpressure.
	<-batch.Done()
	channelSink.Close()
	<-display.Done()

	recordHistory(s.log, batch)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *watchSession) cancelCurrent() {
	s.mu.Lock()
	batch := s.current
	s.mu.Unlock()
	if batch != nil {
		batch.CancelAll()
	}
}
