package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exeforge/exeforge/pkg/config"
	"github.com/exeforge/exeforge/pkg/events"
	"github.com/exeforge/exeforge/pkg/history"
	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/notifier"
	"github.com/exeforge/exeforge/pkg/pool"
	"github.com/exeforge/exeforge/pkg/process"
	"github.com/exeforge/exeforge/pkg/types"
)

// buildFlags mirrors the per-job options; when scripts are given on the
// command line every script shares them.
type buildFlags struct {
	name          string
	outputDir     string
	oneDir        bool
	windowed      bool
	iconPath      string
	fileVersion   string
	copyright     string
	hiddenImports string
	extraOptions  string
	pythonPath    string
	batchFile     string
	notify        bool
}

func newBuildCmd() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [script.py...]",
		Short: "Convert Python scripts to executables",
		Long: `Convert one or more Python scripts to standalone executables.

Scripts can be given as arguments, or read from a batch config file
with --batch. All conversions in a batch run concurrently.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := resolveSpecs(args, &flags)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), specs, flags.notify)
		},
	}

	addJobFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.batchFile, "batch", "b", "", "batch config file (JSON or YAML)")
	cmd.Flags().BoolVar(&flags.notify, "notify", false, "send a desktop notification per finished job")

	return cmd
}

func addJobFlags(cmd *cobra.Command, flags *buildFlags) {
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "output executable name (single script only)")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "destination directory (default: script directory)")
	cmd.Flags().BoolVar(&flags.oneDir, "onedir", false, "produce a directory bundle instead of a single file")
	cmd.Flags().BoolVarP(&flags.windowed, "windowed", "w", false, "hide the console window")
	cmd.Flags().StringVar(&flags.iconPath, "icon", "", "icon file (.ico, or .png to convert)")
	cmd.Flags().StringVar(&flags.fileVersion, "file-version", "", "version resource (e.g. 1.2.3.4)")
	cmd.Flags().StringVar(&flags.copyright, "copyright", "", "copyright string for the version resource")
	cmd.Flags().StringVar(&flags.hiddenImports, "hidden-imports", "", "comma-separated hidden imports")
	cmd.Flags().StringVar(&flags.extraOptions, "extra-options", "", "extra PyInstaller options, space separated")
	cmd.Flags().StringVar(&flags.pythonPath, "python", "", "Python interpreter to use (default: python)")
}

// resolveSpecs turns CLI arguments or a batch file into job specs.
func resolveSpecs(args []string, flags *buildFlags) ([]types.JobSpec, error) {
	if flags.batchFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--batch cannot be combined with script arguments")
		}
		cfg, err := config.NewManager().LoadConfig(flags.batchFile)
		if err != nil {
			return nil, err
		}
		return cfg.Jobs, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("no scripts given: pass script paths or --batch")
	}
	if flags.name != "" && len(args) > 1 {
		return nil, fmt.Errorf("--name only applies to a single script")
	}

	pythonPath := flags.pythonPath
	if pythonPath == "" {
		pythonPath = viper.GetString("python")
	}

	specs := make([]types.JobSpec, 0, len(args))
	for _, script := range args {
		spec := types.JobSpec{
			ScriptPath:    script,
			SingleFile:    !flags.oneDir,
			ConsoleWindow: !flags.windowed,
			OutputDir:     flags.outputDir,
			OutputName:    flags.name,
			IconPath:      flags.iconPath,
			FileVersion:   flags.fileVersion,
			Copyright:     flags.copyright,
			HiddenImports: flags.hiddenImports,
			ExtraOptions:  flags.extraOptions,
			PythonPath:    pythonPath,
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func runBuild(ctx context.Context, specs []types.JobSpec, notify bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.CreateLogger(logFile, verbosity)

	channelSink := events.NewChannelSink(256)
	sink := events.NewMultiSink(channelSink)
	if notify {
		sink.Add(notifier.New(notifier.Config{Enabled: true}, log))
	}

	printInfo(fmt.Sprintf("Starting Exeforge v%s", version))
	printInfo(fmt.Sprintf("Converting %d script(s)", len(specs)))

	jobs := pool.New(log, sink)
	batch := jobs.Submit(ctx, specs)

	display := newPresenter(os.Stdout, jobDisplayNames(batch))
	go display.Run(channelSink.Events())

	signals := process.NewManager(log)
	signals.RegisterCancelHandler(batch.CancelAll)
	signals.Start(ctx)
	defer signals.Stop()

	// Cancelled jobs still reach a terminal state, so the batch always
	// completes. Close only after the last send; the presenter then
	// drains whatever the sink kept and exits on the closed channel,
	// even if backpressure dropped the batch-done event.
	<-batch.Done()
	channelSink.Close()
	<-display.Done()

	recordHistory(log, batch)

	// The batch is the authority on outcomes; the presenter's counts
	// are display-only and lossy under backpressure.
	_, failed, cancelled := batch.Summary()
	if failed > 0 || cancelled > 0 {
		return fmt.Errorf("%d job(s) did not succeed", failed+cancelled)
	}
	return nil
}

// jobDisplayNames maps job IDs to artifact names for console prefixes.
func jobDisplayNames(batch *pool.Batch) map[string]string {
	names := make(map[string]string)
	for _, job := range batch.Jobs() {
		spec := job.Spec()
		names[job.ID()] = spec.EffectiveName()
	}
	return names
}

// recordHistory persists every job's outcome for the status command.
func recordHistory(log logger.Logger, batch *pool.Batch) {
	hist := history.NewManager(".", log)
	for _, job := range batch.Jobs() {
		spec := job.Spec()
		if _, err := hist.Record(spec.EffectiveName(), spec, job.State(), job.Result()); err != nil {
			log.Debug("Failed to record conversion history",
				logger.WithField("job", spec.EffectiveName()),
				logger.WithField("error", err))
		}
	}
}
