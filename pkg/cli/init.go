package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exeforge/exeforge/pkg/config"
	"github.com/exeforge/exeforge/pkg/types"
)

func newInitCmd() *cobra.Command {
	var force bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "init [script.py...]",
		Short: "Create a batch configuration file",
		Long: `Create a batch configuration file in the current directory.

Scripts given as arguments become jobs in the new config; with no
arguments a single example job is written for you to edit.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args, outputDir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "default destination directory for all jobs")

	return cmd
}

func runInit(scripts []string, outputDir string, force bool) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	cfg := &config.BatchConfig{
		Version: config.CurrentVersion,
		Defaults: config.Defaults{
			OutputDir: outputDir,
		},
	}

	if len(scripts) == 0 {
		cfg.Jobs = []types.JobSpec{
			{ScriptPath: "main.py", SingleFile: true, ConsoleWindow: true},
		}
		printInfo("No scripts given, writing an example job")
	} else {
		for _, script := range scripts {
			cfg.Jobs = append(cfg.Jobs, types.JobSpec{
				ScriptPath:    script,
				SingleFile:    true,
				ConsoleWindow: true,
			})
		}
	}

	if err := config.NewManager().SaveConfig(cfg, configPath); err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Created %s with %d job(s)", configPath, len(cfg.Jobs)))
	printInfo("Run 'exeforge build --batch " + configPath + "' to convert")
	return nil
}
