package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exeforge/exeforge/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the batch configuration file",
		Long:  `Check that the batch configuration file parses and every job is properly specified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func runValidate() error {
	configPath := getConfigPath()

	cfg, err := config.NewManager().LoadConfig(configPath)
	if err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	printSuccess(fmt.Sprintf("Configuration %s is valid", configPath))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCRIPT\tMODE\tOUTPUT")
	for _, job := range cfg.Jobs {
		mode := "onedir"
		if job.SingleFile {
			mode = "onefile"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			job.EffectiveName(), job.ScriptPath, mode, job.EffectiveOutputDir())
	}
	return w.Flush()
}
