package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/exeforge/exeforge/pkg/history"
	"github.com/exeforge/exeforge/pkg/logger"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the outcome of past conversions",
		Long:  `Display the last conversion result for every job recorded in this directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove recorded conversion history",
		Long:  `Delete the conversion records kept under the local .exeforge directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean()
		},
	}
}

func runStatus() error {
	hist := history.NewManager(".", logger.CreateLogger(logFile, verbosity))

	records, err := hist.List()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(records) == 0 {
		printInfo("No conversions recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tARTIFACT\tSIZE\tWHEN\tRUNS\tFAILURES")
	for _, record := range records {
		size := "-"
		if record.SizeMB > 0 {
			size = fmt.Sprintf("%d MB", record.SizeMB)
		}
		artifact := record.ArtifactPath
		if artifact == "" {
			artifact = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			record.Name, record.State, artifact, size,
			record.FinishedAt.Format(time.RFC3339),
			record.Conversions, record.Failures)
	}
	return w.Flush()
}

func runClean() error {
	hist := history.NewManager(".", logger.CreateLogger(logFile, verbosity))

	records, err := hist.List()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	for _, record := range records {
		if err := hist.Remove(record.Name); err != nil {
			return err
		}
	}

	printSuccess(fmt.Sprintf("Removed %d record(s)", len(records)))
	return nil
}
