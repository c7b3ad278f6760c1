// Package cli provides the command-line interface for Exeforge
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbosity string
	logFile   string
	version   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "exeforge",
	Short: "Turn Python scripts into standalone executables",
	Long: `🔨 Exeforge - Batch conversion of Python scripts to executables

Exeforge drives PyInstaller to package Python scripts into standalone
executables, with icon conversion, Windows version resources, and
concurrent batch builds.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🔨 Exeforge v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "batch config file (default: exeforge.config.json)")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("exeforge.config")
		viper.SetConfigType("json")
	}

	viper.SetEnvPrefix("EXEFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// getConfigPath resolves the batch config path from the flag or default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "exeforge.config.json"
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("🔨 %s %s\n", color.GreenString("[Exeforge]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "🔨 %s %s\n", color.RedString("[Exeforge]"), message)
}

func printInfo(message string) {
	fmt.Printf("🔨 %s %s\n", color.CyanString("[Exeforge]"), message)
}

func printWarning(message string) {
	fmt.Printf("🔨 %s %s\n", color.YellowString("[Exeforge]"), message)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Exeforge",
		Long:  `Print the version number of Exeforge`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🔨 Exeforge v%s\n", version)
		},
	}
}
