package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/prepctl/cmd/prepctl/commands"
	"github.com/systmms/prepctl/internal/config"
	"github.com/systmms/prepctl/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "prepctl",
		Short: "Prepare AWS accounts for service deployments",
		Long: `prepctl bootstraps the AWS side of a service deployment: database
credentials, TLS certificates, IAM roles for Kubernetes workloads, and the
Terraform remote-state backend.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			// Update config with parsed values
			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "prepctl.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		commands.NewDBCommand(cfg),
		commands.NewCertCommand(cfg),
		commands.NewIAMRoleCommand(cfg),
		commands.NewTFBackendCommand(cfg),
	)

	return rootCmd.Execute()
}
