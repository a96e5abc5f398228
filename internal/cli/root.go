package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	jsonLog bool
	apiURL  string
	apiKey  string
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "isolate-sandbox",
	Short: "Sandbox orchestration CLI",
	Long: `isolate-sandbox compiles and runs untrusted code inside hardened
isolate cgroup sandboxes.

It provides both a server for orchestrating sandbox slots and client
utilities for exercising its HTTP API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

		if !jsonLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}

		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")
	RootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:3000", "Base URL of the isolate-sandbox server")
	RootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("ISOLATE_SANDBOX_API_KEY"), "API key for authentication")
}
