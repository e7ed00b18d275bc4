package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/logging"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "assessctl",
		Short:         "Inspect and convert assessment template files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel, "text")
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newExportCmd())
	return cmd
}

// loadAliases returns the built-in header lookup, or one read from path.
func loadAliases(path string) (exchange.Lookup, error) {
	if path == "" {
		return exchange.DefaultLookup, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open aliases: %w", err)
	}
	defer f.Close()
	return exchange.LoadLookup(f)
}
