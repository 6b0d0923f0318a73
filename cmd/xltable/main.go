// Package main provides the CLI entry point for xltable.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ukaji3/xltable-go/internal/config"
	"github.com/ukaji3/xltable-go/internal/logging"
	"github.com/ukaji3/xltable-go/pkg/xltable"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	xltable.Version = version

	rootCmd := &cobra.Command{
		Use:   "xltable",
		Short: "Extract rows of a named Excel table as typed records",
		Long: `xltable locates a named table in an .xlsx workbook, maps its columns
to typed fields and writes one record per data row.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(versionString() + "\n")

	rootCmd.AddCommand(newExtractCmd(), newTablesCmd(), newServeCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("xltable %s\ncommit: %s\nbuilt: %s", version, commit, date)
}

// loadConfig loads .env and environment settings without validating them,
// so that flags can be applied first.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}
	return config.Read()
}

// setupLogging validates cfg and configures the default logger.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return logging.Setup(cfg.Logging.Level, cfg.Logging.Format), nil
}
