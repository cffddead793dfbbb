// Package main provides the CLI entry point for the gatekeeper authorization
// gate.
//
// Gatekeeper sits between an automation front end (an assistant, a scheduler,
// a chat bot) and the actions it wants to run. Every request passes a
// deterministic validation pipeline: policy lookup, risk tiering, argument
// schema checks, rate limiting, resource guarding, and path security. Risky
// actions are parked behind confirmation challenges; everything is audited.
//
// # Basic Usage
//
// Run the gate daemon with policy auto-reload and housekeeping:
//
//	gatekeeper serve --config gatekeeper.yaml
//
// Dry-run a request against the policy:
//
//	gatekeeper validate git_push --args '{"repo_path": "~/repos/web"}'
//
// Execute through the full gate:
//
//	gatekeeper execute status_overview
//
// # Environment Variables
//
// Configuration files are environment-expanded, so secrets and machine
// specific paths can live outside the file:
//
//   - GATEKEEPER_CONFIG: Path to configuration file (default: gatekeeper.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper - deterministic authorization gate for automated actions",
		Long: `Gatekeeper validates, rate-limits, and audits every action an automation
front end asks to run. Policy lives in a YAML document; risky actions
require explicit confirmation; a kill switch stops everything.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML configuration file")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildExecuteCmd(),
		buildConfirmCmd(),
		buildValidateCmd(),
		buildPolicyCmd(),
		buildKillSwitchCmd(),
		buildGuardCmd(),
		buildAuditCmd(),
	)
	return rootCmd
}

// configPath is shared by all commands via the persistent --config flag.
var configPath string

func defaultConfigPath() string {
	if env := os.Getenv("GATEKEEPER_CONFIG"); env != "" {
		return env
	}
	return "gatekeeper.yaml"
}
