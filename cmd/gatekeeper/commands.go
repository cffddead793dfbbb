// Package main provides the CLI entry point for the gatekeeper authorization
// gate.
//
// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder creates a command and wires it to its
// handler in handlers.go.
package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command that runs the gate as a daemon:
// policy auto-reload, periodic housekeeping, and the metrics endpoint.
func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gate daemon",
		Long: `Run the gate as a long-lived process.

The daemon will:
1. Load configuration and the policy document
2. Watch the policy file and reload it atomically on change
3. Run periodic housekeeping (challenge sweeps, mount checks, audit pruning)
4. Serve Prometheus metrics when enabled

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Run with default config
  gatekeeper serve

  # Run with debug logging
  gatekeeper serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Execute / Confirm / Validate Commands
// =============================================================================

func buildExecuteCmd() *cobra.Command {
	var (
		argsJSON string
		agent    string
		trigger  string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "execute <action>",
		Short: "Run an action through the full gate",
		Long: `Validate an action request and run it when the policy allows.

Actions that need confirmation prompt interactively; pass --yes to confirm
without a prompt. The verdict, the execution outcome, and any denial are
written to the audit trail either way.`,
		Example: `  gatekeeper execute status_overview
  gatekeeper execute create_task --args '{"title": "water the plants"}'
  gatekeeper execute git_push --args '{"repo_path": "~/repos/web"}' --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd.Context(), args[0], argsJSON, agent, trigger, yes)
		},
	}

	cmd.Flags().StringVarP(&argsJSON, "args", "a", "{}", "Action arguments as JSON")
	cmd.Flags().StringVar(&agent, "agent", "cli", "Requesting agent identity")
	cmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger source recorded in the audit trail")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm risky actions without prompting")
	return cmd
}

func buildConfirmCmd() *cobra.Command {
	var (
		agent   string
		trigger string
	)

	cmd := &cobra.Command{
		Use:   "confirm <challenge-id>",
		Short: "Confirm a pending challenge and run its action",
		Long: `Consume a confirmation challenge and execute the action it was created
for. Challenges are spent on first use and expire after the policy TTL.

Challenges live with the process that created them, so this command applies
to embedded deployments sharing gate state; one-shot CLI flows use
"execute" with its interactive prompt instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfirm(cmd.Context(), args[0], agent, trigger)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "cli", "Confirming agent identity")
	cmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger source recorded in the audit trail")
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "validate <action>",
		Short: "Dry-run validation without executing",
		Long: `Run the validation pipeline for an action request and print the verdict.

Nothing is executed, no challenge is created, and nothing is written to the
audit trail. Rate limit state is inspected but not consumed.`,
		Example: `  gatekeeper validate run_shell_command
  gatekeeper validate git_push --args '{"repo_path": "/tmp/elsewhere"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0], argsJSON)
		},
	}

	cmd.Flags().StringVarP(&argsJSON, "args", "a", "{}", "Action arguments as JSON")
	return cmd
}

// =============================================================================
// Policy Commands
// =============================================================================

func buildPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and check the policy document",
	}
	cmd.AddCommand(buildPolicyCheckCmd(), buildPolicyActionsCmd(), buildPolicyShowCmd())
	return cmd
}

func buildPolicyCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Parse the policy document and report errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyCheck()
		},
	}
}

func buildPolicyActionsCmd() *cobra.Command {
	var risk int

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List actions the policy allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyActions(risk)
		},
	}
	cmd.Flags().IntVar(&risk, "risk", -1, "Only list actions at this risk tier (0-2)")
	return cmd
}

func buildPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <action>",
		Short: "Show the policy entry for one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyShow(args[0])
		},
	}
}

// =============================================================================
// Kill Switch Commands
// =============================================================================

func buildKillSwitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "killswitch",
		Short: "Inspect and flip the kill switch",
		Long: `The kill switch gates all execution. Paused blocks until resume; killed
blocks until an explicit reset. State survives restarts and is shared by
every process pointing at the same state file.`,
	}
	cmd.AddCommand(
		buildKillSwitchStatusCmd(),
		buildKillSwitchPauseCmd(),
		buildKillSwitchResumeCmd(),
		buildKillSwitchKillCmd(),
		buildKillSwitchResetCmd(),
		buildKillSwitchScanCmd(),
	)
	return cmd
}

func buildKillSwitchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current kill switch state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchStatus()
		},
	}
}

func buildKillSwitchPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause all execution (resumable)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchSet("pause")
		},
	}
}

func buildKillSwitchResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume execution after a pause",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchSet("resume")
		},
	}
}

func buildKillSwitchKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Stop all execution until an explicit reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchSet("kill")
		},
	}
}

func buildKillSwitchResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return a killed switch to active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchSet("reset")
		},
	}
}

func buildKillSwitchScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scan <text>",
		Short:   "Scan free text for panic phrases and pause on a match",
		Example: `  gatekeeper killswitch scan "please stop everything now"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillSwitchScan(args[0])
		},
	}
}

// =============================================================================
// Guard Commands
// =============================================================================

func buildGuardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Resource guard status and emergency lockdown",
	}
	cmd.AddCommand(buildGuardStatusCmd(), buildGuardLockdownCmd())
	return cmd
}

func buildGuardStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show protected volume state and recent blocked attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardStatus()
		},
	}
}

func buildGuardLockdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lockdown",
		Short: "Force-unmount the protected volume and record a critical event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardLockdown(cmd.Context())
		},
	}
}

// =============================================================================
// Audit Commands
// =============================================================================

func buildAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
	}
	cmd.AddCommand(buildAuditRecentCmd(), buildAuditSearchCmd(), buildAuditReportCmd())
	return cmd
}

func buildAuditRecentCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditRecent(since)
		},
	}
	cmd.Flags().StringVar(&since, "since", "24h", "Look-back window (e.g. 30m, 24h, 168h)")
	return cmd
}

func buildAuditSearchCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search audit entry payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditSearch(args[0], since)
		},
	}
	cmd.Flags().StringVar(&since, "since", "168h", "Look-back window")
	return cmd
}

func buildAuditReportCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print an aggregated audit report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditReport(since)
		},
	}
	cmd.Flags().StringVar(&since, "since", "168h", "Look-back window")
	return cmd
}
