package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"confcap/internal/daemonctl"
	"confcap/internal/daemonrun"
)

// newDaemonCommand builds `confcap daemon`. Invoked without a subcommand it
// runs the daemon in the foreground, which is what daemonctl.Launch execs.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or manage the confcap daemon",
		Long: "Without a subcommand the daemon runs in the foreground until interrupted.\n" +
			"Use `daemon start` to launch it in the background.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	daemonCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the confcap daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureRunning(ctx.socketPath(), exe, daemonLaunchOptions(ctx, logLevel), 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateLaunched:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the confcap daemon process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.ShutdownAcknowledged {
				fmt.Fprintln(stdout, "Shutdown request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the confcap daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if _, err := daemonctl.StopAndTerminate(cfg, 5*time.Second); err != nil && !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			result, err := daemonctl.EnsureRunning(ctx.socketPath(), exe, daemonLaunchOptions(ctx, logLevel), 10*time.Second)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}

	daemonCmd.AddCommand(startCmd, stopCmd, restartCmd)
	return daemonCmd
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
