package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gavel/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the gaveld process",
	}

	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))

	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch gaveld if it is not already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				client.Close()
				fmt.Fprintln(out, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			launch := exec.Command(exe, daemonArgs(ctx)...)
			launch.Stdout = nil
			launch.Stderr = nil
			if err := launch.Start(); err != nil {
				return fmt.Errorf("launch %s: %w", exe, err)
			}
			if err := launch.Process.Release(); err != nil {
				return fmt.Errorf("detach daemon process: %w", err)
			}

			fmt.Fprintln(out, "Daemon not running, launching...")
			if waitForSocket(ctx.socketPath(), 10*time.Second) {
				fmt.Fprintln(out, "Daemon started")
				return nil
			}
			return fmt.Errorf("daemon did not become ready within 10s; check gaveld logs")
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running gaveld process",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			status, err := client.Status()
			client.Close()
			if err != nil {
				return fmt.Errorf("query daemon status: %w", err)
			}
			pid := status.Status.PID
			if pid <= 0 {
				return fmt.Errorf("daemon did not report a pid")
			}
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal daemon process %d: %w", pid, err)
			}
			fmt.Fprintf(out, "Stopping daemon process (pid %d)...\n", pid)
			if !waitForSocketGone(ctx.socketPath(), 10*time.Second) {
				return fmt.Errorf("daemon did not exit within 10s")
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				colorize := shouldColorize(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Process", statusError, "not running", colorize))
				return nil
			}
			defer client.Close()
			resp, err := client.Status()
			if err != nil {
				return err
			}
			printDaemonStatus(cmd, resp.Status)
			return nil
		},
	}
}

// daemonExecutable finds gaveld next to the gavel binary, falling back to PATH.
func daemonExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "gaveld")
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	exe, err := exec.LookPath("gaveld")
	if err != nil {
		return "", fmt.Errorf("locate gaveld: %w", err)
	}
	return exe, nil
}

func daemonArgs(ctx *commandContext) []string {
	if ctx.configFlag == nil {
		return nil
	}
	if path := strings.TrimSpace(*ctx.configFlag); path != "" {
		return []string{"--config", path}
	}
	return nil
}

func waitForSocket(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client, err := ipc.Dial(path); err == nil {
			client.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func waitForSocketGone(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(path)
		if err != nil {
			return true
		}
		client.Close()
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
