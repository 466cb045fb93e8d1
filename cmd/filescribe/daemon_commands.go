package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"filescribe/internal/daemonctl"
	"filescribe/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the filescribe daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx, startDiagnostic), 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the filescribe daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the filescribe daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.socketPath(), ctx.configValue(), exe,
				daemonLaunchOptions(ctx, restartDiagnostic), 10*time.Second, 10*time.Second)
			if err != nil {
				return err
			}
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	addJSONFlag(statusCmd, &statusJSON)

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	printSection(out, "Daemon", colorize)
	if snap.Daemon == nil {
		fmt.Fprintln(out, renderStatusLine("Filescribe", statusWarn, "Not running (run `filescribe start`)", colorize))
	} else {
		d := snap.Daemon
		fmt.Fprintln(out, renderStatusLine("Filescribe", statusOK, "Running (pid "+strconv.Itoa(d.PID)+")", colorize))
		if !d.StartedAt.IsZero() {
			fmt.Fprintln(out, renderStatusLine("Uptime", statusInfo, time.Since(d.StartedAt).Round(time.Second).String(), colorize))
		}
		worker := "Idle"
		if d.Queue.Running {
			worker = "Processing"
			if d.Queue.ProcessingJobID != "" {
				worker += " " + d.Queue.ProcessingJobID
			}
		}
		fmt.Fprintln(out, renderStatusLine("Worker", statusInfo, worker, colorize))
		for _, folder := range d.Folders {
			kind, detail := statusOK, folder.Path
			switch {
			case folder.LastError != nil:
				kind, detail = statusError, folder.Path+" ("+*folder.LastError+")"
			case !folder.IsWatching:
				kind, detail = statusWarn, folder.Path+" (inactive)"
			}
			fmt.Fprintln(out, renderStatusLine("Watch "+folder.FolderID, kind, detail, colorize))
		}
	}
	fmt.Fprintln(out)

	printSection(out, "Dependencies", colorize)
	fmt.Fprintln(out, renderStatusLine("Summary", statusKindFromSeverity(snap.DependencySummary.Severity), snap.DependencySummary.Detail, colorize))
	for _, dep := range snap.Dependencies {
		detail := dep.Command
		if !dep.Available {
			detail = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity()), detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Paths", colorize)
	for _, check := range snap.Checks {
		fmt.Fprintln(out, renderStatusLine(check.Name, statusKindFromSeverity(check.Severity()), check.Detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Queue", colorize)
	rows := queueCountRows(snap.QueueCounts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]column{{Header: "Status"}, {Header: "Count", Align: alignRight}}, rows))
}

func queueCountRows(counts map[string]int) [][]string {
	order := make(map[string]int)
	for i, status := range queue.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(counts))
	for status, count := range counts {
		if count > 0 {
			keys = append(keys, status)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	rows := make([][]string, 0, len(keys))
	for _, status := range keys {
		rows = append(rows, []string{statusLabel(status), strconv.Itoa(counts[status])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{Diagnostic: diagnostic}
	if path := ctx.configFlagValue(); path != "" {
		opts.ConfigPath = path
	}
	return opts
}
