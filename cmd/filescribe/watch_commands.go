package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"filescribe/internal/ipc"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage watch folders",
	}
	watchCmd.AddCommand(newWatchAddCommand(ctx))
	watchCmd.AddCommand(newWatchRemoveCommand(ctx))
	watchCmd.AddCommand(newWatchToggleCommand(ctx, "enable", true))
	watchCmd.AddCommand(newWatchToggleCommand(ctx, "disable", false))
	watchCmd.AddCommand(newWatchSetCommand(ctx))
	watchCmd.AddCommand(newWatchListCommand(ctx))
	watchCmd.AddCommand(newWatchStatusCommand(ctx))
	return watchCmd
}

func newWatchAddCommand(ctx *commandContext) *cobra.Command {
	var recursive bool
	var manual bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Watch a directory for new media files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			req := ipc.WatchAddRequest{Path: path, Recursive: recursive}
			if cmd.Flags().Changed("manual") {
				auto := !manual
				req.AutoProcess = &auto
			}
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.WatchAdd(rpcCtx, req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching %s as %s\n", resp.Folder.Path, resp.Folder.ID)
				fmt.Fprintf(out, "Recursive: %s, auto-process: %s\n", yesNo(resp.Folder.Recursive), yesNo(resp.Folder.AutoProcess))
				if resp.Status.LastError != nil {
					fmt.Fprintf(out, "Warning: %s\n", *resp.Status.LastError)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subdirectories")
	cmd.Flags().BoolVar(&manual, "manual", false, "Queue detected files without starting processing")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newWatchRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <folder-id>",
		Short: "Stop watching a folder and forget it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				if _, err := client.WatchRemove(rpcCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed watch folder %s\n", args[0])
				return nil
			})
		},
	}
}

func newWatchToggleCommand(ctx *commandContext, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <folder-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a watch folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.WatchUpdate(rpcCtx, ipc.WatchUpdateRequest{ID: args[0], Enabled: &enabled})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watch folder %s %sd\n", resp.Folder.ID, verb)
				return nil
			})
		},
	}
}

func newWatchSetCommand(ctx *commandContext) *cobra.Command {
	var path string
	var recursive bool
	var autoProcess bool
	cmd := &cobra.Command{
		Use:   "set <folder-id>",
		Short: "Change a watch folder's path or options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.WatchUpdateRequest{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("path") {
				abs, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", path, err)
				}
				req.Path = &abs
			}
			if flags.Changed("recursive") {
				req.Recursive = &recursive
			}
			if flags.Changed("auto-process") {
				req.AutoProcess = &autoProcess
			}
			if req.Path == nil && req.Recursive == nil && req.AutoProcess == nil {
				return fmt.Errorf("nothing to change; pass --path, --recursive or --auto-process")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.WatchUpdate(rpcCtx, req)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(folderColumns, buildFolderRows([]ipc.FolderConfig{resp.Folder}, nil)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "New directory to watch")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Include subdirectories")
	cmd.Flags().BoolVar(&autoProcess, "auto-process", true, "Start processing when files are detected")
	return cmd
}

func newWatchListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watch folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				folders, err := client.WatchList(rpcCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, folders.Folders)
				}
				if len(folders.Folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watch folders configured")
					return nil
				}
				statuses, err := client.WatchStatus(rpcCtx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(folderColumns, buildFolderRows(folders.Folders, statuses.Statuses)))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newWatchStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live subscription state for each folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.WatchStatus(rpcCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Statuses)
				}
				out := cmd.OutOrStdout()
				if len(resp.Statuses) == 0 {
					fmt.Fprintln(out, "No watch folders configured")
					return nil
				}
				colorize := shouldColorize(out)
				for _, status := range resp.Statuses {
					kind := statusOK
					message := fmt.Sprintf("watching, %d file(s) detected", status.FilesDetected)
					switch {
					case status.LastError != nil:
						kind = statusError
						message = *status.LastError
					case !status.IsWatching:
						kind = statusWarn
						message = "not watching"
					}
					fmt.Fprintln(out, renderStatusLine(status.Path, kind, message, colorize))
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

var folderColumns = []column{
	{Header: "ID"},
	{Header: "Path", MaxWidth: 50},
	{Header: "Enabled"},
	{Header: "Recursive"},
	{Header: "Auto"},
	{Header: "Watching"},
	{Header: "Detected", Align: alignRight},
}

func buildFolderRows(folders []ipc.FolderConfig, statuses []ipc.FolderStatus) [][]string {
	byID := make(map[string]ipc.FolderStatus, len(statuses))
	for _, status := range statuses {
		byID[status.FolderID] = status
	}
	rows := make([][]string, 0, len(folders))
	for _, folder := range folders {
		watching, detected := "-", "-"
		if status, ok := byID[folder.ID]; ok {
			watching = yesNo(status.IsWatching)
			detected = fmt.Sprintf("%d", status.FilesDetected)
		}
		rows = append(rows, []string{
			folder.ID,
			folder.Path,
			yesNo(folder.Enabled),
			yesNo(folder.Recursive),
			yesNo(folder.AutoProcess),
			watching,
			detected,
		})
	}
	return rows
}
