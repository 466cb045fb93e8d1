package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filescribe/internal/events"
	"filescribe/internal/ipc"
)

const eventsPollWait = 10 * time.Second

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var since uint64
	var follow bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print buffered daemon events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				cursor := since
				for {
					wait := 0
					if follow {
						wait = int(eventsPollWait / time.Millisecond)
					}
					reqCtx := cmd.Context()
					if reqCtx == nil {
						reqCtx = context.Background()
					}
					resp, err := client.Events(reqCtx, ipc.EventsRequest{Since: cursor, WaitMillis: wait})
					if err != nil {
						if follow && errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					}
					if !resp.Covered {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: events after %d were evicted; continuing from %d\n", cursor, resp.Next)
					}
					for _, evt := range resp.Events {
						if asJSON {
							if err := writeJSON(cmd, evt); err != nil {
								return err
							}
							continue
						}
						printEvent(out, evt)
					}
					cursor = resp.Next
					if !follow {
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func printEvent(out io.Writer, evt events.Event) {
	prefix := fmt.Sprintf("%6d %s %-26s", evt.Seq, evt.Timestamp.Local().Format(time.TimeOnly), evt.Topic)
	switch {
	case evt.Job != nil:
		line := fmt.Sprintf("%s %s %s %s", prefix, evt.Job.JobID, statusLabel(evt.Job.Status), formatProgress(evt.Job.Progress))
		if evt.Job.Error != nil {
			line += " error=" + *evt.Job.Error
		}
		fmt.Fprintln(out, line)
	case evt.File != nil:
		fmt.Fprintf(out, "%s %s %s\n", prefix, evt.File.FolderID, evt.File.FilePath)
	case evt.Folder != nil:
		state := "stopped"
		if evt.Folder.IsWatching {
			state = "watching"
		}
		if evt.Folder.LastError != nil {
			state += " error=" + strings.TrimSpace(*evt.Folder.LastError)
		}
		fmt.Fprintf(out, "%s %s %s\n", prefix, evt.Folder.FolderID, state)
	default:
		fmt.Fprintln(out, prefix)
	}
}
