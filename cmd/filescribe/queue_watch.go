package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"filescribe/internal/events"
	"filescribe/internal/ipc"
	"filescribe/internal/logging"
	"filescribe/internal/queue"
)

const (
	queueWatchPoll    = 5 * time.Second
	queueWatchBackoff = time.Second
	clearScreen       = "\x1b[H\x1b[2J"
)

func newQueueWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the queue live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				return followQueue(cmd.Context(), client, cmd.OutOrStdout(), ctx.cliLogger())
			})
		},
	}
}

// followQueue mirrors the daemon's job list from the event stream and
// re-renders on every change. It returns nil when ctx ends.
func followQueue(ctx context.Context, client *ipc.Client, out io.Writer, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mirror := queue.NewMirror(queue.ListerFunc(client.ListJobs))
	if err := resyncMirror(ctx, client, mirror); err != nil {
		return err
	}
	tty := isTerminalWriter(out)
	render := func() {
		if !tty {
			return
		}
		jobs := mirror.Jobs()
		fmt.Fprint(out, clearScreen)
		fmt.Fprintf(out, "Queue (%d jobs) at %s\n", len(jobs), time.Now().Format(time.TimeOnly))
		fmt.Fprint(out, renderTable(jobColumns, buildJobRows(jobs, time.Now())))
	}
	if tty {
		render()
	} else {
		fmt.Fprintf(out, "Following %d job(s) from event %d\n", len(mirror.Jobs()), mirror.Cursor())
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		resp, err := client.Events(ctx, ipc.EventsRequest{
			Since:      mirror.Cursor(),
			WaitMillis: int(queueWatchPoll / time.Millisecond),
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("poll events: %w", err)
		}
		if !resp.Covered {
			logger.Warn("event stream fell behind; reloading queue",
				logging.String(logging.FieldEventType, "queue_watch_resync"),
				logging.Int64("cursor", int64(mirror.Cursor())),
				logging.Int64("last_sequence", int64(resp.LastSequence)))
			if err := resyncMirror(ctx, client, mirror); err != nil {
				return err
			}
			render()
			continue
		}
		changed := false
		for _, evt := range resp.Events {
			if err := mirror.Apply(ctx, evt); err != nil {
				logger.Warn("apply event failed",
					logging.String(logging.FieldEventType, "queue_watch_apply_failed"),
					logging.Error(err))
				time.Sleep(queueWatchBackoff)
				continue
			}
			if evt.Topic != events.TopicJobUpdate || evt.Job == nil {
				continue
			}
			changed = true
			if !tty {
				fmt.Fprintf(out, "%s  %s  %s  %s\n",
					evt.Timestamp.Local().Format(time.TimeOnly),
					evt.Job.JobID,
					statusLabel(evt.Job.Status),
					formatProgress(evt.Job.Progress))
			}
		}
		if len(resp.Events) == 0 && resp.Next > mirror.Cursor() {
			mirror.SetCursor(resp.Next)
		}
		if changed {
			render()
		}
	}
}

func resyncMirror(ctx context.Context, client *ipc.Client, mirror *queue.Mirror) error {
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	status, err := client.Status(rpcCtx)
	if err != nil {
		return fmt.Errorf("query daemon status: %w", err)
	}
	if err := mirror.Sync(rpcCtx); err != nil {
		return err
	}
	mirror.SetCursor(status.LastSequence)
	return nil
}
