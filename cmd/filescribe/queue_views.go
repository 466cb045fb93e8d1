package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"filescribe/internal/ipc"
)

var titleCaser = cases.Title(language.English)

func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

var jobColumns = []column{
	{Header: "ID"},
	{Header: "File", MaxWidth: 40},
	{Header: "Size", Align: alignRight},
	{Header: "Status"},
	{Header: "Progress", Align: alignRight},
	{Header: "Queued"},
}

func buildJobRows(jobs []ipc.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.FileName,
			humanize.Bytes(uint64(max(job.FileSize, 0))),
			statusLabel(string(job.Status)),
			formatProgress(job.Progress),
			humanize.RelTime(job.CreatedAt, now, "ago", "from now"),
		})
	}
	return rows
}

func formatProgress(progress float64) string {
	return fmt.Sprintf("%d%%", int(progress*100+0.5))
}

func printJobDetail(out io.Writer, job ipc.Job) {
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "File:      %s\n", job.FilePath)
	fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(max(job.FileSize, 0))))
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(string(job.Status)))
	fmt.Fprintf(out, "Progress:  %s\n", formatProgress(job.Progress))
	fmt.Fprintf(out, "Queued:    %s\n", job.CreatedAt.Local().Format(time.DateTime))
	if job.StartedAt != nil {
		fmt.Fprintf(out, "Started:   %s\n", job.StartedAt.Local().Format(time.DateTime))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "Finished:  %s\n", job.CompletedAt.Local().Format(time.DateTime))
	}
	if job.DurationSeconds > 0 {
		fmt.Fprintf(out, "Elapsed:   %s\n", (time.Duration(job.DurationSeconds * float64(time.Second))).Round(time.Second))
	}
	if job.MediaDurationMS > 0 {
		fmt.Fprintf(out, "Media:     %s\n", (time.Duration(job.MediaDurationMS) * time.Millisecond).Round(time.Second))
	}
	if len(job.Segments) > 0 {
		fmt.Fprintf(out, "Segments:  %d\n", len(job.Segments))
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.Error)
	}
	if job.Transcription != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, job.Transcription)
	}
}
