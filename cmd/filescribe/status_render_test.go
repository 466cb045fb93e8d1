package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Recognizer", statusError, "binary missing", false)
	if !strings.Contains(line, "Recognizer:") || !strings.Contains(line, "[ERROR] binary missing") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Recognizer", statusOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected green line, got %q", colored)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":    statusOK,
		" WARN": statusWarn,
		"error": statusError,
		"info":  statusInfo,
		"":      statusInfo,
	}
	for input, want := range cases {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestQueueCountRowsFollowLifecycleOrder(t *testing.T) {
	rows := queueCountRows(map[string]int{"failed": 2, "queued": 3, "completed": 0, "processing": 1})
	var got []string
	for _, row := range rows {
		got = append(got, row[0]+"="+row[1])
	}
	want := "Queued=3 Processing=1 Failed=2"
	if strings.Join(got, " ") != want {
		t.Fatalf("rows = %v, want %s", got, want)
	}
}

func TestRenderTableWrapsWideColumns(t *testing.T) {
	out := renderTable([]column{{Header: "ID"}, {Header: "File", MaxWidth: 10}}, [][]string{{"job_1", "a-very-long-file-name.mp3"}})
	if !strings.Contains(out, "job_1") || !strings.Contains(out, "ID") {
		t.Fatalf("table missing content:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("table should end with a newline")
	}
}
