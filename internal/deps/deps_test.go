package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Severity() != "ok" {
		t.Fatalf("expected ok severity, got %s", results[0].Severity())
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[1].Severity() != "error" {
		t.Fatalf("expected error severity, got %s", results[1].Severity())
	}

	if results[2].Detail != "command not configured" || results[2].Severity() != "warn" {
		t.Fatalf("unexpected unset result %#v", results[2])
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got.Severity != "info" {
		t.Fatalf("expected info for empty input, got %+v", got)
	}

	all := Summarize([]Status{{Available: true}, {Available: true}})
	if all.Severity != "ok" || all.Detail != "2/2 available" {
		t.Fatalf("unexpected summary %+v", all)
	}

	mixed := Summarize([]Status{{Available: true}, {Optional: true}, {}})
	if mixed.Severity != "error" || mixed.MissingRequired != 1 || mixed.MissingOptional != 1 {
		t.Fatalf("unexpected summary %+v", mixed)
	}
	if mixed.Detail != "1/3 available (missing: 1 required, 1 optional)" {
		t.Fatalf("unexpected detail %q", mixed.Detail)
	}

	optional := Summarize([]Status{{Available: true}, {Optional: true}})
	if optional.Severity != "warn" {
		t.Fatalf("expected warn, got %+v", optional)
	}
}
