package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeStub installs a fake executable into dir.
func writeStub(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestCompressNoToolAvailable(t *testing.T) {
	binDir := t.TempDir()
	t.Setenv("PATH", binDir)

	runner := NewRunner()
	result := <-runner.Compress(context.Background(), t.TempDir())
	if !errors.Is(result.Err, ErrToolUnavailable) {
		t.Errorf("result.Err = %v, want ErrToolUnavailable", result.Err)
	}
}

func TestCompressPrimaryTool(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, binDir, "zip", `: > "$2"`)
	t.Setenv("PATH", binDir)

	workDir := t.TempDir()
	runner := NewRunner()
	result := <-runner.Compress(context.Background(), workDir)
	if result.Err != nil {
		t.Fatalf("result.Err = %v", result.Err)
	}
	if !strings.HasPrefix(result.Filename, "archive-") || !strings.HasSuffix(result.Filename, ".zip") {
		t.Errorf("Filename = %q, want archive-<ts>.zip", result.Filename)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
}

func TestCompressFallbackToTar(t *testing.T) {
	binDir := t.TempDir()
	// No zip at all; tar present and succeeding.
	writeStub(t, binDir, "tar", `: > "$2"`)
	t.Setenv("PATH", binDir)

	workDir := t.TempDir()
	runner := NewRunner()
	result := <-runner.Compress(context.Background(), workDir)
	if result.Err != nil {
		t.Fatalf("result.Err = %v", result.Err)
	}
	if !strings.HasSuffix(result.Filename, ".tar.gz") {
		t.Errorf("Filename = %q, want archive-<ts>.tar.gz", result.Filename)
	}
}

func TestCompressToolFailureIsNotFallback(t *testing.T) {
	binDir := t.TempDir()
	// zip exists but fails; the chain must not advance to tar, since
	// only a missing binary triggers the fallback.
	writeStub(t, binDir, "zip", `exit 1`)
	writeStub(t, binDir, "tar", `: > "$2"`)
	t.Setenv("PATH", binDir)

	runner := NewRunner()
	result := <-runner.Compress(context.Background(), t.TempDir())
	if result.Err == nil {
		t.Fatal("expected error from failing zip")
	}
	if errors.Is(result.Err, ErrToolUnavailable) {
		t.Errorf("result.Err = %v, want a zip failure, not ErrToolUnavailable", result.Err)
	}
}

func TestAnalyze(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, binDir, "file", `echo "ASCII text"`)
	t.Setenv("PATH", binDir)

	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(target, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner()
	result, err := runner.Analyze(context.Background(), target)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if result.Type != "ASCII text" {
		t.Errorf("Type = %q", result.Type)
	}
	if result.Filename != "doc.txt" || result.Size != 5 {
		t.Errorf("result = %+v", result)
	}
	if result.Modified.IsZero() {
		t.Error("Modified is zero")
	}
}

func TestAnalyzeCaches(t *testing.T) {
	binDir := t.TempDir()
	// The stub appends to a counter file on each invocation.
	counter := filepath.Join(t.TempDir(), "count")
	writeStub(t, binDir, "file", `echo x >> `+counter+`; echo "data"`)
	t.Setenv("PATH", binDir)

	dir := t.TempDir()
	target := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(target, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner()
	for i := 0; i < 3; i++ {
		if _, err := runner.Analyze(context.Background(), target); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "x"); got != 1 {
		t.Errorf("tool invoked %d times, want 1 (cached)", got)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	runner := NewRunner()
	if _, err := runner.Analyze(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Analyze() of missing file should fail")
	}
}

func TestCompressContext(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, binDir, "zip", `while :; do :; done`)
	t.Setenv("PATH", binDir)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	runner := NewRunner()
	result := <-runner.Compress(ctx, t.TempDir())
	if result.Err == nil {
		t.Error("expected error after context timeout")
	}
}
