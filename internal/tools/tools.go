// Package tools wraps the external subprocess tools: archive creation
// with a two-tool fallback chain, and file type analysis.
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// ErrToolUnavailable is returned when neither compression tool can run.
var ErrToolUnavailable = errors.New("no compression tool available")

// CompressResult is the typed outcome of an archive job.
type CompressResult struct {
	Filename string
	Path     string
	Err      error
}

// AnalyzeResult describes one analyzed file.
type AnalyzeResult struct {
	Filename string    `json:"filename"`
	Type     string    `json:"type"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Runner executes subprocess tools. Analysis results are cached briefly
// since the identified type of an immutable stored file never changes.
type Runner struct {
	analyzeCache *cache.Cache
}

// NewRunner creates a tool runner.
func NewRunner() *Runner {
	return &Runner{
		analyzeCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Compress archives the contents of dir, excluding prior archives. The
// primary tool is zip; when it cannot run, tar takes over; when neither
// is available the result is ErrToolUnavailable. This fallback is the
// only automatic retry in the system.
//
// The result is delivered on the returned channel once the job finishes,
// so callers compose it sequentially or hand it to a worker.
func (t *Runner) Compress(ctx context.Context, dir string) <-chan CompressResult {
	out := make(chan CompressResult, 1)
	go func() {
		out <- t.compress(ctx, dir)
	}()
	return out
}

func (t *Runner) compress(ctx context.Context, dir string) CompressResult {
	timestamp := time.Now().UnixMilli()

	zipName := fmt.Sprintf("archive-%d.zip", timestamp)
	cmd := exec.CommandContext(ctx, "zip", "-r", zipName, ".", "-x", "*.zip")
	cmd.Dir = dir
	err := cmd.Run()
	if err == nil {
		log.Infof("Archive created: %s", zipName)
		return CompressResult{Filename: zipName, Path: filepath.Join(dir, zipName)}
	}
	if !isToolMissing(err) {
		return CompressResult{Err: fmt.Errorf("zip failed: %w", err)}
	}

	log.Warnf("zip unavailable, falling back to tar")
	tarName := fmt.Sprintf("archive-%d.tar.gz", timestamp)
	cmd = exec.CommandContext(ctx, "tar", "-czf", tarName, ".")
	cmd.Dir = dir
	err = cmd.Run()
	if err == nil {
		log.Infof("Archive created: %s", tarName)
		return CompressResult{Filename: tarName, Path: filepath.Join(dir, tarName)}
	}
	if !isToolMissing(err) {
		return CompressResult{Err: fmt.Errorf("tar failed: %w", err)}
	}

	return CompressResult{Err: ErrToolUnavailable}
}

// isToolMissing distinguishes "binary not found" from a tool that ran
// and failed. Only the former advances the fallback chain.
func isToolMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Analyze runs the file type identification tool against one path.
func (t *Runner) Analyze(ctx context.Context, path string) (AnalyzeResult, error) {
	if cached, ok := t.analyzeCache.Get(path); ok {
		return cached.(AnalyzeResult), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("failed to stat file: %w", err)
	}

	out, err := exec.CommandContext(ctx, "file", "--brief", path).Output()
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("file analysis failed: %w", err)
	}

	result := AnalyzeResult{
		Filename: filepath.Base(path),
		Type:     strings.TrimSpace(string(out)),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}
	t.analyzeCache.Set(path, result, cache.DefaultExpiration)
	return result, nil
}
