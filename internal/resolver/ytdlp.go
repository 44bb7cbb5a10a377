// ABOUTME: yt-dlp invocation behind a small interface
// ABOUTME: Every call is bounded by the resolver timeout and classified as a tool failure
package resolver

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/resonix-audio/resonix-go/internal/failure"
)

// Runner executes yt-dlp with args and returns trimmed stdout
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs a yt-dlp binary as a subprocess
type ExecRunner struct {
	Path    string
	Timeout time.Duration
}

// NewExecRunner creates a runner for the binary at path
func NewExecRunner(path string, timeout time.Duration) *ExecRunner {
	if path == "" {
		path = "yt-dlp"
	}
	return &ExecRunner{Path: path, Timeout: timeout}
}

// Run executes yt-dlp. Timeouts and non-zero exits are ToolFailures.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", failure.Newf(failure.ToolFailure, "yt-dlp", "timed out after %v", r.Timeout)
		}
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", failure.New(failure.ToolFailure, "yt-dlp", errors.New(msg))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// firstLine returns the first non-empty line of yt-dlp output
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// yt-dlp argument builders

func streamURLArgs(format, input string) []string {
	return []string{"--no-playlist", "-f", format, "-g", input}
}

func downloadArgs(format, out, input string) []string {
	return []string{"--no-playlist", "-f", format, "-o", out, input}
}

func extractMP3Args(out, input string) []string {
	return []string{"--no-playlist", "-x", "--audio-format", "mp3", "-o", out, input}
}

func plainURLArgs(input string) []string {
	return []string{"--no-playlist", "-g", input}
}

func titleArgs(input string) []string {
	return []string{"-e", input}
}

func searchArgs(sentinel string) []string {
	return []string{"--no-playlist", "--print", "webpage_url", sentinel}
}
