// Package command runs external tools (ffmpeg, ffprobe, yt-dlp, whisper) and
// reports their failures with the captured output attached.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Output captures what a finished command wrote.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one external command to completion.
// Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args, killing the process if ctx is cancelled.
// A non-zero exit is returned as *Error.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	// #nosec G204 - binary paths come from configuration, not request input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return out, nil
	}

	// Check if context was cancelled
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}

	out.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	}

	return out, &Error{
		Name:     name,
		Args:     args,
		ExitCode: out.ExitCode,
		Stderr:   out.Stderr,
		Err:      err,
	}
}

// Error represents a failed external command, including its stderr output.
type Error struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (exit %d): %v\nargs: %v\nstderr: %s",
		e.Name, e.ExitCode, e.Err, e.Args, tail(e.Stderr, 2000))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// tail keeps the last n bytes of s; tools like ffmpeg print the cause last.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Verify interface implementation at compile time.
var _ Runner = (*ExecRunner)(nil)
