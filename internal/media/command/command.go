// Package command runs the external media tools (ffmpeg, ffprobe, whisperx)
// behind a small interface so stages can be tested with scripted fakes.
package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/logging"
)

// DefaultStderrLimit bounds captured stderr. ffmpeg writes progress to
// stderr for the whole run and the useful error is at the end.
const DefaultStderrLimit = 64 << 10

const diagnosticLines = 12

// Result captures one process execution.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Diagnostic returns the last lines of stderr, falling back to stdout.
func (r Result) Diagnostic() string {
	msg := strings.TrimSpace(string(r.Stderr))
	if msg == "" {
		return strings.TrimSpace(string(r.Stdout))
	}
	lines := strings.Split(msg, "\n")
	if len(lines) > diagnosticLines {
		lines = lines[len(lines)-diagnosticLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Runner executes a command and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}

// Exec runs commands via os/exec. Env entries are appended to the parent
// environment. Only the trailing StderrLimit bytes of stderr are kept; zero
// means DefaultStderrLimit.
type Exec struct {
	Env         []string
	Dir         string
	StderrLimit int
}

// Run executes one command and captures stdout, stderr, and the exit code.
func (e Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Dir = e.Dir

	limit := e.StderrLimit
	if limit <= 0 {
		limit = DefaultStderrLimit
	}
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: limit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	started := time.Now()
	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Elapsed: time.Since(started)}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Logged wraps runner so every invocation is logged at debug level, and
// failures at warn level with the diagnostic tail.
func Logged(runner Runner, logger *slog.Logger) Runner {
	logger = logging.NewComponentLogger(logger, "command")
	return RunnerFunc(func(ctx context.Context, name string, args ...string) (Result, error) {
		res, err := runner.Run(ctx, name, args...)
		attrs := []logging.Attr{
			logging.String("command", filepath.Base(name)),
			logging.Int("args", len(args)),
			logging.Elapsed(res.Elapsed),
			logging.Int("exit_code", res.ExitCode),
		}
		if err != nil && ctx.Err() == nil {
			attrs = append(attrs, logging.Error(err), logging.String("diagnostic", res.Diagnostic()))
			logger.WarnContext(ctx, "command failed", logging.Args(attrs...)...)
			return res, err
		}
		logger.DebugContext(ctx, "command finished", logging.Args(attrs...)...)
		return res, err
	})
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		return n, nil
	}
	if overflow := len(t.buf) + len(p) - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	return t.buf
}
