package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"scribe/internal/logging"
)

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	res, err := Exec{}.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2; exit 3")
	if err == nil {
		t.Fatal("expected non-zero exit to error")
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Diagnostic() != "err" {
		t.Fatalf("diagnostic = %q, want err", res.Diagnostic())
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestExecKeepsStderrTail(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	res, err := Exec{StderrLimit: 16}.Run(context.Background(), "sh", "-c", "printf 'progress progress progress\\nfatal: bad input' 1>&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Stderr) != 16 {
		t.Fatalf("stderr length = %d, want 16", len(res.Stderr))
	}
	if !strings.HasSuffix(string(res.Stderr), "bad input") {
		t.Fatalf("stderr tail = %q", res.Stderr)
	}
}

func TestTailBufferAcrossWrites(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	for _, chunk := range []string{"ab", "cd", "efg", "h"} {
		if _, err := tb.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := string(tb.Bytes()); got != "defgh" {
		t.Fatalf("tail = %q, want defgh", got)
	}
	tb.Write([]byte("0123456789"))
	if got := string(tb.Bytes()); got != "56789" {
		t.Fatalf("tail = %q, want 56789", got)
	}
}

func TestDiagnosticKeepsLastLines(t *testing.T) {
	var b bytes.Buffer
	for i := 0; i < 40; i++ {
		b.WriteString("frame=1 fps=2\n")
	}
	b.WriteString("Invalid data found when processing input\n")
	res := Result{Stderr: b.Bytes()}
	diag := res.Diagnostic()
	if !strings.HasSuffix(diag, "Invalid data found when processing input") {
		t.Fatalf("diagnostic = %q", diag)
	}
	if n := strings.Count(diag, "\n") + 1; n != diagnosticLines {
		t.Fatalf("diagnostic lines = %d, want %d", n, diagnosticLines)
	}
}

func TestDiagnosticFallsBackToStdout(t *testing.T) {
	res := Result{Stdout: []byte("  only stdout \n")}
	if res.Diagnostic() != "only stdout" {
		t.Fatalf("diagnostic = %q", res.Diagnostic())
	}
}

func TestLoggedPassesThrough(t *testing.T) {
	want := errors.New("exit status 1")
	inner := RunnerFunc(func(_ context.Context, name string, args ...string) (Result, error) {
		return Result{Stderr: []byte("boom"), ExitCode: 1}, want
	})
	res, err := Logged(inner, logging.NewNop()).Run(context.Background(), "/usr/bin/ffmpeg", "-i", "x")
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if res.ExitCode != 1 || res.Diagnostic() != "boom" {
		t.Fatalf("unexpected result %+v", res)
	}
}
