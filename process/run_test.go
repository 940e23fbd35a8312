package process_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/taskflow/process"
)

func TestRunCapturesOutput(t *testing.T) {
	var tee bytes.Buffer
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "cat; echo oops >&2"},
		Stdin:  strings.NewReader(`{"x":1}`),
		Stderr: &tee,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Stdout) != `{"x":1}` {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	if strings.TrimSpace(string(result.Stderr)) != "oops" || strings.TrimSpace(tee.String()) != "oops" {
		t.Fatalf("expected stderr captured and teed, got %q / %q", result.Stderr, tee.String())
	}
}

func TestRunExitCode(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "exit 42"},
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 42 {
		t.Fatalf("expected exit code 42, got %d", result.ExitCode)
	}
}

func TestRunContextCancelKillsGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := process.Run(ctx, process.Command{
		Binary:      "sh",
		Args:        []string{"-c", "sleep 10 & sleep 10"},
		GracePeriod: 500 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error from context cancellation")
	}
	if result.Duration > 5*time.Second {
		t.Fatalf("process took too long to kill: %v", result.Duration)
	}
}

func TestRunEmptyBinary(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
	if _, err := process.Start(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestRunEnv(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo $TASKFLOW_TEST_VAR"},
		Env:    []string{"TASKFLOW_TEST_VAR=hello123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := strings.TrimSpace(string(result.Stdout)); out != "hello123" {
		t.Fatalf("expected 'hello123', got %q", out)
	}
}

func TestAdapterTimeout(t *testing.T) {
	a := process.NewAdapter(process.Config{Timeout: 100 * time.Millisecond, GracePeriod: 200 * time.Millisecond})
	start := time.Now()
	if _, err := a.Run(context.Background(), process.Command{Binary: "sleep", Args: []string{"10"}}); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("adapter timeout not applied")
	}
}

func TestWorkerExchange(t *testing.T) {
	// A line-echo worker: each request frame comes back upper-cased.
	w, err := process.Start(context.Background(), process.Command{
		Binary:      "sh",
		Args:        []string{"-c", "while read line; do echo \"$line\" | tr a-z A-Z; done"},
		GracePeriod: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	for _, frame := range []string{"first", "second"} {
		resp, err := w.Exchange([]byte(frame))
		if err != nil {
			t.Fatalf("Exchange failed: %v", err)
		}
		if string(resp) != strings.ToUpper(frame) {
			t.Fatalf("expected %q, got %q", strings.ToUpper(frame), resp)
		}
	}
	if w.Exited() {
		t.Fatal("worker exited early")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !w.Exited() {
		t.Fatal("expected worker to exit after Close")
	}
}

func TestWorkerExitSurfacesError(t *testing.T) {
	w, err := process.Start(context.Background(), process.Command{Binary: "sh", Args: []string{"-c", "read line; exit 3"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()
	if _, err := w.Exchange([]byte("x")); err == nil {
		t.Fatal("expected error when the worker dies")
	}
}

func TestWorkerCloseEscalates(t *testing.T) {
	adapter := process.NewAdapter(process.Config{GracePeriod: 100 * time.Millisecond})
	w, err := adapter.Start(context.Background(), process.Command{Binary: "sh", Args: []string{"-c", "trap '' TERM; sleep 30"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	start := time.Now()
	w.Close()
	if time.Since(start) > 5*time.Second {
		t.Fatal("Close did not escalate to SIGKILL")
	}
}
