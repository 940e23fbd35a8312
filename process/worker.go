package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// maxFrameSize bounds a single stdout frame of a worker.
const maxFrameSize = 64 << 20

// Worker is a long-lived subprocess speaking a line protocol: one request
// frame written to stdin, one response frame read from stdout.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	grace  time.Duration
	done   chan struct{}

	mu      sync.Mutex
	waitErr error
	closed  bool
}

// Start launches the worker process. The context bounds the whole lifetime
// of the process; Close ends it gracefully.
func Start(ctx context.Context, cmd Command) (*Worker, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	c := newCmd(ctx, cmd)
	if cmd.Stderr != nil {
		c.Stderr = cmd.Stderr
	}

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}

	w := &Worker{
		cmd:    c,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64<<10),
		grace:  cmd.gracePeriod(),
		done:   make(chan struct{}),
	}
	go func() {
		err := c.Wait()
		w.mu.Lock()
		w.waitErr = err
		w.mu.Unlock()
		close(w.done)
	}()
	return w, nil
}

// Pid returns the worker's process id.
func (w *Worker) Pid() int { return w.cmd.Process.Pid }

// Exchange writes one frame and reads the response frame. Frames must not
// contain newlines. Exchange is not safe for concurrent use.
func (w *Worker) Exchange(frame []byte) ([]byte, error) {
	if _, err := w.stdin.Write(append(frame, '\n')); err != nil {
		return nil, fmt.Errorf("process: write frame: %w", err)
	}
	var line []byte
	for {
		chunk, isPrefix, err := w.stdout.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("process: read frame: %w", w.exitCause(err))
		}
		line = append(line, chunk...)
		if len(line) > maxFrameSize {
			return nil, fmt.Errorf("process: frame exceeds %d bytes", maxFrameSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// exitCause prefers the process exit status over a bare EOF.
func (w *Worker) exitCause(err error) error {
	select {
	case <-w.done:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.waitErr != nil {
			return fmt.Errorf("worker exited: %w", w.waitErr)
		}
		return fmt.Errorf("worker exited: %w", err)
	case <-time.After(100 * time.Millisecond):
		return err
	}
}

// Exited reports whether the process has terminated.
func (w *Worker) Exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Close closes stdin, which asks the worker to exit, then escalates to
// SIGTERM and SIGKILL on the process group after each grace period.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	_ = w.stdin.Close()
	for _, sig := range []syscall.Signal{0, syscall.SIGTERM, syscall.SIGKILL} {
		if sig != 0 {
			_ = syscall.Kill(-w.cmd.Process.Pid, sig)
		}
		select {
		case <-w.done:
			return nil
		case <-time.After(w.grace):
		}
	}
	<-w.done
	return nil
}
