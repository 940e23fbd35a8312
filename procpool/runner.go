package procpool

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/process"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/validation"
)

// Options configures a pool.
type Options struct {
	// NumWorkers bounds concurrent worker processes. Defaults to the CPU count.
	NumWorkers int `mapstructure:"num_workers" validate:"gte=1"`
	// Context is "spawn" (fresh process per task) or "persistent".
	Context string `mapstructure:"context" validate:"oneof=spawn persistent"`
	// WorkerCommand is the worker executable and arguments. Defaults to the
	// current executable, which must call MaybeServe.
	WorkerCommand []string `mapstructure:"worker_command"`
	// WorkerEnv is extra KEY=VALUE environment for workers.
	WorkerEnv []string `mapstructure:"worker_env"`
	// Timeout bounds each task invocation. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	// GracePeriod is the SIGTERM to SIGKILL delay when a worker is stopped.
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
	if o.Context == "" {
		o.Context = ContextSpawn
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = 2 * time.Second
	}
}

// Validate checks the options.
func (o *Options) Validate() error {
	if err := validation.Validate(o); err != nil {
		return errors.Configuration("invalid process pool options: %v", err)
	}
	return nil
}

// Runner executes records in worker subprocesses. It implements dag.Runner
// and must be closed to stop persistent workers.
type Runner struct {
	opts    Options
	adapter *process.Adapter
	command process.Command
	log     *logger.Logger

	// persistent context only
	sem       chan struct{}
	mu        sync.Mutex
	idle      []*process.Worker
	closed    bool
	lifetime  context.Context
	terminate context.CancelFunc
}

// New creates a Runner.
func New(opts Options, log *logger.Logger) (*Runner, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("procpool")
	}

	cmd := process.Command{Env: append([]string{EnvWorker + "=" + opts.Context}, opts.WorkerEnv...)}
	if len(opts.WorkerCommand) > 0 {
		cmd.Binary, cmd.Args = opts.WorkerCommand[0], opts.WorkerCommand[1:]
	} else {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Configuration("resolve worker executable: %v", err)
		}
		cmd.Binary = exe
	}

	r := &Runner{
		opts:    opts,
		adapter: process.NewAdapter(process.Config{GracePeriod: opts.GracePeriod, Timeout: opts.Timeout}),
		command: cmd,
		log:     log,
		sem:     make(chan struct{}, opts.NumWorkers),
	}
	r.lifetime, r.terminate = context.WithCancel(context.Background())
	return r, nil
}

// Options returns the effective options.
func (r *Runner) Options() Options { return r.opts }

// Run executes one record in a worker process.
func (r *Runner) Run(ctx context.Context, record []byte, upstream ...task.Outputs) (task.Outputs, error) {
	frame, err := encodeRequest(record, upstream)
	if err != nil {
		return nil, err
	}

	var resp []byte
	if r.opts.Context == ContextPersistent {
		resp, err = r.exchange(ctx, frame)
	} else {
		resp, err = r.spawn(ctx, frame)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.TaskExecution(nodeID(record), err)
	}
	return decodeResponse(resp)
}

func (r *Runner) spawn(ctx context.Context, frame []byte) ([]byte, error) {
	cmd := r.command
	cmd.Stdin = bytes.NewReader(append(frame, '\n'))
	res, err := r.adapter.Run(ctx, cmd)
	if err != nil {
		if res != nil && len(res.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, lastLine(res.Stderr))
		}
		return nil, err
	}
	line, _, _ := bytes.Cut(res.Stdout, []byte{'\n'})
	if len(line) == 0 {
		return nil, fmt.Errorf("worker produced no response")
	}
	return line, nil
}

func (r *Runner) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	w, err := r.acquire()
	if err != nil {
		return nil, err
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	type reply struct {
		data []byte
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		data, err := w.Exchange(frame)
		ch <- reply{data, err}
	}()

	select {
	case rep := <-ch:
		if rep.err != nil {
			_ = w.Close()
			return nil, rep.err
		}
		r.release(w)
		return rep.data, nil
	case <-ctx.Done():
		// The worker is mid-request; it cannot be reused.
		_ = w.Close()
		return nil, ctx.Err()
	}
}

func (r *Runner) acquire() (*process.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, stderrors.New("process pool is closed")
	}
	for len(r.idle) > 0 {
		w := r.idle[len(r.idle)-1]
		r.idle = r.idle[:len(r.idle)-1]
		if !w.Exited() {
			return w, nil
		}
	}
	cmd := r.command
	cmd.Stderr = os.Stderr
	w, err := r.adapter.Start(r.lifetime, cmd)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Worker started", logger.Fields(logger.FieldWorker, w.Pid()))
	return w, nil
}

func (r *Runner) release(w *process.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || w.Exited() {
		_ = w.Close()
		return
	}
	r.idle = append(r.idle, w)
}

// Close stops idle workers. Safe to call more than once.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	idle := r.idle
	r.idle = nil
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range idle {
		wg.Add(1)
		go func(w *process.Worker) {
			defer wg.Done()
			_ = w.Close()
		}(w)
	}
	wg.Wait()
	r.terminate()
	if len(idle) > 0 {
		r.log.Debug("Process pool closed", logger.Fields("workers", len(idle)))
	}
	return nil
}

func nodeID(record []byte) string {
	rec, err := plan.DecodeRecord(record)
	if err != nil {
		return ""
	}
	return rec.NodeID
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return lines[len(lines)-1]
}
