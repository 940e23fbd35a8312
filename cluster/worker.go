package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/dag"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/resilience"
	"github.com/kbukum/taskflow/task"
)

// Worker pops tasks from the queues its resource tags qualify for, runs
// them and publishes the results. It implements component.Component.
type Worker struct {
	rdb     *redis.Client
	runner  dag.Runner
	opts    WorkerOptions
	queues  []string
	results *redis.TypedStore[resultRecord]
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	processed atomic.Int64
	failed    atomic.Int64
}

var _ component.Component = (*Worker)(nil)

// NewWorker creates a Worker over an existing connection.
func NewWorker(rdb *redis.Client, runner dag.Runner, opts WorkerOptions, log *logger.Logger) *Worker {
	opts.applyDefaults()
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if log == nil {
		log = logger.Get("cluster")
	}
	return &Worker{
		rdb:     rdb,
		runner:  runner,
		opts:    opts,
		queues:  workerQueues(opts.QueuePrefix, Tags(opts.Resources)),
		results: redis.NewTypedStore[resultRecord](rdb, resultPrefix(opts.QueuePrefix)),
		log:     log.WithComponent("cluster.worker").WithFields(logger.Fields(logger.FieldWorker, opts.ID)),
	}
}

// Name returns the component name.
func (w *Worker) Name() string { return "cluster-worker:" + w.opts.ID }

// Queues returns the queues served, in priority order.
func (w *Worker) Queues() []string { return append([]string(nil), w.queues...) }

// Processed returns how many tasks the worker completed and how many failed.
func (w *Worker) Processed() (completed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// Start launches the polling loops.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.rdb.Ping(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running = true
	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(loopCtx)
	}
	w.log.Info("Cluster worker started", logger.Fields(
		"resources", Tags(w.opts.Resources),
		"concurrency", w.opts.Concurrency,
	))
	return nil
}

// Stop ends the polling loops and waits for in-flight tasks, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		completed, failed := w.Processed()
		w.log.Info("Cluster worker stopped", logger.Fields("completed", completed, "failed", failed))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cluster worker stop: %w", ctx.Err())
	}
}

// Health reports whether the worker is polling and Redis answers.
func (w *Worker) Health(ctx context.Context) component.Health {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return component.Health{Name: w.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	if err := w.rdb.Ping(ctx); err != nil {
		return component.Health{Name: w.Name(), Status: component.StatusDegraded, Message: err.Error()}
	}
	return component.Health{Name: w.Name(), Status: component.StatusHealthy}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	failures := 0
	for {
		queue, raw, err := w.rdb.Pop(ctx, w.opts.PollTimeout, w.queues...)
		if ctx.Err() != nil {
			if err == nil {
				// Popped while stopping: hand the task back.
				_ = w.rdb.Push(context.Background(), queue, raw)
			}
			return
		}
		if err != nil {
			if !redis.IsNil(err) {
				failures++
				delay := pollBackoff.Delay(failures)
				w.log.Warn("Polling queues failed", logger.Fields(
					logger.FieldError, err.Error(),
					"retry_in", delay.String(),
				))
				if resilience.Sleep(ctx, delay) != nil {
					return
				}
			}
			continue
		}
		failures = 0
		w.handle(context.WithoutCancel(ctx), queue, raw)
	}
}

func (w *Worker) handle(ctx context.Context, queue, raw string) {
	var msg taskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		w.log.Error("Dropping malformed task", logger.Fields(logger.FieldQueue, queue, logger.FieldError, err.Error()))
		return
	}
	start := time.Now()
	out, err := w.execute(ctx, msg)

	rec := &resultRecord{Key: msg.Key, NodeID: msg.NodeID, Outputs: out, Worker: w.opts.ID}
	fields := logger.Fields(
		logger.FieldNodeID, msg.NodeID,
		logger.FieldQueue, queue,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if err != nil {
		rec.Outputs, rec.Error = nil, errors.ToPayload(err)
		w.failed.Add(1)
		w.log.Warn("Task failed", logger.MergeWithError(fields, err))
	} else {
		w.processed.Add(1)
		w.log.Debug("Task completed", fields)
	}

	// Publishing outlives a stop request so the client is never left waiting.
	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	retry := resilience.DefaultBackoff()
	retry.OnRetry = func(attempt int, err error, _ time.Duration) {
		w.log.Debug("Retrying result publish", logger.MergeWithError(logger.Fields(
			logger.FieldNodeID, msg.NodeID, "attempt", attempt,
		), err))
	}
	if err := resilience.Do(pubCtx, retry, func(ctx context.Context) error {
		return w.results.Save(ctx, msg.Key, rec, w.opts.ResultTTL)
	}); err != nil {
		w.log.Error("Storing result failed", logger.MergeWithError(fields, err))
	}
	if err := resilience.Do(pubCtx, retry, func(ctx context.Context) error {
		return w.rdb.Push(ctx, doneKey(w.opts.QueuePrefix, msg.Client), msg.Key)
	}); err != nil {
		w.log.Error("Notifying client failed", logger.MergeWithError(fields, err))
	}
}

func (w *Worker) execute(ctx context.Context, msg taskMessage) (task.Outputs, error) {
	upstream := make([]task.Outputs, len(msg.Deps))
	for i, key := range msg.Deps {
		dep, err := w.results.Load(ctx, key)
		if err != nil {
			return nil, errors.ConnectionFailed("cluster", err)
		}
		if dep == nil {
			return nil, errors.InternalConsistency("result %q of a source of node %q is missing", key, msg.NodeID)
		}
		if dep.Error != nil {
			return nil, errors.FromPayload(dep.Error)
		}
		upstream[i] = dep.Outputs
		if upstream[i] == nil {
			upstream[i] = task.Outputs{}
		}
	}
	return w.runner.Run(ctx, msg.Record, upstream...)
}
