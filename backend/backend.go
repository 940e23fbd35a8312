// Package backend selects and drives the runtime that evaluates an
// execution plan: inline, a goroutine pool, a pool of worker processes or
// a Redis cluster.
package backend

import (
	"context"
	"net"
	"strings"

	"github.com/kbukum/taskflow/cluster"
	"github.com/kbukum/taskflow/dag"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/procpool"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/task"
)

// Scheduler names.
const (
	SchedulerSequential = ""
	SchedulerThreads    = "multithreading"
	SchedulerProcesses  = "multiprocessing"
	SchedulerCluster    = "cluster"
)

// Backend evaluates the nodes of a plan. nodeIDs lists every node of the
// plan in topological order and outputIDs the nodes whose results are
// wanted. The returned map holds at least the outputIDs.
type Backend interface {
	Name() string
	Execute(ctx context.Context, p *plan.Plan, nodeIDs, outputIDs []string) (map[string]task.Outputs, error)
}

// Config describes which backend to use.
type Config struct {
	// Scheduler is a scheduler name or a cluster connection target
	// ("redis://host:6379/0" or "host:port").
	Scheduler string
	Options   map[string]any
	// Client is a live cluster client. It takes precedence over Scheduler
	// and is never closed by the backend.
	Client cluster.Client
	// Runner executes records in this process: inline, on threads and on
	// in-process cluster workers.
	Runner dag.Runner
	Log    *logger.Logger
}

// Select validates cfg and returns the matching backend. No work starts
// and nothing is connected before Execute.
func Select(cfg Config) (Backend, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Get("backend")
	}
	if cfg.Client != nil {
		if err := decodeOptions("cluster client", cfg.Options, &struct{}{}); err != nil {
			return nil, err
		}
		return &Cluster{Client: cfg.Client, Log: log}, nil
	}

	switch cfg.Scheduler {
	case SchedulerSequential:
		if err := decodeOptions(cfg.Scheduler, cfg.Options, &struct{}{}); err != nil {
			return nil, err
		}
		if cfg.Runner == nil {
			return nil, errors.Configuration("sequential scheduler requires a task runner")
		}
		return &Sequential{Runner: cfg.Runner, Log: log}, nil

	case SchedulerThreads:
		var opts ThreadOptions
		if err := decodeOptions(cfg.Scheduler, cfg.Options, &opts); err != nil {
			return nil, err
		}
		if cfg.Runner == nil {
			return nil, errors.Configuration("multithreading scheduler requires a task runner")
		}
		opts.applyDefaults()
		return &ThreadPool{Runner: cfg.Runner, Options: opts, Log: log}, nil

	case SchedulerProcesses:
		var opts procpool.Options
		if err := decodeOptions(cfg.Scheduler, cfg.Options, &opts); err != nil {
			return nil, err
		}
		opts.ApplyDefaults()
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		return &ProcessPool{Options: opts, Log: log}, nil
	}

	var opts cluster.Options
	if err := decodeOptions(cfg.Scheduler, cfg.Options, &opts); err != nil {
		return nil, err
	}
	if cfg.Scheduler != SchedulerCluster {
		if !isTarget(cfg.Scheduler) {
			return nil, errors.Configuration("unknown scheduler %q", cfg.Scheduler)
		}
		target, err := redis.ConfigFromTarget(cfg.Scheduler)
		if err != nil {
			return nil, errors.Configuration("invalid cluster address %q: %v", cfg.Scheduler, err)
		}
		opts.Addr, opts.Password, opts.DB = target.Addr, firstNonEmpty(target.Password, opts.Password), target.DB
	}
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.NWorkers > 0 && cfg.Runner == nil {
		return nil, errors.Configuration("n_workers requires a task runner")
	}
	return &Cluster{Options: opts, Runner: cfg.Runner, Log: log}, nil
}

// Dispatch selects the backend of cfg and executes the plan with it.
func Dispatch(ctx context.Context, cfg Config, p *plan.Plan, nodeIDs, outputIDs []string) (map[string]task.Outputs, error) {
	b, err := Select(cfg)
	if err != nil {
		return nil, err
	}
	return b.Execute(ctx, p, nodeIDs, outputIDs)
}

func isTarget(s string) bool {
	if strings.HasPrefix(s, "redis://") || strings.HasPrefix(s, "rediss://") {
		return true
	}
	host, port, err := net.SplitHostPort(s)
	return err == nil && port != "" && (host != "" || strings.HasPrefix(s, ":"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Sequential evaluates nodes inline, one at a time, in topological order.
type Sequential struct {
	Runner dag.Runner
	Log    *logger.Logger
}

// Name returns "sequential".
func (b *Sequential) Name() string { return "sequential" }

// Execute runs every node of nodeIDs.
func (b *Sequential) Execute(ctx context.Context, p *plan.Plan, nodeIDs, _ []string) (map[string]task.Outputs, error) {
	exec := &dag.Executor{Runner: b.Runner, Parallel: 1, Log: b.Log}
	return bulk(ctx, exec, p, nodeIDs)
}

// ThreadPool evaluates nodes on a bounded set of goroutines sharing the
// process' task registry.
type ThreadPool struct {
	Runner  dag.Runner
	Options ThreadOptions
	Log     *logger.Logger
}

// Name returns "multithreading".
func (b *ThreadPool) Name() string { return SchedulerThreads }

// Execute runs every node of nodeIDs.
func (b *ThreadPool) Execute(ctx context.Context, p *plan.Plan, nodeIDs, _ []string) (map[string]task.Outputs, error) {
	opts := b.Options
	opts.applyDefaults()
	exec := &dag.Executor{Runner: b.Runner, Parallel: opts.NumWorkers, Log: b.Log}
	return bulk(ctx, exec, p, nodeIDs)
}

// ProcessPool evaluates nodes in worker subprocesses. The pool lives for a
// single Execute call.
type ProcessPool struct {
	Options procpool.Options
	Log     *logger.Logger
}

// Name returns "multiprocessing".
func (b *ProcessPool) Name() string { return SchedulerProcesses }

// Execute runs every node of nodeIDs.
func (b *ProcessPool) Execute(ctx context.Context, p *plan.Plan, nodeIDs, _ []string) (map[string]task.Outputs, error) {
	pool, err := procpool.New(b.Options, b.Log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			b.Log.Warn("Closing process pool failed", logger.Fields(logger.FieldError, cerr.Error()))
		}
	}()
	exec := &dag.Executor{Runner: pool, Parallel: pool.Options().NumWorkers, Log: b.Log}
	return bulk(ctx, exec, p, nodeIDs)
}

// Cluster submits nodes to a cluster client. With a live Client the
// connection belongs to the caller; otherwise one is opened from Options
// for each Execute call and closed when it returns.
type Cluster struct {
	Client  cluster.Client
	Options cluster.Options
	// Runner serves the in-process workers requested by Options.NWorkers.
	Runner dag.Runner
	Log    *logger.Logger
}

// Name returns "cluster".
func (b *Cluster) Name() string { return SchedulerCluster }

// Execute submits the plan and gathers outputIDs.
func (b *Cluster) Execute(ctx context.Context, p *plan.Plan, nodeIDs, outputIDs []string) (map[string]task.Outputs, error) {
	if b.Client != nil {
		return cluster.Submit(ctx, b.Client, p, nodeIDs, outputIDs)
	}
	client, err := cluster.Dial(ctx, b.Options, b.Runner, b.Log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			b.Log.Warn("Closing cluster client failed", logger.Fields(logger.FieldError, cerr.Error()))
		}
	}()
	return cluster.Submit(ctx, client, p, nodeIDs, outputIDs)
}

// bulk computes ids in one call and keys the ordered results by node id.
func bulk(ctx context.Context, exec *dag.Executor, p *plan.Plan, ids []string) (map[string]task.Outputs, error) {
	results, err := exec.Get(ctx, p, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]task.Outputs, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}
