package backend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/taskflow/cluster"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/invoker"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/procpool"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/task/builtin"
	"github.com/kbukum/taskflow/testutil"
	"github.com/kbukum/taskflow/testutil/fixtures"
)

// TestMain lets the test binary double as the process pool worker.
func TestMain(m *testing.M) {
	procpool.MaybeServe(builtin.NewRegistry())
	os.Exit(m.Run())
}

func diamondPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.Build(fixtures.Diamond(), plan.Params{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return p
}

func runner() *invoker.Invoker {
	return invoker.New(builtin.NewRegistry(), logger.Nop())
}

// --- tests ---

func TestLocalBackends(t *testing.T) {
	tests := []struct {
		name      string
		scheduler string
		options   map[string]any
		want      string
	}{
		{name: "sequential", scheduler: SchedulerSequential, want: "sequential"},
		{name: "threads", scheduler: SchedulerThreads, options: map[string]any{"num_workers": 3}, want: SchedulerThreads},
		{name: "threads default", scheduler: SchedulerThreads, want: SchedulerThreads},
		{name: "spawn", scheduler: SchedulerProcesses, options: map[string]any{"num_workers": "2", "grace_period": "200ms"}, want: SchedulerProcesses},
		{name: "persistent", scheduler: SchedulerProcesses, options: map[string]any{"context": "persistent", "num_workers": 2}, want: SchedulerProcesses},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Select(Config{Scheduler: tt.scheduler, Options: tt.options, Runner: runner(), Log: logger.Nop()})
			if err != nil {
				t.Fatalf("Select() error: %v", err)
			}
			if b.Name() != tt.want {
				t.Fatalf("Name() = %q, want %q", b.Name(), tt.want)
			}
			p := diamondPlan(t)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			got, err := b.Execute(ctx, p, p.NodeIDs, p.SinkIDs)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if diff := cmp.Diff(fixtures.DiamondResults(), got); diff != "" {
				t.Fatalf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectOptions(t *testing.T) {
	b, err := Select(Config{Scheduler: SchedulerProcesses, Options: map[string]any{
		"num_workers":    3,
		"timeout":        "5s",
		"worker_command": "/bin/worker,--serve",
	}, Log: logger.Nop()})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	opts := b.(*ProcessPool).Options
	if opts.NumWorkers != 3 || opts.Timeout != 5*time.Second || opts.Context != procpool.ContextSpawn {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if diff := cmp.Diff([]string{"/bin/worker", "--serve"}, opts.WorkerCommand); diff != "" {
		t.Fatalf("worker command mismatch (-want +got):\n%s", diff)
	}

	b, err = Select(Config{Scheduler: "redis://:secret@cache.internal:6380/2", Options: map[string]any{
		"queue_prefix": "jobs",
		"result_ttl":   "10m",
	}, Log: logger.Nop()})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	copts := b.(*Cluster).Options
	if copts.Addr != "cache.internal:6380" || copts.DB != 2 || copts.Password != "secret" ||
		copts.QueuePrefix != "jobs" || copts.ResultTTL != 10*time.Minute {
		t.Fatalf("unexpected cluster options: %+v", copts)
	}
}

func TestSelectErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown scheduler", cfg: Config{Scheduler: "quantum"}},
		{name: "sequential option", cfg: Config{Options: map[string]any{"num_workers": 2}}},
		{name: "unknown thread option", cfg: Config{Scheduler: SchedulerThreads, Options: map[string]any{"workers": 2}}},
		{name: "bad thread option type", cfg: Config{Scheduler: SchedulerThreads, Options: map[string]any{"num_workers": "many"}}},
		{name: "bad context", cfg: Config{Scheduler: SchedulerProcesses, Options: map[string]any{"context": "fork"}}},
		{name: "bad duration", cfg: Config{Scheduler: SchedulerProcesses, Options: map[string]any{"timeout": "soon"}}},
		{name: "negative cluster workers", cfg: Config{Scheduler: SchedulerCluster, Options: map[string]any{"n_workers": -1}}},
		{name: "client with options", cfg: Config{Client: &cluster.RedisClient{}, Options: map[string]any{"addr": "x:1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Runner = runner()
			tt.cfg.Log = logger.Nop()
			_, err := Select(tt.cfg)
			if !errors.IsCode(err, errors.ErrCodeConfiguration) {
				t.Fatalf("expected CONFIGURATION error, got %v", err)
			}
		})
	}
}

func TestClusterTargetWithLocalWorkers(t *testing.T) {
	mini := miniredis.RunT(t)
	p := diamondPlan(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got, err := Dispatch(ctx, Config{
		Scheduler: mini.Addr(),
		Options:   map[string]any{"n_workers": 2},
		Runner:    runner(),
		Log:       logger.Nop(),
	}, p, p.NodeIDs, []string{"d"})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if diff := cmp.Diff(map[string]task.Outputs{"d": {"sum": float64(5)}}, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestLiveClusterClientStaysOpen(t *testing.T) {
	srv := testutil.NewRedisServer()
	testutil.T(t).Setup(srv)
	rdb := srv.Client()

	w := cluster.NewWorker(rdb, runner(), cluster.WorkerOptions{Concurrency: 2}, logger.Nop())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("worker Start() error: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.Stop(stopCtx)
	}()

	client := cluster.NewRedisClient(rdb, cluster.Options{}, logger.Nop())
	defer client.Close()

	p := diamondPlan(t)
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		got, err := Dispatch(ctx, Config{Client: client, Log: logger.Nop()}, p, p.NodeIDs, p.NodeIDs)
		cancel()
		if err != nil {
			t.Fatalf("run %d: Dispatch() error: %v", i, err)
		}
		if diff := cmp.Diff(fixtures.DiamondResults(), got); diff != "" {
			t.Fatalf("run %d: results mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestTaskFailureSurfaces(t *testing.T) {
	g := &graph.Graph{Nodes: []graph.Node{{ID: "boom", TaskType: builtin.TypeFail, Parameters: map[string]any{"message": "no"}}}}
	p, err := plan.Build(g, plan.Params{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for _, scheduler := range []string{SchedulerSequential, SchedulerThreads, SchedulerProcesses} {
		_, err := Dispatch(context.Background(), Config{Scheduler: scheduler, Runner: runner(), Log: logger.Nop()}, p, p.NodeIDs, p.NodeIDs)
		if !errors.IsCode(err, errors.ErrCodeTaskExecution) {
			t.Fatalf("%s: expected TASK_EXECUTION, got %v", displayName(scheduler), err)
		}
	}
}
