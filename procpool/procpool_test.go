package procpool

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/taskflow/dag"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/invoker"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/task/builtin"
)

// TestMain lets the test binary double as the pool worker.
func TestMain(m *testing.M) {
	MaybeServe(builtin.NewRegistry())
	os.Exit(m.Run())
}

func chainPlan(t *testing.T) *plan.Plan {
	t.Helper()
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", TaskType: builtin.TypeConstant, Parameters: map[string]any{"outputs": map[string]any{"x": 2}}},
			{ID: "b", TaskType: builtin.TypeScale, Parameters: map[string]any{"factor": 10}},
			{ID: "c", TaskType: builtin.TypeAdd, Parameters: map[string]any{"operand": 1, "output": "y"}},
		},
		Links: []graph.Link{
			{Source: "a", Target: "b", MapAllData: true},
			{Source: "b", Target: "c", MapAllData: true},
		},
	}
	p, err := plan.Build(g, plan.Params{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return p
}

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	opts.GracePeriod = 200 * time.Millisecond
	r, err := New(opts, logger.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOptionsDefaultsAndValidate(t *testing.T) {
	opts := Options{}
	opts.ApplyDefaults()
	if opts.NumWorkers < 1 || opts.Context != ContextSpawn {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	bad := Options{NumWorkers: 1, Context: "fork"}
	if err := bad.Validate(); !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
}

func TestRunnerContexts(t *testing.T) {
	for _, mode := range []string{ContextSpawn, ContextPersistent} {
		t.Run(mode, func(t *testing.T) {
			p := chainPlan(t)
			r := newRunner(t, Options{NumWorkers: 2, Context: mode})
			ex := &dag.Executor{Runner: r, Parallel: 2, Log: logger.Nop()}

			out, err := ex.Get(context.Background(), p, p.NodeIDs)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			want := []task.Outputs{{"x": float64(2)}, {"x": float64(20)}, {"y": float64(21)}}
			if diff := cmp.Diff(want, out); diff != "" {
				t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPersistentWorkersAreReused(t *testing.T) {
	p := chainPlan(t)
	r := newRunner(t, Options{NumWorkers: 1, Context: ContextPersistent})
	ex := &dag.Executor{Runner: r, Log: logger.Nop()}
	for i := 0; i < 2; i++ {
		if _, err := ex.Get(context.Background(), p, p.NodeIDs); err != nil {
			t.Fatalf("Get() error: %v", err)
		}
	}
	r.mu.Lock()
	idle := len(r.idle)
	r.mu.Unlock()
	if idle != 1 {
		t.Fatalf("expected one reusable worker, got %d", idle)
	}
}

func TestRunnerTaskFailureCrossesProcess(t *testing.T) {
	g := &graph.Graph{Nodes: []graph.Node{{ID: "f", TaskType: builtin.TypeFail, Parameters: map[string]any{"message": "no disk"}}}}
	p, _ := plan.Build(g, plan.Params{})
	r := newRunner(t, Options{NumWorkers: 1})

	_, err := r.Run(context.Background(), p.Entries["f"].Record)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeTaskExecution {
		t.Fatalf("expected TASK_EXECUTION, got %v", err)
	}
	if appErr.Cause == nil || appErr.Cause.Error() != "no disk" {
		t.Fatalf("expected cause message kept, got %v", appErr.Cause)
	}
	if appErr.Details["node_id"] != "f" {
		t.Fatalf("expected node_id detail, got %v", appErr.Details)
	}
}

func TestRunnerTimeout(t *testing.T) {
	g := &graph.Graph{Nodes: []graph.Node{{ID: "s", TaskType: builtin.TypeSleep, Parameters: map[string]any{"duration": "10s"}}}}
	p, _ := plan.Build(g, plan.Params{})
	for _, mode := range []string{ContextSpawn, ContextPersistent} {
		t.Run(mode, func(t *testing.T) {
			r := newRunner(t, Options{NumWorkers: 1, Context: mode, Timeout: 300 * time.Millisecond})
			start := time.Now()
			_, err := r.Run(context.Background(), p.Entries["s"].Record)
			if err == nil {
				t.Fatal("expected timeout error")
			}
			if time.Since(start) > 5*time.Second {
				t.Fatal("timeout not applied")
			}
		})
	}
}

func TestRunnerBrokenWorkerCommand(t *testing.T) {
	p := chainPlan(t)
	r := newRunner(t, Options{NumWorkers: 1, WorkerCommand: []string{"sh", "-c", "echo crashed >&2; exit 4"}})
	_, err := r.Run(context.Background(), p.Entries["a"].Record)
	if !errors.IsCode(err, errors.ErrCodeTaskExecution) || !strings.Contains(err.Error(), "crashed") {
		t.Fatalf("expected TASK_EXECUTION mentioning stderr, got %v", err)
	}
}

func TestServe(t *testing.T) {
	p := chainPlan(t)
	frame, err := encodeRequest(p.Entries["b"].Record, []task.Outputs{{"x": 4}})
	if err != nil {
		t.Fatalf("encodeRequest() error: %v", err)
	}
	in := bytes.NewBufferString(string(frame) + "\nnot json\n")
	var out bytes.Buffer

	inv := invoker.New(builtin.NewRegistry(), logger.Nop())
	if err := Serve(context.Background(), in, &out, inv, false); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two responses, got %q", out.String())
	}
	got, err := decodeResponse([]byte(lines[0]))
	if err != nil || got["x"] != float64(40) {
		t.Fatalf("unexpected first response %v, %v", got, err)
	}
	if _, err := decodeResponse([]byte(lines[1])); !errors.IsCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR for a bad frame, got %v", err)
	}
}
