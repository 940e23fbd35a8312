package engine

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/events"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/procpool"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/task/builtin"
	"github.com/kbukum/taskflow/testutil/fixtures"
)

// TestMain lets the test binary double as the process pool worker.
func TestMain(m *testing.M) {
	procpool.MaybeServe(builtin.NewRegistry())
	os.Exit(m.Run())
}

func schedulers(t *testing.T) map[string][]Option {
	mini := miniredis.RunT(t)
	return map[string][]Option{
		"sequential": nil,
		"threads":    {WithScheduler("multithreading"), WithSchedulerOptions(map[string]any{"num_workers": 2})},
		"processes":  {WithScheduler("multiprocessing"), WithSchedulerOptions(map[string]any{"num_workers": 2})},
		"persistent": {WithScheduler("multiprocessing"), WithSchedulerOptions(map[string]any{"context": "persistent"})},
		"cluster":    {WithScheduler(mini.Addr()), WithSchedulerOptions(map[string]any{"n_workers": 2})},
	}
}

// --- tests ---

func TestChainUnderEveryScheduler(t *testing.T) {
	for name, opts := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			opts = append(opts, WithLogger(logger.Nop()), WithOutputs(graph.Output{ID: "C"}))
			got, err := Execute(ctx, graph.Bytes([]byte(fixtures.ChainYAML), graph.RepresentationYAML), opts...)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if diff := cmp.Diff(Result{"y": float64(20)}, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiamondUnmergedUnderEveryScheduler(t *testing.T) {
	want := Result{
		"b": task.Outputs{"left": float64(2)},
		"c": task.Outputs{"right": float64(3)},
		"d": task.Outputs{"sum": float64(5)},
	}
	for name, opts := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			opts = append(opts,
				WithLogger(logger.Nop()),
				WithMergeOutputs(false),
				WithOutputs(graph.Output{ID: "b"}, graph.Output{ID: "c"}, graph.Output{ID: "d"}),
			)
			got, err := Execute(ctx, fixtures.Diamond(), opts...)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultOutputsAreSinks(t *testing.T) {
	got, err := Execute(context.Background(), fixtures.Diamond(), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Result{"sum": float64(5)}, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestInputsAndFileSource(t *testing.T) {
	dir := t.TempDir()
	doc := `{"nodes": [
		{"id": "in", "task_type": "passthrough", "default_inputs": [{"name": "x", "value": 1}]},
		{"id": "out", "task_type": "scale", "parameters": {"factor": 2}}
	], "links": [{"source": "in", "target": "out", "map_all_data": true}]}`
	if err := os.WriteFile(filepath.Join(dir, "g.json"), []byte(doc), 0o600); err != nil {
		t.Fatalf("write graph: %v", err)
	}

	got, err := Execute(context.Background(), graph.File("g.json"),
		WithLogger(logger.Nop()),
		WithLoadOptions(graph.LoadOptions{RootDir: dir}),
		WithInputs(graph.InputSpec{ID: "in", Name: "x", Value: 21}),
	)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Result{"x": float64(42)}, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func streamHandler(addr, stream string) map[string]any {
	return map[string]any{events.KeyHandlers: []any{
		map[string]any{"type": "redis", "url": "redis://" + addr, "stream": stream},
	}}
}

func TestRejectsUnsupportedGraphs(t *testing.T) {
	cyclic := &graph.Graph{
		Nodes: []graph.Node{{ID: "a", TaskType: builtin.TypePassthrough}, {ID: "b", TaskType: builtin.TypePassthrough}},
		Links: []graph.Link{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	}
	conditional := &graph.Graph{
		Nodes: []graph.Node{{ID: "a", TaskType: builtin.TypePassthrough}, {ID: "b", TaskType: builtin.TypePassthrough}},
		Links: []graph.Link{{Source: "a", Target: "b", Conditions: []graph.Condition{{SourceOutput: "ok", Value: true}}}},
	}
	mini := miniredis.RunT(t)
	for scheduler, opts := range schedulers(t) {
		for name, g := range map[string]*graph.Graph{"cyclic": cyclic, "conditional": conditional} {
			t.Run(scheduler+"/"+name, func(t *testing.T) {
				stream := scheduler + ":" + name
				run := append([]Option{WithLogger(logger.Nop()), WithExecInfo(streamHandler(mini.Addr(), stream))}, opts...)
				_, err := Execute(context.Background(), g, run...)
				if !errors.IsCode(err, errors.ErrCodeGraphShape) {
					t.Fatalf("expected GRAPH_SHAPE error, got %v", err)
				}
				entries, _ := mini.Stream(stream)
				if len(entries) == 0 {
					t.Fatal("expected workflow events")
				}
				for _, e := range entries {
					if slices.Contains(e.Values, "node_start") {
						t.Fatalf("a node started in a rejected graph: %v", e.Values)
					}
				}
			})
		}
	}
}

func TestRepeatedRunsAgree(t *testing.T) {
	for name, opts := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			opts = append(opts, WithLogger(logger.Nop()), WithMergeOutputs(false), WithOutputs(graph.Output{All: true}))
			var first Result
			for i := 0; i < 2; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				got, err := Execute(ctx, fixtures.Diamond(), opts...)
				cancel()
				if err != nil {
					t.Fatalf("run %d: Execute() error: %v", i, err)
				}
				if i == 0 {
					first = got
					continue
				}
				if diff := cmp.Diff(first, got); diff != "" {
					t.Fatalf("runs disagree (-first +second):\n%s", diff)
				}
			}
		})
	}
}

func TestRepeatedLinkLaterMappingWins(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", TaskType: builtin.TypeConstant, Parameters: map[string]any{"outputs": map[string]any{"p": 1, "q": 2}}},
			{ID: "b", TaskType: builtin.TypePassthrough},
		},
		Links: []graph.Link{
			{Source: "a", Target: "b", DataMapping: []graph.DataMapping{{SourceOutput: "p", TargetInput: "x"}}},
			{Source: "a", Target: "b", DataMapping: []graph.DataMapping{{SourceOutput: "q", TargetInput: "y"}}},
		},
	}
	got, err := Execute(context.Background(), g, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Result{"y": float64(2)}, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigurationErrorsStopBeforeWork(t *testing.T) {
	mini := miniredis.RunT(t)
	execinfo := map[string]any{events.KeyHandlers: []any{
		map[string]any{"type": "redis", "url": "redis://" + mini.Addr(), "stream": "ev"},
	}}
	_, err := Execute(context.Background(), fixtures.Diamond(),
		WithLogger(logger.Nop()),
		WithExecInfo(execinfo),
		WithScheduler("carrier-pigeon"),
	)
	if !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
	entries, _ := mini.Stream("ev")
	for _, e := range entries {
		if slices.Contains(e.Values, "node_start") {
			t.Fatal("a node started despite the configuration error")
		}
	}
}

func TestTaskFailure(t *testing.T) {
	g := &graph.Graph{Nodes: []graph.Node{{ID: "x", TaskType: builtin.TypeFail, Parameters: map[string]any{"message": "bad"}}}}
	_, err := Execute(context.Background(), g, WithLogger(logger.Nop()))
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeTaskExecution || appErr.Details["node_id"] != "x" {
		t.Fatalf("expected TASK_EXECUTION of node x, got %v", err)
	}
}

func TestWorkflowEvents(t *testing.T) {
	mini := miniredis.RunT(t)
	execinfo := map[string]any{
		events.KeyJobID: "job-42",
		events.KeyHandlers: []any{
			map[string]any{"type": "redis", "url": "redis://" + mini.Addr(), "stream": "ev"},
		},
	}
	if _, err := Execute(context.Background(), fixtures.Diamond(), WithLogger(logger.Nop()), WithExecInfo(execinfo)); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	entries, err := mini.Stream("ev")
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	// workflow start and end around a start and an end per node
	if len(entries) != 2+2*4 {
		t.Fatalf("expected 10 events, got %d", len(entries))
	}
	first, last := entries[0].Values, entries[len(entries)-1].Values
	if !slices.Contains(first, "workflow_start") || !slices.Contains(last, "workflow_end") {
		t.Fatalf("unexpected event order: %v ... %v", first, last)
	}
	for _, e := range entries {
		if !slices.Contains(e.Values, "job-42") {
			t.Fatalf("event without job id: %v", e.Values)
		}
	}
	if _, ok := execinfo["workflow_id"]; ok {
		t.Fatal("caller execinfo was modified")
	}
}

func TestAssemble(t *testing.T) {
	results := map[string]task.Outputs{
		"a": {"x": 1, "y": 2},
		"b": {"x": 3},
		"c": {},
	}
	tests := []struct {
		name    string
		outputs []graph.Output
		merge   bool
		want    Result
	}{
		{
			name:    "merged later wins",
			outputs: []graph.Output{{ID: "a"}, {ID: "b"}},
			merge:   true,
			want:    Result{"x": 3, "y": 2},
		},
		{
			name:    "unmerged buckets",
			outputs: []graph.Output{{ID: "a"}, {ID: "b"}},
			want:    Result{"a": task.Outputs{"x": 1, "y": 2}, "b": task.Outputs{"x": 3}},
		},
		{
			name:    "renamed selection",
			outputs: []graph.Output{{ID: "a", Name: "y", NewName: "why"}, {ID: "b", Name: "x"}},
			merge:   true,
			want:    Result{"why": 2, "x": 3},
		},
		{
			name:    "empty bucket",
			outputs: []graph.Output{{ID: "c"}, {ID: "b", Name: "missing"}},
			want:    Result{"c": task.Outputs{}, "b": task.Outputs{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Assemble(results, tt.outputs, tt.merge)
			if err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := Assemble(results, []graph.Output{{ID: "zzz"}}, true); !errors.IsCode(err, errors.ErrCodeInternalConsistency) {
		t.Fatalf("expected INTERNAL_CONSISTENCY error, got %v", err)
	}
}
