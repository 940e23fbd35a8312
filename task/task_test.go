package task

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/taskflow/graph"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := Simple(func(ctx context.Context, cfg Config) (Outputs, error) { return cfg.CopyInputs(), nil })
	if err := r.Register("copy", f); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("copy", f); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing lookup")
	}
	factory, ok := r.Lookup("copy")
	if !ok {
		t.Fatal("expected registered factory")
	}
	tk, err := factory(Config{Inputs: map[string]any{"x": 1}})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	out, err := tk.Execute(context.Background())
	if err != nil || out["x"] != 1 {
		t.Fatalf("unexpected outputs %v (%v)", out, err)
	}
	if diff := cmp.Diff([]string{"copy"}, r.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestMergeInputsLastWriteWins(t *testing.T) {
	dynamic := map[string]any{}
	MergeInputs(dynamic, graph.Link{MapAllData: true}, Outputs{"x": 1, "y": 1})
	MergeInputs(dynamic, graph.Link{DataMapping: []graph.DataMapping{{SourceOutput: "v", TargetInput: "x"}}}, Outputs{"v": 2})
	MergeInputs(dynamic, graph.Link{DataMapping: []graph.DataMapping{{SourceOutput: "absent", TargetInput: "z"}}}, Outputs{})

	want := map[string]any{"x": 2, "y": 1}
	if diff := cmp.Diff(want, dynamic); diff != "" {
		t.Fatalf("dynamic inputs (-want +got):\n%s", diff)
	}
}

func TestResolveInputsDynamicOverridesDefaults(t *testing.T) {
	got := ResolveInputs([]graph.Input{{Name: "x", Value: 1}, {Name: "k", Value: "d"}}, map[string]any{"x": 5})
	if diff := cmp.Diff(map[string]any{"x": 5, "k": "d"}, got); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		Inputs:     map[string]any{"a": 2, "b": "3.5", "c": "x"},
		Parameters: map[string]any{"factor": 10, "output": "y"},
	}
	if v, err := cfg.Number("a"); err != nil || v != 2 {
		t.Fatalf("Number(a) = %v, %v", v, err)
	}
	if v, err := cfg.Number("b"); err != nil || v != 3.5 {
		t.Fatalf("Number(b) = %v, %v", v, err)
	}
	if _, err := cfg.Number("c"); err == nil {
		t.Fatal("expected non-numeric error")
	}
	if _, err := cfg.Number("missing"); err == nil {
		t.Fatal("expected missing input error")
	}
	if cfg.NumberParam("factor", 1) != 10 || cfg.NumberParam("none", 1) != 1 {
		t.Fatal("unexpected numeric params")
	}
	if cfg.StringParam("output", "x") != "y" || cfg.StringParam("none", "x") != "x" {
		t.Fatal("unexpected string params")
	}
}
