package plan

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
)

func diamond() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", TaskType: "constant", DefaultInputs: []graph.Input{{Name: "x", Value: 1}}},
			{ID: "b", Label: "left", TaskType: "passthrough"},
			{ID: "c", TaskType: "passthrough", Resources: map[string]float64{"GPU": 1}},
			{ID: "d", TaskType: "sum"},
		},
		Links: []graph.Link{
			{Source: "a", Target: "b", MapAllData: true},
			{Source: "a", Target: "c", MapAllData: true},
			{Source: "c", Target: "d", DataMapping: []graph.DataMapping{{SourceOutput: "x", TargetInput: "c"}}},
			{Source: "b", Target: "d", DataMapping: []graph.DataMapping{{SourceOutput: "x", TargetInput: "b"}}},
		},
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(diamond()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(g *graph.Graph)
		want   string
	}{
		{"cycle", func(g *graph.Graph) { g.Links = append(g.Links, graph.Link{Source: "d", Target: "a"}) }, "cycle"},
		{"self loop", func(g *graph.Graph) { g.Links = append(g.Links, graph.Link{Source: "b", Target: "b"}) }, "b -> b"},
		{"conditional", func(g *graph.Graph) { g.Links[0].Conditions = []graph.Condition{{SourceOutput: "x", Value: 1}} }, "a -> b"},
		{"on error", func(g *graph.Graph) { g.Links[3].OnError = true }, "b -> d"},
		{"unknown node", func(g *graph.Graph) { g.Links = append(g.Links, graph.Link{Source: "a", Target: "zz"}) }, "zz"},
		{"duplicate id", func(g *graph.Graph) { g.Nodes = append(g.Nodes, graph.Node{ID: "a", TaskType: "x"}) }, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := diamond()
			tt.mutate(g)
			err := Validate(g)
			if !errors.IsCode(err, errors.ErrCodeGraphShape) {
				t.Fatalf("expected GRAPH_SHAPE, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestBuild(t *testing.T) {
	params := Params{
		VarInfo:     map[string]any{"root_uri": "/tmp"},
		ExecInfo:    map[string]any{"job_id": "j1"},
		TaskOptions: map[string]any{"verbose": true},
	}
	p, err := Build(diamond(), params)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, p.NodeIDs); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d"}, p.SinkIDs); diff != "" {
		t.Fatalf("sinks (-want +got):\n%s", diff)
	}

	entry, err := p.Entry("d")
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "b"}, entry.Sources); diff != "" {
		t.Fatalf("sources (-want +got):\n%s", diff)
	}

	rec, err := DecodeRecord(entry.Record)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if rec.NodeID != "d" || rec.NodeLabel != "d" || rec.NodeAttrs.TaskType != "sum" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.LinkAttrs) != 2 || rec.LinkAttrs[0].DataMapping[0].TargetInput != "c" {
		t.Fatalf("link attrs not aligned with sources: %+v", rec.LinkAttrs)
	}
	if rec.VarInfo["root_uri"] != "/tmp" || rec.ExecInfo["job_id"] != "j1" || rec.TaskOptions["verbose"] != true {
		t.Fatalf("params not threaded into record: %+v", rec)
	}

	b, _ := p.Entry("b")
	rb, _ := DecodeRecord(b.Record)
	if rb.NodeLabel != "left" {
		t.Fatalf("expected label, got %q", rb.NodeLabel)
	}
	if _, err := p.Entry("zz"); !errors.IsCode(err, errors.ErrCodeInternalConsistency) {
		t.Fatalf("expected INTERNAL_CONSISTENCY, got %v", err)
	}
}

func TestResources(t *testing.T) {
	p, err := Build(diamond(), Params{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	res, err := p.Resources("c")
	if err != nil || res["GPU"] != 1 {
		t.Fatalf("unexpected resources %v (%v)", res, err)
	}
	has, err := p.HasResources()
	if err != nil || !has {
		t.Fatalf("expected resources in plan, got %v (%v)", has, err)
	}

	g := diamond()
	g.Nodes[2].Resources = nil
	p, _ = Build(g, Params{})
	if has, _ := p.HasResources(); has {
		t.Fatal("expected no resources")
	}
}

func TestDecodeRecordRejectsMisalignedRecords(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"node_id":"x","source_ids":["a"],"link_attrs":[]}`))
	if !errors.IsCode(err, errors.ErrCodeInternalConsistency) {
		t.Fatalf("expected INTERNAL_CONSISTENCY, got %v", err)
	}
	if _, err := DecodeRecord([]byte("{")); !errors.IsCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}
