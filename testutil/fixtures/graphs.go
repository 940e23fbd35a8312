// Package fixtures provides task graphs built from the builtin task types,
// together with the results every scheduler must produce for them.
package fixtures

import (
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/task/builtin"
)

// ChainYAML is A -> B -> C: A produces {x: 1}, B adds one to x and C
// outputs y = x * 10.
const ChainYAML = `
id: chain
nodes:
  - id: A
    task_type: constant
    parameters:
      outputs: {x: 1}
  - id: B
    task_type: add
    parameters: {operand: 1}
  - id: C
    task_type: scale
    parameters: {factor: 10, output: y}
links:
  - {source: A, target: B, map_all_data: true}
  - {source: B, target: C, map_all_data: true}
`

// Chain returns the graph of ChainYAML.
func Chain() *graph.Graph {
	return &graph.Graph{
		ID: "chain",
		Nodes: []graph.Node{
			{ID: "A", TaskType: builtin.TypeConstant, Parameters: map[string]any{"outputs": map[string]any{"x": 1}}},
			{ID: "B", TaskType: builtin.TypeAdd, Parameters: map[string]any{"operand": 1}},
			{ID: "C", TaskType: builtin.TypeScale, Parameters: map[string]any{"factor": 10, "output": "y"}},
		},
		Links: []graph.Link{
			{Source: "A", Target: "B", MapAllData: true},
			{Source: "B", Target: "C", MapAllData: true},
		},
	}
}

// ChainResults are the node results of Chain.
func ChainResults() map[string]task.Outputs {
	return map[string]task.Outputs{
		"A": {"x": float64(1)},
		"B": {"x": float64(2)},
		"C": {"y": float64(20)},
	}
}

// Diamond is a(x=1) -> b(left = x+1), a -> c(right = x*3), b,c -> d(sum).
func Diamond() *graph.Graph {
	return &graph.Graph{
		ID: "diamond",
		Nodes: []graph.Node{
			{ID: "a", TaskType: builtin.TypeConstant, Parameters: map[string]any{"outputs": map[string]any{"x": 1}}},
			{ID: "b", TaskType: builtin.TypeAdd, Parameters: map[string]any{"operand": 1, "output": "left"}},
			{ID: "c", TaskType: builtin.TypeScale, Parameters: map[string]any{"factor": 3, "output": "right"}},
			{ID: "d", TaskType: builtin.TypeSum},
		},
		Links: []graph.Link{
			{Source: "a", Target: "b", MapAllData: true},
			{Source: "a", Target: "c", MapAllData: true},
			{Source: "b", Target: "d", MapAllData: true},
			{Source: "c", Target: "d", MapAllData: true},
		},
	}
}

// DiamondResults are the node results of Diamond.
func DiamondResults() map[string]task.Outputs {
	return map[string]task.Outputs{
		"a": {"x": float64(1)},
		"b": {"left": float64(2)},
		"c": {"right": float64(3)},
		"d": {"sum": float64(5)},
	}
}
