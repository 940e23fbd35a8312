package graph

import (
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/validation"
)

// InputSpec overrides a default input at load time. The target nodes are
// chosen by ID, Label, TaskIdentifier or All, checked in that order; with
// none set the start nodes (no predecessors) receive the input.
type InputSpec struct {
	ID             string `yaml:"id,omitempty" json:"id,omitempty"`
	Label          string `yaml:"label,omitempty" json:"label,omitempty"`
	TaskIdentifier string `yaml:"task_identifier,omitempty" json:"task_identifier,omitempty"`
	All            bool   `yaml:"all,omitempty" json:"all,omitempty"`
	Name           string `yaml:"name" json:"name" validate:"required"`
	Value          any    `yaml:"value" json:"value"`
}

// ApplyInputs sets each input on its target nodes, replacing a default
// input of the same name. Later specs win.
func ApplyInputs(g *Graph, inputs []InputSpec) error {
	for _, in := range inputs {
		if err := validation.Validate(in); err != nil {
			return err
		}
		targets, err := inputTargets(g, in)
		if err != nil {
			return err
		}
		for _, i := range targets {
			g.Nodes[i].DefaultInputs = setInput(g.Nodes[i].DefaultInputs, in.Name, in.Value)
		}
	}
	return nil
}

func inputTargets(g *Graph, in InputSpec) ([]int, error) {
	var targets []int
	switch {
	case in.ID != "":
		for i, n := range g.Nodes {
			if n.ID == in.ID {
				targets = append(targets, i)
			}
		}
		if len(targets) == 0 {
			return nil, errors.InvalidInput("inputs", "unknown node "+in.ID)
		}
	case in.Label != "":
		for i, n := range g.Nodes {
			if n.Label == in.Label {
				targets = append(targets, i)
			}
		}
	case in.TaskIdentifier != "":
		for i, n := range g.Nodes {
			if n.TaskIdentifier == in.TaskIdentifier {
				targets = append(targets, i)
			}
		}
	case in.All:
		for i := range g.Nodes {
			targets = append(targets, i)
		}
	default:
		start := make(map[string]bool)
		for _, id := range g.StartNodes() {
			start[id] = true
		}
		for i, n := range g.Nodes {
			if start[n.ID] {
				targets = append(targets, i)
			}
		}
	}
	return targets, nil
}

func setInput(inputs []Input, name string, value any) []Input {
	for i := range inputs {
		if inputs[i].Name == name {
			inputs[i].Value = value
			return inputs
		}
	}
	return append(inputs, Input{Name: name, Value: value})
}
