package graph

import "github.com/kbukum/taskflow/errors"

// Output requests the outputs of one node. Name selects a single output
// key, renamed to NewName when set. All expands to every node.
type Output struct {
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	NewName string `yaml:"new_name,omitempty" json:"new_name,omitempty"`
	All     bool   `yaml:"all,omitempty" json:"all,omitempty"`
}

// ParseOutputs expands an output specification against g. An empty
// specification requests every sink node.
func ParseOutputs(g *Graph, outputs []Output) ([]Output, error) {
	if len(outputs) == 0 {
		sinks := g.Sinks()
		parsed := make([]Output, len(sinks))
		for i, id := range sinks {
			parsed[i] = Output{ID: id}
		}
		return parsed, nil
	}

	var parsed []Output
	for _, out := range outputs {
		if out.All {
			for _, id := range g.NodeIDs() {
				parsed = append(parsed, Output{ID: id, Name: out.Name, NewName: out.NewName})
			}
			continue
		}
		if out.ID == "" {
			return nil, errors.InvalidInput("outputs", "output entry needs an id or all")
		}
		if _, ok := g.Node(out.ID); !ok {
			return nil, errors.InvalidInput("outputs", "unknown node "+out.ID)
		}
		if out.NewName != "" && out.Name == "" {
			return nil, errors.InvalidInput("outputs", "new_name requires name for node "+out.ID)
		}
		parsed = append(parsed, out)
	}
	return parsed, nil
}

// OutputNodeIDs returns the distinct node ids of parsed outputs in order.
func OutputNodeIDs(outputs []Output) []string {
	seen := make(map[string]bool, len(outputs))
	var ids []string
	for _, out := range outputs {
		if !seen[out.ID] {
			seen[out.ID] = true
			ids = append(ids, out.ID)
		}
	}
	return ids
}
