package task

import "github.com/kbukum/taskflow/graph"

// MergeInputs copies the outputs of one source into dynamic along one
// link: every output with MapAllData, then each DataMapping entry.
// Existing keys are overwritten, so later sources win. Mapped outputs
// the source did not produce are skipped.
func MergeInputs(dynamic map[string]any, link graph.Link, source Outputs) {
	if link.MapAllData {
		for k, v := range source {
			dynamic[k] = v
		}
	}
	for _, m := range link.DataMapping {
		if v, ok := source[m.SourceOutput]; ok {
			dynamic[m.TargetInput] = v
		}
	}
}

// ResolveInputs overlays dynamic inputs on the node's default inputs.
func ResolveInputs(defaults []graph.Input, dynamic map[string]any) map[string]any {
	inputs := make(map[string]any, len(defaults)+len(dynamic))
	for _, in := range defaults {
		inputs[in.Name] = in.Value
	}
	for k, v := range dynamic {
		inputs[k] = v
	}
	return inputs
}
