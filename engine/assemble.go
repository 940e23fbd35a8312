package engine

import (
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/task"
)

// Assemble shapes node results into the final result. outputs must be
// parsed (see graph.ParseOutputs). When merge is set, every selected value
// lands in one flat mapping and later entries overwrite earlier ones;
// otherwise each node gets its own bucket.
func Assemble(results map[string]task.Outputs, outputs []graph.Output, merge bool) (Result, error) {
	final := Result{}
	for _, out := range outputs {
		values, ok := results[out.ID]
		if !ok {
			return nil, errors.InternalConsistency("no result for requested node %q", out.ID)
		}
		selected := selectValues(values, out)
		if merge {
			for k, v := range selected {
				final[k] = v
			}
			continue
		}
		bucket, _ := final[out.ID].(task.Outputs)
		if bucket == nil {
			bucket = task.Outputs{}
			final[out.ID] = bucket
		}
		for k, v := range selected {
			bucket[k] = v
		}
	}
	return final, nil
}

// selectValues applies the name and new_name of out. A named output the
// node did not produce is left out.
func selectValues(values task.Outputs, out graph.Output) task.Outputs {
	if out.Name == "" {
		return values
	}
	v, ok := values[out.Name]
	if !ok {
		return task.Outputs{}
	}
	name := out.Name
	if out.NewName != "" {
		name = out.NewName
	}
	return task.Outputs{name: v}
}
