package cluster

import (
	"context"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
)

// Submit evaluates p on client. nodeIDs must be in topological order.
//
// When every node is requested and none declares resources the plan is
// handed over in one Get. Otherwise each node becomes a Deferred over its
// sources' deferreds and is computed with its resources; the requested
// futures are gathered, then every future is waited for.
func Submit(ctx context.Context, client Client, p *plan.Plan, nodeIDs, outputIDs []string) (map[string]task.Outputs, error) {
	hasResources, err := p.HasResources()
	if err != nil {
		return nil, err
	}
	if !hasResources && sameSet(nodeIDs, outputIDs) {
		results, err := client.Get(ctx, p, nodeIDs)
		if err != nil {
			return nil, err
		}
		return zip(nodeIDs, results)
	}

	deferreds := make(map[string]*Deferred, len(nodeIDs))
	futures := make(map[string]Future, len(nodeIDs))
	all := make([]Future, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		entry, err := p.Entry(id)
		if err != nil {
			return nil, err
		}
		d := &Deferred{NodeID: id, Record: entry.Record, Deps: make([]*Deferred, len(entry.Sources))}
		for i, src := range entry.Sources {
			dep, ok := deferreds[src]
			if !ok {
				return nil, errors.InternalConsistency("node %q submitted before its source %q", id, src)
			}
			d.Deps[i] = dep
		}
		deferreds[id] = d

		resources, err := p.Resources(id)
		if err != nil {
			return nil, err
		}
		f, err := client.Compute(ctx, d, resources)
		if err != nil {
			return nil, err
		}
		futures[id] = f
		all = append(all, f)
	}

	requested := make([]Future, len(outputIDs))
	for i, id := range outputIDs {
		f, ok := futures[id]
		if !ok {
			return nil, errors.InternalConsistency("no future for requested node %q", id)
		}
		requested[i] = f
	}
	results, err := client.Gather(ctx, requested)
	if err != nil {
		return nil, err
	}
	if err := client.Wait(ctx, all); err != nil {
		return nil, err
	}
	return zip(outputIDs, results)
}

// sameSet reports whether a and b hold the same ids, in any order.
func sameSet(a, b []string) bool {
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	for _, id := range b {
		delete(seen, id)
	}
	return len(seen) == 0
}

func zip(ids []string, results []task.Outputs) (map[string]task.Outputs, error) {
	if len(ids) != len(results) {
		return nil, errors.InternalConsistency("expected %d results, got %d", len(ids), len(results))
	}
	out := make(map[string]task.Outputs, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}
