package dag

import (
	"context"
	"time"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
)

// Runner executes one serialized node record with its sources' results.
type Runner interface {
	Run(ctx context.Context, record []byte, upstream ...task.Outputs) (task.Outputs, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, record []byte, upstream ...task.Outputs) (task.Outputs, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, record []byte, upstream ...task.Outputs) (task.Outputs, error) {
	return f(ctx, record, upstream...)
}

// Executor runs plans with a Runner.
type Executor struct {
	Runner Runner
	// Parallel bounds concurrent invocations (<= 1 means inline).
	Parallel int
	Log      *logger.Logger
}

// Get computes the given nodes, and everything they depend on, and returns
// their results in the order of ids.
func (e *Executor) Get(ctx context.Context, p *plan.Plan, ids []string) ([]task.Outputs, error) {
	res, err := e.Execute(ctx, p, ids)
	if err != nil {
		return nil, err
	}
	out := make([]task.Outputs, len(ids))
	for i, id := range ids {
		nr, ok := res.NodeResults[id]
		if !ok {
			return nil, errors.InternalConsistency("no result for node %q", id)
		}
		out[i] = nr.Output
	}
	return out, nil
}

// Execute computes the given nodes and their dependencies.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, ids []string) (*Result, error) {
	start := time.Now()
	needed, err := required(p, ids)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(needed))
	for _, id := range p.NodeIDs {
		if needed[id] {
			order = append(order, id)
		}
	}

	result := &Result{NodeResults: make(map[string]NodeResult, len(order))}
	state := NewState()
	if e.Parallel <= 1 {
		err = e.sequential(ctx, p, order, state, result)
	} else {
		err = e.parallel(ctx, p, order, state, result)
	}
	result.Duration = time.Since(start)

	log := e.logger()
	if err != nil {
		log.Debug("Plan execution failed", logger.MergeWithError(logger.Fields("nodes", len(order), "completed", state.Len()), err))
		return nil, err
	}
	log.Debug("Plan executed", logger.Fields(
		"nodes", len(order),
		"parallel", e.Parallel,
		logger.FieldDuration, result.Duration.Milliseconds(),
	))
	return result, nil
}

func (e *Executor) logger() *logger.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.Get("dag")
}

// required returns ids plus their transitive sources.
func required(p *plan.Plan, ids []string) (map[string]bool, error) {
	needed := make(map[string]bool, len(p.Entries))
	stack := append([]string(nil), ids...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[id] {
			continue
		}
		entry, err := p.Entry(id)
		if err != nil {
			return nil, err
		}
		needed[id] = true
		stack = append(stack, entry.Sources...)
	}
	return needed, nil
}

func (e *Executor) sequential(ctx context.Context, p *plan.Plan, order []string, state *State, result *Result) error {
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		nr := e.runNode(ctx, p.Entries[id], id, state)
		result.NodeResults[id] = nr
		if nr.Error != nil {
			return nr.Error
		}
	}
	return nil
}

// parallel is a coordinator loop: only this goroutine touches the
// scheduling state, workers report back on done.
func (e *Executor) parallel(ctx context.Context, p *plan.Plan, order []string, state *State, result *Result) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(map[string]int, len(order))
	dependents := make(map[string][]string)
	var ready []string
	for _, id := range order {
		sources := p.Entries[id].Sources
		pending[id] = len(sources)
		for _, src := range sources {
			dependents[src] = append(dependents[src], id)
		}
		if len(sources) == 0 {
			ready = append(ready, id)
		}
	}

	done := make(chan NodeResult)
	running := 0
	var firstErr error

	for {
		if firstErr == nil && ctx.Err() != nil {
			firstErr = ctx.Err()
		}
		for firstErr == nil && running < e.Parallel && len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			running++
			go func(id string) {
				done <- e.runNode(ctx, p.Entries[id], id, state)
			}(id)
		}
		if running == 0 {
			break
		}

		nr := <-done
		running--
		result.NodeResults[nr.NodeID] = nr
		if nr.Error != nil {
			if firstErr == nil {
				firstErr = nr.Error
				cancel()
			}
			continue
		}
		for _, dep := range dependents[nr.NodeID] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if len(result.NodeResults) != len(order) {
		return errors.InternalConsistency("executed %d of %d nodes", len(result.NodeResults), len(order))
	}
	return nil
}

func (e *Executor) runNode(ctx context.Context, entry plan.Entry, id string, state *State) NodeResult {
	start := time.Now()
	upstream, ok := state.upstream(entry.Sources)
	if !ok {
		return NodeResult{
			NodeID: id,
			Status: StatusFailed,
			Error:  errors.InternalConsistency("node %q started before its sources finished", id),
		}
	}

	out, err := e.Runner.Run(ctx, entry.Record, upstream...)
	nr := NodeResult{NodeID: id, Duration: time.Since(start)}
	if err != nil {
		nr.Status, nr.Error = StatusFailed, err
		return nr
	}
	state.Set(id, out)
	nr.Status, nr.Output = StatusCompleted, out
	return nr
}
