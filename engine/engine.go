// Package engine is the entry point of taskflow: it loads a task graph,
// validates and plans it, runs it on the selected backend and shapes the
// requested outputs.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/taskflow/backend"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/events"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/invoker"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/observability"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
	"github.com/kbukum/taskflow/task/builtin"
)

// Result is the final result of an execution: a flat mapping of output
// names when outputs are merged, node id to outputs otherwise.
type Result map[string]any

// Execute runs the graph provided by src.
func Execute(ctx context.Context, src graph.Source, opts ...Option) (Result, error) {
	o := resolveOptions(opts)
	log := o.log
	if log == nil {
		log = logger.Get("engine")
	}
	registry := o.registry
	if registry == nil {
		registry = builtin.NewRegistry()
	}

	g, err := graph.Load(src, o.load, o.inputs)
	if err != nil {
		return nil, err
	}

	execinfo := events.PrepareExecInfo(o.execInfo, g.ID)
	emitter, err := events.FromExecInfo(execinfo, log)
	if err != nil {
		return nil, err
	}
	defer emitter.Close()

	ctx = logger.ContextWithJob(ctx, events.JobID(execinfo))
	start := time.Now()
	ev := events.New(events.WorkflowStart, execinfo)
	ev.Label = g.Label
	emitter.Emit(ctx, ev)

	result, err := execute(ctx, g, execinfo, o, registry, log)

	ev.Type, ev.Time = events.WorkflowEnd, time.Now()
	fields := logger.Fields(
		logger.FieldJobID, ev.JobID,
		logger.FieldScheduler, schedulerName(o),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if err != nil {
		ev.Error = err.Error()
		if appErr, ok := errors.AsAppError(err); ok {
			ev.ErrorCode = string(appErr.Code)
		}
		log.Warn("Workflow failed", logger.MergeWithError(fields, err))
	} else {
		log.Debug("Workflow completed", fields)
	}
	emitter.Emit(ctx, ev)
	return result, err
}

func execute(ctx context.Context, g *graph.Graph, execinfo map[string]any, o *options, registry *task.Registry, log *logger.Logger) (Result, error) {
	if err := plan.Validate(g); err != nil {
		return nil, err
	}
	p, err := plan.Build(g, plan.Params{
		VarInfo:     o.varInfo,
		ExecInfo:    execinfo,
		TaskOptions: o.taskOptions,
	})
	if err != nil {
		return nil, err
	}
	outputs, err := graph.ParseOutputs(g, o.outputs)
	if err != nil {
		return nil, err
	}

	inv := invoker.New(registry, log)
	defer inv.Close()
	b, err := backend.Select(backend.Config{
		Scheduler: o.scheduler,
		Options:   o.schedulerOptions,
		Client:    o.client,
		Runner:    inv,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	ctx, op := observability.StartOperation(ctx, observability.SpanExecution, observability.KindExecution, b.Name(),
		attribute.String(observability.AttrJobID, events.JobID(execinfo)),
		attribute.String(observability.AttrWorkflowID, events.WorkflowID(execinfo)),
		attribute.String(observability.AttrScheduler, b.Name()),
	)
	results, err := b.Execute(ctx, p, p.NodeIDs, graph.OutputNodeIDs(outputs))
	op.End(ctx, err)
	if err != nil {
		return nil, err
	}
	return Assemble(results, outputs, o.merge)
}

func schedulerName(o *options) string {
	switch {
	case o.client != nil:
		return backend.SchedulerCluster
	case o.scheduler == "":
		return "sequential"
	default:
		return o.scheduler
	}
}
