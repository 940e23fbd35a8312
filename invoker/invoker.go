// Package invoker executes the task of one node from its serialized record
// and the results of its sources. It only depends on its arguments and the
// task registry, so it runs the same inline, in a worker process, or on a
// cluster worker.
package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/events"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/observability"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
)

// Invoker runs node records against a task registry.
type Invoker struct {
	registry *task.Registry
	log      *logger.Logger
	emitters *events.Cache
}

// New creates an Invoker. A nil log uses the "invoker" component logger.
func New(registry *task.Registry, log *logger.Logger) *Invoker {
	if log == nil {
		log = logger.Get("invoker")
	}
	return &Invoker{
		registry: registry,
		log:      log,
		emitters: events.NewCache(log),
	}
}

// Run executes the node described by record. upstream holds the results of
// the record's sources, in source order.
func (inv *Invoker) Run(ctx context.Context, record []byte, upstream ...task.Outputs) (task.Outputs, error) {
	rec, err := plan.DecodeRecord(record)
	if err != nil {
		return nil, err
	}
	if len(upstream) != len(rec.SourceIDs) {
		return nil, errors.InternalConsistency("node %q expects %d source results, got %d",
			rec.NodeID, len(rec.SourceIDs), len(upstream))
	}

	ctx = logger.ContextWithNode(logger.ContextWithJob(ctx, events.JobID(rec.ExecInfo)), rec.NodeID)
	taskType := rec.NodeAttrs.TaskType

	emitter, err := inv.emitters.Get(rec.ExecInfo)
	if err != nil {
		return nil, err
	}
	ev := events.New(events.NodeStart, rec.ExecInfo)
	ev.NodeID, ev.Label, ev.TaskType = rec.NodeID, rec.NodeLabel, taskType
	emitter.Emit(ctx, ev)

	ctx, op := observability.StartOperation(ctx, observability.SpanNode, observability.KindNode, taskType,
		attribute.String(observability.AttrNodeID, rec.NodeID),
		attribute.String(observability.AttrTaskType, taskType),
		attribute.String(observability.AttrJobID, ev.JobID),
	)
	start := time.Now()
	out, err := inv.execute(ctx, rec, upstream)
	op.End(ctx, err)

	ev.Type, ev.Time = events.NodeEnd, time.Now()
	if err != nil {
		ev.Error = err.Error()
		if appErr, ok := errors.AsAppError(err); ok {
			ev.ErrorCode = string(appErr.Code)
		}
	}
	emitter.Emit(ctx, ev)

	log := inv.log.WithContext(ctx)
	if err != nil {
		log.Debug("Node failed", logger.MergeWithError(logger.Fields(logger.FieldTaskType, taskType), err))
		return nil, err
	}
	log.Debug("Node finished", logger.Fields(
		logger.FieldTaskType, taskType,
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"outputs", len(out),
	))
	return out, nil
}

func (inv *Invoker) execute(ctx context.Context, rec *plan.Record, upstream []task.Outputs) (task.Outputs, error) {
	dynamic := make(map[string]any)
	for i := range rec.SourceIDs {
		task.MergeInputs(dynamic, rec.LinkAttrs[i], upstream[i])
	}

	factory, ok := inv.registry.Lookup(rec.NodeAttrs.TaskType)
	if !ok {
		return nil, errors.TaskExecution(rec.NodeID,
			fmt.Errorf("no task registered for type %q", rec.NodeAttrs.TaskType))
	}
	t, err := factory(task.Config{
		NodeID:      rec.NodeID,
		Label:       rec.NodeLabel,
		Identifier:  rec.NodeAttrs.TaskIdentifier,
		Parameters:  rec.NodeAttrs.Parameters,
		Inputs:      task.ResolveInputs(rec.NodeAttrs.DefaultInputs, dynamic),
		VarInfo:     rec.VarInfo,
		ExecInfo:    rec.ExecInfo,
		TaskOptions: rec.TaskOptions,
	})
	if err != nil {
		return nil, errors.TaskExecution(rec.NodeID, err)
	}

	out, err := t.Execute(ctx)
	if err != nil {
		return nil, errors.TaskExecution(rec.NodeID, err)
	}
	normalized, err := Normalize(out)
	if err != nil {
		return nil, errors.TaskExecution(rec.NodeID, err)
	}
	return normalized, nil
}

// Close releases the event handlers opened by the invoker.
func (inv *Invoker) Close() error {
	return inv.emitters.Close()
}

// Normalize converts outputs to their JSON transfer form, so results look
// the same whichever backend produced them. nil becomes an empty map.
//
// Every number becomes a float64, so integers beyond 2^53 lose precision
// (9007199254740993 comes back as 9007199254740992). Tasks that pass such
// values should encode them as strings.
func Normalize(out task.Outputs) (task.Outputs, error) {
	if len(out) == 0 {
		return task.Outputs{}, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("outputs are not serializable: %w", err)
	}
	var normalized task.Outputs
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("outputs are not serializable: %w", err)
	}
	return normalized, nil
}
