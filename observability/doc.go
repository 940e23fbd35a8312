// Package observability provides OpenTelemetry tracing and metrics for
// taskflow executions.
//
// Every execution opens a "taskflow.execute" span and every node invocation a
// "taskflow.node" span; both record counters and durations on the global
// meter. Without InitTracer/InitMeter the global no-op providers are used.
//
//	shutdown, err := observability.Init(ctx, cfg)
//	defer shutdown(ctx)
//
//	ctx, op := observability.StartOperation(ctx, observability.SpanNode, observability.KindNode,
//	    attribute.String(observability.AttrNodeID, "a"))
//	defer func() { op.End(ctx, err) }()
package observability
