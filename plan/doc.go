// Package plan turns a validated task graph into an execution plan: one
// serialized Record per node plus the ids of the nodes it depends on, a
// deterministic topological order and the sink nodes.
//
// A Record is plain data. Any process holding a task registry can execute
// the node from the record bytes and its sources' results alone.
package plan
