// Package graph models task graphs: nodes carrying a task type and static
// configuration, and links carrying the data-passing policy between them.
//
// Graphs are loaded from YAML or JSON documents (File, Bytes) or built in code
// and are read-only once loaded. The analysis helpers answer the questions an
// executor asks: predecessors in link order, sinks, cycles, conditional links
// and a deterministic topological order.
//
//	nodes:
//	  - id: a
//	    task_type: constant
//	    default_inputs: [{name: x, value: 1}]
//	  - id: b
//	    task_type: scale
//	links:
//	  - {source: a, target: b, map_all_data: true}
package graph
