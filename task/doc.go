// Package task defines what a node executes: the Task interface, the
// factory Registry that resolves a node's task type at execution time, and
// the policy merging upstream results into a node's dynamic inputs.
package task
