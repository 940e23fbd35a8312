// Package dag executes an execution plan locally, in dependency order.
//
// An Executor with Parallel <= 1 evaluates nodes inline in topological
// order. With Parallel > 1 a coordinator starts every node whose sources
// have all produced a result, keeping at most Parallel invocations in
// flight. In both modes the first failure stops new nodes from starting
// and is returned once in-flight nodes have finished.
package dag
