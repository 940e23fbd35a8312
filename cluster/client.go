// Package cluster runs plans on remote workers. Submit implements the
// per-node submission algorithm over the Client protocol; RedisClient and
// Worker realize that protocol with Redis queues.
package cluster

import (
	"context"

	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/task"
)

// Deferred is a lazily evaluated node invocation: the node's record plus
// the deferreds producing its source results, in source order.
type Deferred struct {
	NodeID string
	Record []byte
	Deps   []*Deferred
}

// Future is the handle of a submitted computation.
type Future interface {
	Key() string
	// Done is closed once the result is known.
	Done() <-chan struct{}
	// Result returns the outputs or the failure. Only valid after Done.
	Result() (task.Outputs, error)
}

// Client is a connection to a distributed runtime.
type Client interface {
	// Get evaluates the whole plan and returns the results of ids, in order.
	Get(ctx context.Context, p *plan.Plan, ids []string) ([]task.Outputs, error)
	// Compute submits d (and any not yet submitted dependency). A node with
	// resources only runs on a worker advertising every resource tag.
	Compute(ctx context.Context, d *Deferred, resources map[string]float64) (Future, error)
	// Gather waits for futures and returns their results in order.
	Gather(ctx context.Context, futures []Future) ([]task.Outputs, error)
	// Wait blocks until every future is done.
	Wait(ctx context.Context, futures []Future) error
	Close() error
}
