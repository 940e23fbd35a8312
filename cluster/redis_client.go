package cluster

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/dag"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/plan"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/resilience"
	"github.com/kbukum/taskflow/task"
)

// RedisClient submits node invocations to Redis queues and collects the
// results workers publish on its done list.
type RedisClient struct {
	rdb     *redis.Client
	owned   bool
	id      string
	opts    Options
	log     *logger.Logger
	results *redis.TypedStore[resultRecord]
	workers *component.Registry

	ctx    context.Context
	cancel context.CancelFunc
	loop   sync.WaitGroup

	mu         sync.Mutex
	seq        int
	byDeferred map[*Deferred]*future
	byKey      map[string]*future
	closed     bool
}

var _ Client = (*RedisClient)(nil)

// Dial connects to the Redis server of opts. runner executes the tasks of
// the in-process workers requested with NWorkers and may be nil otherwise.
func Dial(ctx context.Context, opts Options, runner dag.Runner, log *logger.Logger) (*RedisClient, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("cluster")
	}
	if opts.NWorkers > 0 && runner == nil {
		return nil, errors.Configuration("n_workers requires a task runner")
	}

	rdb, err := redis.New(opts.Config, log)
	if err != nil {
		return nil, err
	}
	if err := rdb.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	c := NewRedisClient(rdb, opts, log)
	c.owned = true

	if opts.NWorkers > 0 {
		c.workers = component.NewRegistry(log)
		for i := 0; i < opts.NWorkers; i++ {
			w := NewWorker(rdb, runner, WorkerOptions{
				Resources:   opts.Resources,
				QueuePrefix: opts.QueuePrefix,
				ResultTTL:   opts.ResultTTL,
				PollTimeout: opts.PollTimeout,
				ID:          c.id + "-w" + strconv.Itoa(i),
			}, log)
			if err := c.workers.Register(w); err != nil {
				_ = c.Close()
				return nil, err
			}
		}
		if err := c.workers.StartAll(ctx); err != nil {
			c.workers = nil
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewRedisClient creates a client over an existing connection, which stays
// owned by the caller.
func NewRedisClient(rdb *redis.Client, opts Options, log *logger.Logger) *RedisClient {
	opts.ApplyDefaults()
	if log == nil {
		log = logger.Get("cluster")
	}
	c := &RedisClient{
		rdb:        rdb,
		id:         uuid.NewString(),
		opts:       opts,
		results:    redis.NewTypedStore[resultRecord](rdb, resultPrefix(opts.QueuePrefix)),
		byDeferred: make(map[*Deferred]*future),
		byKey:      make(map[string]*future),
	}
	c.log = log.WithComponent("cluster").WithFields(logger.Fields("client", c.id))
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.loop.Add(1)
	go c.collect()
	return c
}

// ID returns the client id, which names its done list.
func (c *RedisClient) ID() string { return c.id }

// Get submits every node of p without resources and gathers ids.
func (c *RedisClient) Get(ctx context.Context, p *plan.Plan, ids []string) ([]task.Outputs, error) {
	deferreds := make(map[string]*Deferred, len(p.NodeIDs))
	all := make([]Future, 0, len(p.NodeIDs))
	futures := make(map[string]Future, len(p.NodeIDs))
	for _, id := range p.NodeIDs {
		entry, err := p.Entry(id)
		if err != nil {
			return nil, err
		}
		d := &Deferred{NodeID: id, Record: entry.Record}
		for _, src := range entry.Sources {
			d.Deps = append(d.Deps, deferreds[src])
		}
		deferreds[id] = d
		f, err := c.Compute(ctx, d, nil)
		if err != nil {
			return nil, err
		}
		futures[id] = f
		all = append(all, f)
	}
	requested := make([]Future, len(ids))
	for i, id := range ids {
		f, ok := futures[id]
		if !ok {
			return nil, errors.InternalConsistency("plan has no node %q", id)
		}
		requested[i] = f
	}
	results, err := c.Gather(ctx, requested)
	if err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, all); err != nil {
		return nil, err
	}
	return results, nil
}

// Compute submits d once its dependencies resolved. Dependencies not yet
// submitted are computed without resources.
func (c *RedisClient) Compute(ctx context.Context, d *Deferred, resources map[string]float64) (Future, error) {
	if d == nil {
		return nil, errors.InternalConsistency("nil deferred")
	}
	deps := make([]*future, len(d.Deps))
	for i, dep := range d.Deps {
		f, err := c.Compute(ctx, dep, nil)
		if err != nil {
			return nil, err
		}
		deps[i] = f.(*future)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.ConnectionFailed("cluster", stderrors.New("client is closed"))
	}
	if f, ok := c.byDeferred[d]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.seq++
	f := &future{
		key:    c.id + ":" + strconv.Itoa(c.seq) + ":" + d.NodeID,
		nodeID: d.NodeID,
		record: d.Record,
		tags:   Tags(resources),
		deps:   deps,
		done:   make(chan struct{}),
	}
	for _, dep := range deps {
		if !dep.resolved {
			f.waiting++
			dep.dependents = append(dep.dependents, f)
		}
	}
	c.byDeferred[d] = f
	c.byKey[f.key] = f
	ready := f.waiting == 0
	c.mu.Unlock()

	if ready {
		c.dispatch(f)
	}
	return f, nil
}

// dispatch enqueues f, or fails it when a dependency failed.
func (c *RedisClient) dispatch(f *future) {
	msg := taskMessage{Key: f.key, NodeID: f.nodeID, Record: f.record, Client: c.id}
	for _, dep := range f.deps {
		if dep.err != nil {
			c.resolve(f, nil, dep.err)
			return
		}
		msg.Deps = append(msg.Deps, dep.key)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.resolve(f, nil, errors.Internal(fmt.Errorf("encode task: %w", err)))
		return
	}
	queue := QueueKey(c.opts.QueuePrefix, f.tags)
	if err := c.rdb.Push(c.ctx, queue, string(data)); err != nil {
		c.resolve(f, nil, errors.ConnectionFailed("cluster", err))
		return
	}
	c.log.Debug("Task queued", logger.Fields(logger.FieldNodeID, f.nodeID, logger.FieldQueue, queue))
}

// resolve records the outcome of f and dispatches dependents that became ready.
func (c *RedisClient) resolve(f *future, out task.Outputs, err error) {
	c.mu.Lock()
	if f.resolved {
		c.mu.Unlock()
		return
	}
	f.resolved, f.out, f.err = true, out, err
	close(f.done)
	var ready []*future
	for _, dep := range f.dependents {
		dep.waiting--
		if dep.waiting == 0 {
			ready = append(ready, dep)
		}
	}
	f.dependents = nil
	c.mu.Unlock()

	for _, r := range ready {
		c.dispatch(r)
	}
}

// collect resolves futures announced on the done list.
func (c *RedisClient) collect() {
	defer c.loop.Done()
	key := doneKey(c.opts.QueuePrefix, c.id)
	failures := 0
	for {
		_, resultKey, err := c.rdb.Pop(c.ctx, c.opts.PollTimeout, key)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			if !redis.IsNil(err) {
				failures++
				delay := pollBackoff.Delay(failures)
				c.log.Warn("Polling results failed", logger.Fields(
					logger.FieldError, err.Error(),
					"retry_in", delay.String(),
				))
				if resilience.Sleep(c.ctx, delay) != nil {
					return
				}
			}
			continue
		}
		failures = 0

		c.mu.Lock()
		f, ok := c.byKey[resultKey]
		c.mu.Unlock()
		if !ok {
			continue
		}
		rec, err := c.results.Load(c.ctx, resultKey)
		switch {
		case err != nil:
			c.resolve(f, nil, errors.ConnectionFailed("cluster", err))
		case rec == nil:
			c.resolve(f, nil, errors.InternalConsistency("result of node %q is missing", f.nodeID))
		case rec.Error != nil:
			c.resolve(f, nil, errors.FromPayload(rec.Error))
		default:
			out := rec.Outputs
			if out == nil {
				out = task.Outputs{}
			}
			c.resolve(f, out, nil)
		}
	}
}

// Gather waits for futures and returns their results in order. The first
// failure, in future order, is returned.
func (c *RedisClient) Gather(ctx context.Context, futures []Future) ([]task.Outputs, error) {
	out := make([]task.Outputs, len(futures))
	for i, f := range futures {
		select {
		case <-f.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		res, err := f.Result()
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

// Wait blocks until every future is done and reports the first failure.
func (c *RedisClient) Wait(ctx context.Context, futures []Future) error {
	var first error
	for _, f := range futures {
		select {
		case <-f.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if _, err := f.Result(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close stops result collection, fails unresolved futures and, when the
// client opened the connection, closes it.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var pending []*future
	for _, f := range c.byKey {
		if !f.resolved {
			pending = append(pending, f)
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.loop.Wait()
	for _, f := range pending {
		c.resolve(f, nil, errors.ConnectionFailed("cluster", stderrors.New("client closed")))
	}

	var errs []error
	if c.workers != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, c.workers.StopAll(stopCtx))
		cancel()
	}
	cleanup, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = c.rdb.Del(cleanup, doneKey(c.opts.QueuePrefix, c.id))
	cancel()
	if c.owned {
		errs = append(errs, c.rdb.Close())
	}
	return stderrors.Join(errs...)
}

type future struct {
	key    string
	nodeID string
	record []byte
	tags   []string
	deps   []*future
	done   chan struct{}

	// guarded by RedisClient.mu
	waiting    int
	dependents []*future
	resolved   bool
	out        task.Outputs
	err        error
}

func (f *future) Key() string                   { return f.key }
func (f *future) Done() <-chan struct{}         { return f.done }
func (f *future) Result() (task.Outputs, error) { return f.out, f.err }
