package engine

import (
	"github.com/kbukum/taskflow/cluster"
	"github.com/kbukum/taskflow/graph"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/task"
)

// Option configures one Execute call.
type Option func(*options)

// options collects all option values of an Execute call.
type options struct {
	inputs           []graph.InputSpec
	load             graph.LoadOptions
	outputs          []graph.Output
	merge            bool
	varInfo          map[string]any
	execInfo         map[string]any
	taskOptions      map[string]any
	scheduler        string
	schedulerOptions map[string]any
	client           cluster.Client
	registry         *task.Registry
	log              *logger.Logger
}

func resolveOptions(opts []Option) *options {
	o := &options{merge: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithInputs injects static inputs into the loaded graph.
func WithInputs(inputs ...graph.InputSpec) Option {
	return func(o *options) {
		o.inputs = append(o.inputs, inputs...)
	}
}

// WithLoadOptions controls how the graph source is read.
func WithLoadOptions(load graph.LoadOptions) Option {
	return func(o *options) {
		o.load = load
	}
}

// WithOutputs selects the requested outputs. Without it every sink node
// is returned.
func WithOutputs(outputs ...graph.Output) Option {
	return func(o *options) {
		o.outputs = append(o.outputs, outputs...)
	}
}

// WithMergeOutputs chooses between one flat result (the default) and one
// bucket per node id.
func WithMergeOutputs(merge bool) Option {
	return func(o *options) {
		o.merge = merge
	}
}

// WithVarInfo sets the variable info passed to every task.
func WithVarInfo(varInfo map[string]any) Option {
	return func(o *options) {
		o.varInfo = varInfo
	}
}

// WithExecInfo sets the execution info: job and workflow ids and the
// event handlers.
func WithExecInfo(execInfo map[string]any) Option {
	return func(o *options) {
		o.execInfo = execInfo
	}
}

// WithTaskOptions sets the options passed to every task constructor.
func WithTaskOptions(taskOptions map[string]any) Option {
	return func(o *options) {
		o.taskOptions = taskOptions
	}
}

// WithScheduler selects the backend by name or cluster address.
func WithScheduler(scheduler string) Option {
	return func(o *options) {
		o.scheduler = scheduler
	}
}

// WithSchedulerOptions sets the backend options.
func WithSchedulerOptions(schedulerOptions map[string]any) Option {
	return func(o *options) {
		o.schedulerOptions = schedulerOptions
	}
}

// WithClusterClient runs on a live cluster client, which stays open.
func WithClusterClient(client cluster.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRegistry sets the task registry used in this process. Defaults to the
// builtin task types.
func WithRegistry(registry *task.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
