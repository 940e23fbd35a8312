package cluster

import (
	"time"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/resilience"
	"github.com/kbukum/taskflow/validation"
)

// pollBackoff paces client and worker polling after Redis errors.
var pollBackoff = resilience.Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: 0.2}

// Options configures a RedisClient.
type Options struct {
	redis.Config `mapstructure:",squash"`

	QueuePrefix string `mapstructure:"queue_prefix"`
	// ResultTTL bounds how long stored results outlive an execution.
	ResultTTL time.Duration `mapstructure:"result_ttl" validate:"gte=0"`
	// PollTimeout bounds each blocking pop.
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"gte=0"`

	// NWorkers starts that many in-process workers for the lifetime of the
	// client, which then needs no external worker fleet.
	NWorkers int `mapstructure:"n_workers" validate:"gte=0"`
	// Resources are the tags advertised by in-process workers.
	Resources map[string]float64 `mapstructure:"resources"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (o *Options) ApplyDefaults() {
	o.Config.ApplyDefaults()
	if o.QueuePrefix == "" {
		o.QueuePrefix = DefaultQueuePrefix
	}
	if o.ResultTTL == 0 {
		o.ResultTTL = time.Hour
	}
	if o.PollTimeout == 0 {
		o.PollTimeout = time.Second
	}
}

// Validate checks the options.
func (o *Options) Validate() error {
	if err := o.Config.Validate(); err != nil {
		return errors.Configuration("invalid cluster options: %v", err)
	}
	if err := validation.Validate(o); err != nil {
		return errors.Configuration("invalid cluster options: %v", err)
	}
	return nil
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// Resources are the advertised resource tags.
	Resources   map[string]float64
	Concurrency int
	QueuePrefix string
	ResultTTL   time.Duration
	PollTimeout time.Duration
	// ID names the worker in results and logs. Defaults to a uuid.
	ID string
}

func (o *WorkerOptions) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.QueuePrefix == "" {
		o.QueuePrefix = DefaultQueuePrefix
	}
	if o.ResultTTL == 0 {
		o.ResultTTL = time.Hour
	}
	if o.PollTimeout == 0 {
		o.PollTimeout = time.Second
	}
}
