package process

import (
	"context"
	"time"
)

// Config holds defaults applied by an Adapter.
type Config struct {
	// GracePeriod is the default grace period for SIGTERM to SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout bounds each one-shot run. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Adapter launches commands with shared defaults.
type Adapter struct {
	config Config
}

// NewAdapter creates a new process adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{config: cfg}
}

func (a *Adapter) apply(cmd Command) Command {
	if cmd.GracePeriod == 0 && a.config.GracePeriod > 0 {
		cmd.GracePeriod = a.config.GracePeriod
	}
	return cmd
}

// Run executes a one-shot command, applying adapter-level defaults.
func (a *Adapter) Run(ctx context.Context, cmd Command) (*Result, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}
	return Run(ctx, a.apply(cmd))
}

// Start launches a long-lived worker with the adapter's grace period. The
// timeout does not apply to workers; callers bound each exchange.
func (a *Adapter) Start(ctx context.Context, cmd Command) (*Worker, error) {
	return Start(ctx, a.apply(cmd))
}
