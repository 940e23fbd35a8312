package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kbukum/taskflow/config"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/observability"
)

// setup loads the service configuration and initializes logging and
// tracing. The returned function flushes the tracer.
func setup(ctx context.Context, cmd *cli.Command) (*config.ServiceConfig, *logger.Logger, func(), error) {
	var cfg config.ServiceConfig
	var opts []config.LoaderOption
	if path := cmd.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig("taskflow", &cfg, opts...); err != nil {
		return nil, nil, nil, err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()
	logger.Register("taskflow", log)

	shutdown, err := observability.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init tracing: %w", err)
	}
	flush := func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Flushing telemetry failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	return &cfg, log, flush, nil
}
