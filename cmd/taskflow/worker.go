package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kbukum/taskflow/cluster"
	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/invoker"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/server"
	"github.com/kbukum/taskflow/task/builtin"
)

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run a cluster worker serving the Redis queues its resources qualify for",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis",
				Usage:   "Redis address or URL (default: redis.addr of the configuration)",
				Sources: cli.EnvVars("TASKFLOW_WORKER_REDIS"),
			},
			&cli.StringSliceFlag{Name: "resource", Aliases: []string{"r"}, Usage: "Advertised resource TAG[=quantity]"},
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"n"}, Usage: "Tasks run at once (default: CPU count)"},
			&cli.StringFlag{Name: "health-addr", Usage: "Listen address of the health endpoint, empty to disable"},
			&cli.StringFlag{Name: "queue-prefix", Usage: "Key namespace shared with clients"},
			&cli.StringFlag{Name: "id", Usage: "Worker id (default: random)", Sources: cli.EnvVars("TASKFLOW_WORKER_ID")},
		},
		Action: runWorker,
	}
}

func runWorker(ctx context.Context, cmd *cli.Command) error {
	cfg, log, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	redisCfg := cfg.Redis
	if target := cmd.String("redis"); target != "" {
		parsed, err := redis.ConfigFromTarget(target)
		if err != nil {
			return err
		}
		redisCfg.Addr, redisCfg.DB = parsed.Addr, parsed.DB
		if parsed.Password != "" {
			redisCfg.Password = parsed.Password
		}
	}
	resources := cfg.Worker.Resources
	if cmd.IsSet("resource") {
		if resources, err = parseResources(cmd.StringSlice("resource")); err != nil {
			return err
		}
	}
	concurrency := cfg.Worker.Concurrency
	if cmd.IsSet("concurrency") {
		concurrency = int(cmd.Int("concurrency"))
	}
	healthAddr := cfg.Worker.HealthAddr
	if cmd.IsSet("health-addr") {
		healthAddr = cmd.String("health-addr")
	}
	prefix := cfg.Worker.QueuePrefix
	if p := cmd.String("queue-prefix"); p != "" {
		prefix = p
	}

	rdb, err := redis.New(redisCfg, log)
	if err != nil {
		return err
	}
	conn := redis.NewComponent(rdb)

	inv := invoker.New(builtin.NewRegistry(), log)
	defer inv.Close()
	worker := cluster.NewWorker(rdb, inv, cluster.WorkerOptions{
		Resources:   resources,
		Concurrency: concurrency,
		QueuePrefix: prefix,
		ID:          cmd.String("id"),
	}, log)

	components := component.NewRegistry(log)
	for _, c := range []component.Component{conn, worker} {
		if err := components.Register(c); err != nil {
			_ = rdb.Close()
			return err
		}
	}
	if healthAddr != "" {
		srv := server.New(server.Config{Addr: healthAddr}, log)
		srv.RegisterDefaultEndpoints(cfg.Name+"-worker", func(ctx context.Context) []component.Health {
			return components.HealthAll(ctx)
		})
		if err := components.Register(srv); err != nil {
			_ = rdb.Close()
			return err
		}
	}

	if err := components.StartAll(ctx); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("start worker: %w", err)
	}
	log.Info("Worker ready", logger.Fields(
		logger.FieldWorker, worker.Name(),
		"queues", worker.Queues(),
		"redis", redisCfg.Addr,
	))

	<-ctx.Done()
	log.Info("Shutting down worker")
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return components.StopAll(stopCtx)
}
