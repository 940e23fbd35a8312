// Command taskflow runs task graphs and serves as cluster and process pool
// worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kbukum/taskflow/procpool"
	"github.com/kbukum/taskflow/task/builtin"
)

func main() {
	// A process pool started by this binary re-executes it as a worker.
	procpool.MaybeServe(builtin.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "taskflow:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "taskflow",
		Usage:                 "Execute task graphs sequentially, on threads, processes or a Redis cluster",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
				Sources: cli.EnvVars("TASKFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("TASKFLOW_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			workerCommand(),
			versionCommand(),
		},
	}
}
