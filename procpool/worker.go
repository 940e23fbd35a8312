package procpool

import (
	"context"
	"os"

	"github.com/kbukum/taskflow/invoker"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/task"
)

// EnvWorker marks a process as a pool worker. Its value is the pool context.
const EnvWorker = "TASKFLOW_PROCPOOL_WORKER"

// Pool contexts.
const (
	// ContextSpawn starts a fresh worker process per task.
	ContextSpawn = "spawn"
	// ContextPersistent reuses long-lived worker processes across tasks.
	ContextPersistent = "persistent"
)

// MaybeServe turns the current process into a pool worker when EnvWorker
// is set, and exits when done. Call it first thing in main (or TestMain)
// with the registry the worker should execute against.
func MaybeServe(registry *task.Registry) {
	mode := os.Getenv(EnvWorker)
	if mode == "" {
		return
	}

	level := os.Getenv("TASKFLOW_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	log := logger.New(&logger.Config{Level: level, Format: "json", Output: "stderr"}, "taskflow-worker").
		WithFields(logger.Fields(logger.FieldWorker, os.Getpid()))

	inv := invoker.New(registry, log)
	err := Serve(context.Background(), os.Stdin, os.Stdout, inv, mode == ContextSpawn)
	_ = inv.Close()
	if err != nil {
		log.Error("Worker stopped", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
	os.Exit(0)
}
