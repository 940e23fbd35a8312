package dag

import (
	"time"

	"github.com/kbukum/taskflow/task"
)

// Node statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result holds the outcome of a plan execution.
type Result struct {
	NodeResults map[string]NodeResult
	Duration    time.Duration
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	NodeID   string
	Status   string
	Duration time.Duration
	Output   task.Outputs
	Error    error
}
