package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pre-execution errors
const (
	// ErrCodeGraphShape indicates a graph the execution model cannot run (cycles, conditional links).
	ErrCodeGraphShape ErrorCode = "GRAPH_SHAPE"
	// ErrCodeConfiguration indicates an unknown scheduler or invalid scheduler options.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeInvalidInput indicates a malformed graph document or argument.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Execution errors
const (
	// ErrCodeTaskExecution indicates a task failed while executing.
	ErrCodeTaskExecution ErrorCode = "TASK_EXECUTION"
	// ErrCodeInternalConsistency indicates a requested result was never produced.
	ErrCodeInternalConsistency ErrorCode = "INTERNAL_CONSISTENCY"
	// ErrCodeConnectionFailed indicates a backend connection could not be established.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeInternal indicates an unexpected failure inside taskflow.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)
