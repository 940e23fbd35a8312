// Package events emits execution events (workflow and node start/end) to the
// handlers configured in an execution's execinfo.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an event.
type Type string

const (
	WorkflowStart Type = "workflow_start"
	WorkflowEnd   Type = "workflow_end"
	NodeStart     Type = "node_start"
	NodeEnd       Type = "node_end"
)

// execinfo keys.
const (
	KeyJobID      = "job_id"
	KeyWorkflowID = "workflow_id"
	KeyHandlers   = "handlers"
)

// Event is one execution event.
type Event struct {
	Type       Type      `json:"type"`
	JobID      string    `json:"job_id"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	TaskType   string    `json:"task_type,omitempty"`
	Time       time.Time `json:"time"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
}

// Fields returns the event as flat string values, the form used by the
// stream handler.
func (e Event) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"type":   string(e.Type),
		"job_id": e.JobID,
		"time":   e.Time.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range map[string]string{
		"workflow_id": e.WorkflowID,
		"node_id":     e.NodeID,
		"label":       e.Label,
		"task_type":   e.TaskType,
		"error":       e.Error,
		"error_code":  e.ErrorCode,
	} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

// PrepareExecInfo returns a copy of execinfo with a job id (a new uuid when
// absent) and the workflow id (when absent) filled in.
func PrepareExecInfo(execinfo map[string]any, workflowID string) map[string]any {
	out := make(map[string]any, len(execinfo)+2)
	for k, v := range execinfo {
		out[k] = v
	}
	if s, _ := out[KeyJobID].(string); s == "" {
		out[KeyJobID] = uuid.NewString()
	}
	if s, _ := out[KeyWorkflowID].(string); s == "" && workflowID != "" {
		out[KeyWorkflowID] = workflowID
	}
	return out
}

// JobID returns the job id of execinfo.
func JobID(execinfo map[string]any) string {
	s, _ := execinfo[KeyJobID].(string)
	return s
}

// WorkflowID returns the workflow id of execinfo.
func WorkflowID(execinfo map[string]any) string {
	s, _ := execinfo[KeyWorkflowID].(string)
	return s
}

// New creates an event of the given type stamped with the ids of execinfo.
func New(t Type, execinfo map[string]any) Event {
	return Event{
		Type:       t,
		JobID:      JobID(execinfo),
		WorkflowID: WorkflowID(execinfo),
		Time:       time.Now(),
	}
}
