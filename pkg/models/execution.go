package models

import (
	"time"
)

// Execution represents a single workflow execution instance (an
// "ExecutionSession" once it is live in the Workflow Execution Engine).
// WorkflowVersion snapshots the version of the workflow that was running
// at submission time — the authority for the run's shape even if the
// workflow definition is later edited.
type Execution struct {
	ID              string                 `json:"id"`
	WorkflowID      string                 `json:"workflow_id"`
	WorkflowName    string                 `json:"workflow_name,omitempty"`
	WorkflowVersion int                    `json:"workflow_version,omitempty"`
	Status          ExecutionStatus        `json:"status"`
	TriggerType     TriggerType            `json:"trigger_type"`
	Input           map[string]interface{} `json:"input,omitempty"`
	Context         ExecutionContext       `json:"context,omitempty"`
	Output          map[string]interface{} `json:"output,omitempty"`
	Results         *ExecutionResults      `json:"results,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Progress        ExecutionProgress      `json:"progress,omitempty"`
	NodeExecutions  []*NodeExecution       `json:"node_executions,omitempty"`
	Variables       map[string]interface{} `json:"variables,omitempty"`
	Logs            []string               `json:"logs,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	Duration        int64                  `json:"duration,omitempty"` // milliseconds
	ExecutedBy      string                 `json:"executed_by,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionContext carries caller-supplied user inputs keyed by
// "{nodeId}.{inputName}", per each node's declared UserInputs.
type ExecutionContext struct {
	UserInputs map[string]interface{} `json:"user_inputs,omitempty"`
}

// ExecutionRequest is the inbound DTO for submitting a workflow execution.
// It carries `validate` struct tags so the Workflow Validator (C6) can run
// a cheap field-shape pass before the more expensive DAG-level semantic
// checks.
type ExecutionRequest struct {
	WorkflowID  string                 `json:"workflow_id" validate:"required"`
	Context     ExecutionContext       `json:"context"`
	TriggerType TriggerType            `json:"trigger_type" validate:"omitempty,oneof=manual cron api"`
	ExecutedBy  string                 `json:"executed_by,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
}

// ExecutionProgress tracks node-level completion counts for a live
// execution. completedNodes + failedNodes + runningNodes never exceeds
// totalNodes, and percentComplete is derived from completedNodes.
type ExecutionProgress struct {
	TotalNodes      int     `json:"total_nodes"`
	CompletedNodes  int     `json:"completed_nodes"`
	FailedNodes     int     `json:"failed_nodes"`
	RunningNodes    int     `json:"running_nodes"`
	PercentComplete float64 `json:"percent_complete"`
	CurrentPhase    string  `json:"current_phase,omitempty"`
}

// Recompute derives PercentComplete from CompletedNodes/TotalNodes.
func (p *ExecutionProgress) Recompute() {
	if p.TotalNodes == 0 {
		p.PercentComplete = 0
		return
	}
	p.PercentComplete = 100 * float64(p.CompletedNodes) / float64(p.TotalNodes)
}

// ExecutionResults is populated at finalization: finalOutputs maps each
// node to its assembled output, intermediateResults mirrors the live
// session's node-outputs table, and Summary is a short human-readable
// success/failure count.
type ExecutionResults struct {
	FinalOutputs        map[string]map[string]interface{} `json:"final_outputs,omitempty"`
	IntermediateResults map[string]map[string]interface{} `json:"intermediate_results,omitempty"`
	Summary             string                             `json:"summary,omitempty"`
}

// ExecutionStatus represents the status of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
)

// TriggerType records what submitted an execution.
type TriggerType string

const (
	TriggerTypeManual TriggerType = "manual"
	TriggerTypeCron   TriggerType = "cron"
	TriggerTypeAPI    TriggerType = "api"
)

// NodeExecution represents the execution of a single node within a
// workflow execution, including the project execution request/result that
// produced it.
type NodeExecution struct {
	ID                 string                 `json:"id"`
	ExecutionID        string                 `json:"execution_id"`
	ProjectExecutionID string                 `json:"project_execution_id,omitempty"`
	NodeID             string                 `json:"node_id"`
	NodeName           string                 `json:"node_name,omitempty"`
	NodeType           string                 `json:"node_type,omitempty"`
	Status             NodeExecutionStatus    `json:"status"`
	Input              map[string]interface{} `json:"input,omitempty"`
	Output             map[string]interface{} `json:"output,omitempty"`
	Error              *NodeExecutionError    `json:"error,omitempty"`
	StartedAt          time.Time              `json:"started_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	Duration           int64                  `json:"duration,omitempty"` // milliseconds
	RetryCount         int                    `json:"retry_count,omitempty"`
	MaxRetries         int                    `json:"max_retries,omitempty"`
	WasSkipped         bool                   `json:"was_skipped,omitempty"`
	SkipReason         string                 `json:"skip_reason,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// NodeExecutionError is the structured error recorded against a failed or
// system-errored NodeExecution.
type NodeExecutionError struct {
	ErrorType string    `json:"error_type"` // BuildFailed | ExecutionError | Timeout | Cancelled | SystemError
	Message   string    `json:"message"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	CanRetry  bool       `json:"can_retry"`
}

// NodeExecutionStatus represents the status of a node execution.
type NodeExecutionStatus string

const (
	NodeExecutionStatusPending   NodeExecutionStatus = "pending"
	NodeExecutionStatusRunning   NodeExecutionStatus = "running"
	NodeExecutionStatusRetrying  NodeExecutionStatus = "retrying"
	NodeExecutionStatusCompleted NodeExecutionStatus = "completed"
	NodeExecutionStatusFailed    NodeExecutionStatus = "failed"
	NodeExecutionStatusSkipped   NodeExecutionStatus = "skipped"
	NodeExecutionStatusCancelled NodeExecutionStatus = "cancelled"
)

// IsTerminal returns true if the execution status is terminal.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted ||
		s == ExecutionStatusFailed ||
		s == ExecutionStatusCancelled ||
		s == ExecutionStatusTimeout
}

// IsTerminal returns true if the node execution status is terminal.
func (s NodeExecutionStatus) IsTerminal() bool {
	return s == NodeExecutionStatusCompleted ||
		s == NodeExecutionStatusFailed ||
		s == NodeExecutionStatusSkipped ||
		s == NodeExecutionStatusCancelled
}

// GetNodeExecution returns a node execution by node ID.
func (e *Execution) GetNodeExecution(nodeID string) (*NodeExecution, error) {
	for _, ne := range e.NodeExecutions {
		if ne.NodeID == nodeID {
			return ne, nil
		}
	}
	return nil, ErrNodeNotFound
}

// CalculateDuration calculates the execution duration in milliseconds.
func (e *Execution) CalculateDuration() int64 {
	if e.CompletedAt == nil {
		return time.Since(e.StartedAt).Milliseconds()
	}
	return e.CompletedAt.Sub(e.StartedAt).Milliseconds()
}

// CalculateDuration calculates the node execution duration in milliseconds.
func (ne *NodeExecution) CalculateDuration() int64 {
	if ne.CompletedAt == nil {
		return time.Since(ne.StartedAt).Milliseconds()
	}
	return ne.CompletedAt.Sub(ne.StartedAt).Milliseconds()
}

// GetSuccessRate returns the success rate of node executions as a percentage.
func (e *Execution) GetSuccessRate() float64 {
	if len(e.NodeExecutions) == 0 {
		return 0
	}
	completed := 0
	for _, ne := range e.NodeExecutions {
		if ne.Status == NodeExecutionStatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(e.NodeExecutions)) * 100
}

// GetFailedNodes returns a list of failed node executions.
func (e *Execution) GetFailedNodes() []*NodeExecution {
	var failed []*NodeExecution
	for _, ne := range e.NodeExecutions {
		if ne.Status == NodeExecutionStatusFailed {
			failed = append(failed, ne)
		}
	}
	return failed
}

// ExecutionStatistics summarizes a completed or in-flight execution for the
// "Statistics, logs, queries" surface of the Workflow Execution Engine.
type ExecutionStatistics struct {
	ExecutionID            string  `json:"execution_id"`
	TotalNodes             int     `json:"total_nodes"`
	CompletedNodes         int     `json:"completed_nodes"`
	FailedNodes            int     `json:"failed_nodes"`
	SkippedNodes           int     `json:"skipped_nodes"`
	SuccessRate            float64 `json:"success_rate"`
	DurationMs             int64   `json:"duration_ms"`
	TotalExecutionTimeMs   int64   `json:"total_execution_time_ms"`
	TotalRetries           int     `json:"total_retries"`
	AverageNodeDurationMs  float64 `json:"average_node_duration_ms"`
	SlowestNodeID          string  `json:"slowest_node_id,omitempty"`
	FastestNodeID          string  `json:"fastest_node_id,omitempty"`
}
