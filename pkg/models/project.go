package models

import "time"

// Project represents a stored program (source code tree) that a project
// node materializes, builds, and executes.
type Project struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Language    string            `json:"language"` // java | python | node | dotnet | script
	EntryPoint  string            `json:"entry_point,omitempty"`
	SourceRef   string            `json:"source_ref"` // file-storage key for the archived source tree
	Environment map[string]string `json:"environment,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProjectExecutionRequest is handed to the Project Execution Engine (C4) by
// a node execution. Input has already been passed through the Data
// Contract Mapper (C5) by the caller.
type ProjectExecutionRequest struct {
	ExecutionID string                 `json:"execution_id"`
	NodeID      string                 `json:"node_id"`
	Project     *Project               `json:"project"`
	Input       map[string]interface{} `json:"input"`
	Config      map[string]interface{} `json:"config,omitempty"`
	TimeoutMs   int64                  `json:"timeout_ms,omitempty"`
	Limits      *ResourceLimits        `json:"limits,omitempty"`
}

// ProjectExecutionResult is the structured outcome of running a project,
// consumed by downstream nodes once re-mapped through the contract.
type ProjectExecutionResult struct {
	ExecutionID   string                 `json:"execution_id"`
	NodeID        string                 `json:"node_id"`
	Status        ProjectExecutionStatus `json:"status"`
	Output        map[string]interface{} `json:"output,omitempty"`
	Stdout        string                 `json:"stdout,omitempty"`
	Stderr        string                 `json:"stderr,omitempty"`
	ExitCode      int                    `json:"exit_code"`
	Error         string                 `json:"error,omitempty"`
	BuildDuration int64                  `json:"build_duration_ms,omitempty"`
	RunDuration   int64                  `json:"run_duration_ms,omitempty"`
	ResourceUsage *ResourceUsage         `json:"resource_usage,omitempty"`
}

// ProjectExecutionStatus is the closed outcome set for a single project run.
type ProjectExecutionStatus string

const (
	ProjectExecutionStatusSucceeded ProjectExecutionStatus = "succeeded"
	ProjectExecutionStatusFailed    ProjectExecutionStatus = "failed"
	ProjectExecutionStatusTimeout   ProjectExecutionStatus = "timeout"
	ProjectExecutionStatusCancelled ProjectExecutionStatus = "cancelled"
)

// ResourceUsage is a best-effort report of what a project execution
// consumed; it is observational, never an enforcement boundary.
type ResourceUsage struct {
	MaxMemoryMB  int64 `json:"max_memory_mb,omitempty"`
	CPUTimeMs    int64 `json:"cpu_time_ms,omitempty"`
	WallTimeMs   int64 `json:"wall_time_ms,omitempty"`
}

// InputFile represents an embedded file lifted out of a data contract
// value by the Data-Contract Mapper (C5): a map carrying a filename and
// content (optionally contentType/fileSize) is recognized as a file shape
// rather than an opaque object.
type InputFile struct {
	FileName    string `json:"filename"`
	Content     string `json:"content"` // base64-encoded
	ContentType string `json:"contentType,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
}
