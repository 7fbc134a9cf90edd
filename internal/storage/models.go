package storage

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/workflowkit/engine/pkg/models"
)

// workflowRow stores a whole Workflow as a single jsonb document: nodes,
// edges, and settings are never independently versioned or queried, so
// normalizing them into child tables would only add join cost with no
// corresponding read pattern.
type workflowRow struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID          string                 `bun:"id,pk"`
	Name        string                 `bun:"name,notnull"`
	Description string                 `bun:"description"`
	Version     int                    `bun:"version,notnull"`
	Status      string                 `bun:"status,notnull"`
	Tags        []string               `bun:"tags,type:jsonb"`
	Nodes       []*models.Node         `bun:"nodes,type:jsonb"`
	Edges       []*models.Edge         `bun:"edges,type:jsonb"`
	Settings    models.WorkflowSettings `bun:"settings,type:jsonb"`
	Permissions models.WorkflowPermissions `bun:"permissions,type:jsonb"`
	Variables   map[string]interface{} `bun:"variables,type:jsonb"`
	Metadata    map[string]interface{} `bun:"metadata,type:jsonb"`
	CreatedBy   string                 `bun:"created_by"`
	CreatedAt   time.Time              `bun:"created_at,notnull"`
	UpdatedAt   time.Time              `bun:"updated_at,notnull"`
}

func newWorkflowRow(w *models.Workflow) *workflowRow {
	return &workflowRow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Version:     w.Version,
		Status:      string(w.Status),
		Tags:        w.Tags,
		Nodes:       w.Nodes,
		Edges:       w.Edges,
		Settings:    w.Settings,
		Permissions: w.Permissions,
		Variables:   w.Variables,
		Metadata:    w.Metadata,
		CreatedBy:   w.CreatedBy,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func (r *workflowRow) toDomain() *models.Workflow {
	return &models.Workflow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
		Status:      models.WorkflowStatus(r.Status),
		Tags:        r.Tags,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		Settings:    r.Settings,
		Permissions: r.Permissions,
		Variables:   r.Variables,
		Metadata:    r.Metadata,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// projectRow mirrors models.Project one-to-one; a project is already a flat
// document with no nested entities of its own.
type projectRow struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          string            `bun:"id,pk"`
	Name        string            `bun:"name,notnull"`
	Language    string            `bun:"language,notnull"`
	EntryPoint  string            `bun:"entry_point"`
	SourceRef   string            `bun:"source_ref,notnull"`
	Environment map[string]string `bun:"environment,type:jsonb"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func newProjectRow(p *models.Project) *projectRow {
	return &projectRow{
		ID:          p.ID,
		Name:        p.Name,
		Language:    p.Language,
		EntryPoint:  p.EntryPoint,
		SourceRef:   p.SourceRef,
		Environment: p.Environment,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *projectRow) toDomain() *models.Project {
	return &models.Project{
		ID:          r.ID,
		Name:        r.Name,
		Language:    r.Language,
		EntryPoint:  r.EntryPoint,
		SourceRef:   r.SourceRef,
		Environment: r.Environment,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// executionRow is the header record for a workflow execution; its node
// executions live in nodeExecutionRow, replaced wholesale on every Update
// the same way the teacher's ExecutionRepository does (delete then
// reinsert), since node executions are never edited independently of the
// execution that owns them.
type executionRow struct {
	bun.BaseModel `bun:"table:executions,alias:ex"`

	ID              string                 `bun:"id,pk"`
	WorkflowID      string                 `bun:"workflow_id,notnull"`
	WorkflowName    string                 `bun:"workflow_name"`
	WorkflowVersion int                    `bun:"workflow_version"`
	Status          string                 `bun:"status,notnull"`
	TriggerType     string                 `bun:"trigger_type,notnull"`
	Input           map[string]interface{} `bun:"input,type:jsonb"`
	Context         models.ExecutionContext `bun:"context,type:jsonb"`
	Output          map[string]interface{} `bun:"output,type:jsonb"`
	Results         *models.ExecutionResults `bun:"results,type:jsonb"`
	Error           string                 `bun:"error"`
	Progress        models.ExecutionProgress `bun:"progress,type:jsonb"`
	Variables       map[string]interface{} `bun:"variables,type:jsonb"`
	StartedAt       time.Time              `bun:"started_at,notnull"`
	CompletedAt     *time.Time             `bun:"completed_at"`
	Duration        int64                  `bun:"duration"`
	ExecutedBy      string                 `bun:"executed_by"`
	Metadata        map[string]interface{} `bun:"metadata,type:jsonb"`
	CreatedAt       time.Time              `bun:"created_at,notnull"`
	UpdatedAt       time.Time              `bun:"updated_at,notnull"`

	NodeExecutions []*nodeExecutionRow `bun:"rel:has-many,join:id=execution_id"`
}

func newExecutionRow(e *models.Execution) *executionRow {
	now := time.Now().UTC()
	return &executionRow{
		ID:              e.ID,
		WorkflowID:      e.WorkflowID,
		WorkflowName:    e.WorkflowName,
		WorkflowVersion: e.WorkflowVersion,
		Status:          string(e.Status),
		TriggerType:     string(e.TriggerType),
		Input:           e.Input,
		Context:         e.Context,
		Output:          e.Output,
		Results:         e.Results,
		Error:           e.Error,
		Progress:        e.Progress,
		Variables:       e.Variables,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
		Duration:        e.Duration,
		ExecutedBy:      e.ExecutedBy,
		Metadata:        e.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (r *executionRow) toDomain() *models.Execution {
	nodeExecs := make([]*models.NodeExecution, 0, len(r.NodeExecutions))
	for _, ne := range r.NodeExecutions {
		nodeExecs = append(nodeExecs, ne.toDomain())
	}
	return &models.Execution{
		ID:              r.ID,
		WorkflowID:      r.WorkflowID,
		WorkflowName:    r.WorkflowName,
		WorkflowVersion: r.WorkflowVersion,
		Status:          models.ExecutionStatus(r.Status),
		TriggerType:     models.TriggerType(r.TriggerType),
		Input:           r.Input,
		Context:         r.Context,
		Output:          r.Output,
		Results:         r.Results,
		Error:           r.Error,
		Progress:        r.Progress,
		NodeExecutions:  nodeExecs,
		Variables:       r.Variables,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		Duration:        r.Duration,
		ExecutedBy:      r.ExecutedBy,
		Metadata:        r.Metadata,
	}
}

// nodeExecutionRow stores one node's execution record, scoped to its parent
// execution by ExecutionID.
type nodeExecutionRow struct {
	bun.BaseModel `bun:"table:node_executions,alias:ne"`

	ID                 string                     `bun:"id,pk"`
	ExecutionID        string                     `bun:"execution_id,notnull"`
	ProjectExecutionID string                     `bun:"project_execution_id"`
	NodeID             string                     `bun:"node_id,notnull"`
	NodeName           string                     `bun:"node_name"`
	NodeType           string                     `bun:"node_type"`
	Status             string                     `bun:"status,notnull"`
	Input              map[string]interface{}     `bun:"input,type:jsonb"`
	Output             map[string]interface{}     `bun:"output,type:jsonb"`
	Error              *models.NodeExecutionError `bun:"error,type:jsonb"`
	StartedAt          time.Time                  `bun:"started_at,notnull"`
	CompletedAt        *time.Time                 `bun:"completed_at"`
	Duration           int64                      `bun:"duration"`
	RetryCount         int                        `bun:"retry_count"`
	MaxRetries         int                        `bun:"max_retries"`
	WasSkipped         bool                       `bun:"was_skipped"`
	SkipReason         string                     `bun:"skip_reason"`
	Metadata           map[string]interface{}     `bun:"metadata,type:jsonb"`
}

func newNodeExecutionRow(executionID string, ne *models.NodeExecution) *nodeExecutionRow {
	return &nodeExecutionRow{
		ID:                 ne.ID,
		ExecutionID:        executionID,
		ProjectExecutionID: ne.ProjectExecutionID,
		NodeID:             ne.NodeID,
		NodeName:           ne.NodeName,
		NodeType:           ne.NodeType,
		Status:             string(ne.Status),
		Input:              ne.Input,
		Output:             ne.Output,
		Error:              ne.Error,
		StartedAt:          ne.StartedAt,
		CompletedAt:        ne.CompletedAt,
		Duration:           ne.Duration,
		RetryCount:         ne.RetryCount,
		MaxRetries:         ne.MaxRetries,
		WasSkipped:         ne.WasSkipped,
		SkipReason:         ne.SkipReason,
		Metadata:           ne.Metadata,
	}
}

func (r *nodeExecutionRow) toDomain() *models.NodeExecution {
	return &models.NodeExecution{
		ID:                 r.ID,
		ExecutionID:        r.ExecutionID,
		ProjectExecutionID: r.ProjectExecutionID,
		NodeID:             r.NodeID,
		NodeName:           r.NodeName,
		NodeType:           r.NodeType,
		Status:             models.NodeExecutionStatus(r.Status),
		Input:              r.Input,
		Output:             r.Output,
		Error:              r.Error,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		Duration:           r.Duration,
		RetryCount:         r.RetryCount,
		MaxRetries:         r.MaxRetries,
		WasSkipped:         r.WasSkipped,
		SkipReason:         r.SkipReason,
		Metadata:           r.Metadata,
	}
}

// executionLogRow is one append-only log line for an execution, grounded on
// the teacher's event-log table pattern (append, never update).
type executionLogRow struct {
	bun.BaseModel `bun:"table:execution_logs,alias:el"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ExecutionID string    `bun:"execution_id,notnull"`
	Line        string    `bun:"line,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}
