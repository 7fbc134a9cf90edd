// Package workflow implements the Workflow Execution Engine (C7): the
// central scheduler that drives a workflow's DAG of project-executing nodes
// to completion, one ExecutionSession per live run.
package workflow

import (
	"context"

	"github.com/workflowkit/engine/pkg/models"
)

// ExecutionStore is the persistence boundary for Execution/NodeExecution
// records (§6's Execution Store). Consistency: read-your-writes per
// execution id.
type ExecutionStore interface {
	Create(ctx context.Context, exec *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Update(ctx context.Context, exec *models.Execution) error
	UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error
	UpdateProgress(ctx context.Context, id string, progress models.ExecutionProgress) error
	UpdateNodeExecution(ctx context.Context, id string, ne *models.NodeExecution) error
	GetRunning(ctx context.Context) ([]*models.Execution, error)
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	GetHistory(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error)
	AppendLog(ctx context.Context, id string, line string) error
	GetLogs(ctx context.Context, id string, skip, take int) ([]string, error)
}

// WorkflowStore is the persistence boundary for Workflow definitions (§6's
// Workflow Store). Only the subset the execution engine needs — load by id
// — is declared here; create/update/delete/list/search/clone belong to the
// CRUD surface out of this engine's scope.
type WorkflowStore interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
}

// ProjectStore resolves a node's ProjectID to the stored Project record C4
// needs (source reference, language, entry point).
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

// PermissionChecker is §6's Permission Precheck collaborator, consulted by
// Engine.Execute when a submission supplies a caller identity. Without a
// checker, the validator's ValidatePermissions applies the
// creator/allowed-users/allowed-roles rule to that identity instead.
type PermissionChecker interface {
	HasWorkflowPermission(ctx context.Context, workflowID, userID, permission string) (bool, error)
}

// ProjectExecutor is the boundary to the Project Execution Engine (C4) that
// a node execution invokes.
type ProjectExecutor interface {
	Execute(ctx context.Context, req *models.ProjectExecutionRequest) (*models.ProjectExecutionResult, error)
}
