package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/internal/observer"
	"github.com/workflowkit/engine/pkg/models"
)

// dagValidator is the subset of internal/validate.Validator the engine
// depends on, kept as a local interface so tests can fake it without
// dragging in the go-playground/validator struct-tag pass.
type dagValidator interface {
	ValidateWorkflow(wf *models.Workflow) error
	ValidateExecution(wf *models.Workflow, req *models.ExecutionRequest) error
	ValidatePermissions(wf *models.Workflow, userID string, userRoles []string) error
	Waves(wf *models.Workflow) ([][]string, error)
}

// Options configures an Engine.
type Options struct {
	// MaxConcurrentExecutions bounds how many workflow executions may be
	// live at once (the process-wide workflowSemaphore of §5).
	MaxConcurrentExecutions int
	// DefaultMaxConcurrentNodes is used for a workflow whose Settings
	// don't declare MaxConcurrentNodes.
	DefaultMaxConcurrentNodes int
	// NodeTimeoutCeilingMs caps every node's effective timeout regardless
	// of what the node declares, per §5's "no implicit global workflow
	// timeout, but every child has a system ceiling".
	NodeTimeoutCeilingMs int64
}

// Engine is the Workflow Execution Engine (C7): it submits, drives, and
// tracks workflow executions, delegating persistence to an ExecutionStore,
// workflow/project lookups to their own stores, and each node's actual work
// to a ProjectExecutor (C4).
type Engine struct {
	executions ExecutionStore
	workflows  WorkflowStore
	projects   ProjectStore
	perms      PermissionChecker
	executor   ProjectExecutor
	validator  dagValidator
	observers  *observer.Manager
	logger     *logger.Logger

	opts Options
	reg  *registry
}

// New creates an Engine. validator must implement dagValidator (an
// *validate.Validator satisfies it structurally).
func New(
	executions ExecutionStore,
	workflows WorkflowStore,
	projects ProjectStore,
	perms PermissionChecker,
	executor ProjectExecutor,
	validator dagValidator,
	observers *observer.Manager,
	log *logger.Logger,
	opts Options,
) *Engine {
	if opts.MaxConcurrentExecutions <= 0 {
		opts.MaxConcurrentExecutions = 10
	}
	if opts.DefaultMaxConcurrentNodes <= 0 {
		opts.DefaultMaxConcurrentNodes = 4
	}
	return &Engine{
		executions: executions,
		workflows:  workflows,
		projects:   projects,
		perms:      perms,
		executor:   executor,
		validator:  validator,
		observers:  observers,
		logger:     log,
		opts:       opts,
		reg:        newRegistry(opts.MaxConcurrentExecutions),
	}
}

// Execute implements §4.6's execute(request): validate, persist, register,
// detach a driver, return the persisted execution immediately.
func (e *Engine) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.Execution, error) {
	if req == nil {
		return nil, &models.ValidationError{Field: "request", Message: "execution request is required"}
	}

	wf, err := e.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if err := e.validator.ValidateWorkflow(wf); err != nil {
		ves, ok := err.(models.ValidationErrors)
		if !ok {
			return nil, err
		}
		// Edges touching a disabled node are warnings: the node is skipped
		// at run time, so they do not block the submission.
		var blocking models.ValidationErrors
		for _, ve := range ves {
			if !strings.Contains(ve.Message, "references a disabled node") {
				blocking = append(blocking, ve)
			}
		}
		if len(blocking) > 0 {
			return nil, blocking
		}
	}

	var userRoles []string
	if req.ExecutedBy != "" && e.perms != nil {
		ok, err := e.perms.HasWorkflowPermission(ctx, wf.ID, req.ExecutedBy, "execute")
		if err != nil {
			return nil, fmt.Errorf("permission check: %w", err)
		}
		if !ok {
			return nil, &models.ValidationError{Field: "permissions", Message: fmt.Sprintf("user %s may not execute workflow %s", req.ExecutedBy, wf.ID)}
		}
	} else if req.ExecutedBy != "" {
		if err := e.validator.ValidatePermissions(wf, req.ExecutedBy, userRoles); err != nil {
			return nil, err
		}
	}

	if err := e.validator.ValidateExecution(wf, req); err != nil {
		return nil, err
	}

	if !e.reg.tryAcquire() {
		return nil, models.ErrSessionCapacityExceeded
	}

	exec := newExecution(wf, req)
	if err := e.executions.Create(ctx, exec); err != nil {
		e.reg.release()
		return nil, err
	}

	maxConcurrentNodes := wf.Settings.MaxConcurrentNodes
	if maxConcurrentNodes <= 0 {
		maxConcurrentNodes = e.opts.DefaultMaxConcurrentNodes
	}

	sess := newSession(context.Background(), wf, exec, sessionOptions{
		maxConcurrentNodes: maxConcurrentNodes,
		continueOnError:    wf.Settings.ContinueOnError,
	})
	e.reg.put(sess)

	e.notify(ctx, observer.Event{
		Type:        observer.EventTypeExecutionStarted,
		ExecutionID: exec.ID,
		WorkflowID:  wf.ID,
		Timestamp:   now(),
	})

	go e.drive(sess)

	return exec, nil
}

func newExecution(wf *models.Workflow, req *models.ExecutionRequest) *models.Execution {
	exec := &models.Execution{
		ID:              newID(),
		WorkflowID:      wf.ID,
		WorkflowName:    wf.Name,
		WorkflowVersion: wf.Version,
		Status:          models.ExecutionStatusRunning,
		TriggerType:     req.TriggerType,
		Context:         req.Context,
		Variables:       req.Variables,
		ExecutedBy:      req.ExecutedBy,
		StartedAt:       now(),
	}
	if exec.TriggerType == "" {
		exec.TriggerType = models.TriggerTypeManual
	}
	for _, n := range wf.Nodes {
		exec.NodeExecutions = append(exec.NodeExecutions, &models.NodeExecution{
			ID:          newID(),
			ExecutionID: exec.ID,
			NodeID:      n.ID,
			NodeName:    n.Name,
			NodeType:    string(n.Type),
			Status:      models.NodeExecutionStatusPending,
			MaxRetries:  maxRetries(n),
		})
	}
	exec.Progress.TotalNodes = len(exec.NodeExecutions)
	return exec
}

func maxRetries(n *models.Node) int {
	if n.ExecutionSettings.Retry != nil {
		return n.ExecutionSettings.Retry.MaxAttempts
	}
	return 0
}

func (e *Engine) notify(ctx context.Context, evt observer.Event) {
	if e.observers == nil {
		return
	}
	e.observers.Notify(ctx, evt)
}

// appendLog records a human-readable line against an execution's append-only
// log, best-effort — a logging failure never fails the operation it
// describes.
func (e *Engine) appendLog(ctx context.Context, executionID, line string) {
	if err := e.executions.AppendLog(ctx, executionID, fmt.Sprintf("[%s] %s", now().Format(time.RFC3339), line)); err != nil && e.logger != nil {
		e.logger.Warn("append log failed", "execution_id", executionID, "error", err)
	}
}
