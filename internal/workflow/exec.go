package workflow

import (
	"context"
	"fmt"

	"github.com/workflowkit/engine/internal/observer"
	"github.com/workflowkit/engine/pkg/models"
)

// runNode implements §4.6's 8-step node execution sequence, minus the
// semaphore acquire/release which the caller (drive) already owns.
func (e *Engine) runNode(sess *session, node *models.Node) {
	ne := sess.nodeExecution(node.ID)
	if ne == nil {
		return
	}

	startedAt := now()
	sess.withExecution(func(_ *models.Execution) {
		ne.Status = models.NodeExecutionStatusRunning
		ne.StartedAt = startedAt
	})
	e.persistNode(sess, ne)
	e.appendLog(sess.ctx, sess.executionID, fmt.Sprintf("node %s (%s) started", node.ID, node.Name))
	e.notify(sess.ctx, observer.Event{
		Type:        observer.EventTypeNodeStarted,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		NodeID:      &node.ID,
		NodeName:    &node.Name,
		Timestamp:   now(),
	})

	input, err := composeInputs(sess, node, currentContext(sess))
	if err != nil {
		e.failNode(sess, node, ne, "SystemError", err.Error(), 0)
		return
	}
	sess.withExecution(func(_ *models.Execution) { ne.Input = input })

	project, err := e.projects.GetByID(sess.ctx, node.ProjectID)
	if err != nil {
		e.failNode(sess, node, ne, "SystemError", fmt.Sprintf("loading project %s: %v", node.ProjectID, err), 0)
		return
	}

	req := buildRequest(sess.executionID, node, project, input, e.opts.NodeTimeoutCeilingMs)

	result, err := e.safeExecute(sess.ctx, req)
	if err != nil {
		e.failNode(sess, node, ne, "SystemError", err.Error(), 0)
		return
	}

	if result.Status != models.ProjectExecutionStatusSucceeded {
		e.handleNodeFailure(sess, node, ne, result)
		return
	}

	output, err := assembleOutput(result, node)
	if err != nil {
		e.failNode(sess, node, ne, "SystemError", err.Error(), 0)
		return
	}

	completedAt := now()
	sess.withExecution(func(_ *models.Execution) {
		ne.Status = models.NodeExecutionStatusCompleted
		ne.Output = output
		ne.ProjectExecutionID = result.ExecutionID
		ne.CompletedAt = &completedAt
		ne.Duration = ne.CalculateDuration()
	})
	sess.publishOutput(node.ID, output)
	sess.markCompleted(node.ID)
	sess.unmarkFailed(node.ID)
	e.persistNode(sess, ne)
	e.appendLog(sess.ctx, sess.executionID, fmt.Sprintf("node %s (%s) completed in %dms", node.ID, node.Name, ne.Duration))
	e.notify(sess.ctx, observer.Event{
		Type:        observer.EventTypeNodeCompleted,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		NodeID:      &node.ID,
		NodeName:    &node.Name,
		Output:      output,
		DurationMs:  int64Ptr(ne.Duration),
		Timestamp:   now(),
	})
}

// safeExecute recovers a panic escaping the ProjectExecutor as a SystemError,
// per §4.6's "exception escaping a node task is caught at session boundary".
func (e *Engine) safeExecute(ctx context.Context, req *models.ProjectExecutionRequest) (result *models.ProjectExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("project executor panic: %v", r)
		}
	}()
	return e.executor.Execute(ctx, req)
}

func (e *Engine) handleNodeFailure(sess *session, node *models.Node, ne *models.NodeExecution, result *models.ProjectExecutionResult) {
	errorType := "ExecutionError"
	switch result.Status {
	case models.ProjectExecutionStatusTimeout:
		errorType = "Timeout"
	case models.ProjectExecutionStatusCancelled:
		errorType = "Cancelled"
	}
	e.failNode(sess, node, ne, errorType, result.Error, result.ExitCode)
}

func (e *Engine) failNode(sess *session, node *models.Node, ne *models.NodeExecution, errorType, message string, exitCode int) {
	completedAt := now()
	var canRetry bool
	sess.withExecution(func(_ *models.Execution) {
		ne.Status = models.NodeExecutionStatusFailed
		canRetry = ne.RetryCount < ne.MaxRetries
		ne.Error = &models.NodeExecutionError{
			ErrorType: errorType,
			Message:   message,
			ExitCode:  exitCode,
			Timestamp: completedAt,
			CanRetry:  canRetry,
		}
		ne.CompletedAt = &completedAt
		ne.Duration = ne.CalculateDuration()
	})
	sess.markFailed(node.ID)
	e.persistNode(sess, ne)
	e.appendLog(sess.ctx, sess.executionID, fmt.Sprintf("node %s (%s) failed: %s", node.ID, node.Name, message))
	e.notify(sess.ctx, observer.Event{
		Type:        observer.EventTypeNodeFailed,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		NodeID:      &node.ID,
		NodeName:    &node.Name,
		Error:       stringError(message),
		Timestamp:   now(),
	})

	if !sess.options.continueOnError {
		sess.cancel()
	}
}

func currentContext(sess *session) (ctx models.ExecutionContext) {
	sess.withExecution(func(exec *models.Execution) { ctx = exec.Context })
	return
}

func int64Ptr(v int64) *int64 { return &v }
