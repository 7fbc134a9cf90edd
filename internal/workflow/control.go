package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/workflowkit/engine/internal/observer"
	"github.com/workflowkit/engine/pkg/models"
)

// RetryNode implements §4.6's retryNode(executionId, nodeId): requires
// retryCount < maxRetries on a Failed node, re-runs the node-execution
// sequence, replacing its prior output. Works against a live session, or
// reconstructs one from a terminally-Failed execution (the common case: the
// workflow already finalized as Failed because this node had no more
// retries left, or continueOnError was off).
func (e *Engine) RetryNode(ctx context.Context, executionID, nodeID string) error {
	sess, ok := e.reg.get(executionID)
	if !ok {
		s, err := e.reconstructSession(ctx, executionID, models.ExecutionStatusFailed)
		if err != nil {
			return err
		}
		sess = s
	}

	ne := sess.nodeExecution(nodeID)
	if ne == nil {
		return models.ErrNodeNotFound
	}
	if ne.Status != models.NodeExecutionStatusFailed {
		return fmt.Errorf("node %s is not in a failed state", nodeID)
	}
	if ne.RetryCount >= ne.MaxRetries {
		return fmt.Errorf("node %s has exhausted its %d retries", nodeID, ne.MaxRetries)
	}

	node, err := sess.workflow.GetNode(nodeID)
	if err != nil {
		return err
	}

	sess.withExecution(func(_ *models.Execution) {
		ne.RetryCount++
		ne.Status = models.NodeExecutionStatusRetrying
		ne.Error = nil
	})
	e.persistNode(sess, ne)
	e.notify(ctx, observer.Event{
		Type:        observer.EventTypeNodeRetrying,
		ExecutionID: executionID,
		WorkflowID:  sess.workflow.ID,
		NodeID:      &node.ID,
		NodeName:    &node.Name,
		RetryCount:  &ne.RetryCount,
		Timestamp:   now(),
	})

	delay := retryDelay(node.ExecutionSettings.Retry, ne.RetryCount)

	if err := sess.acquireNode(); err != nil {
		return err
	}
	go func() {
		defer sess.releaseNode()
		select {
		case <-time.After(delay):
		case <-sess.ctx.Done():
			return
		}
		e.runNode(sess, node)
		if sess.failedCount() == 0 || sess.options.continueOnError {
			e.maybeRedrive(sess)
		}
	}()
	return nil
}

// retryDelay computes a node's backoff delay before a given retry attempt,
// grounded in the three-strategy retry policy a node's RetryConfig
// declares. attempt is the 1-based retry count just recorded.
func retryDelay(cfg *models.RetryConfig, attempt int) time.Duration {
	if cfg == nil || cfg.InitialDelayMs <= 0 {
		return 0
	}
	var ms int64
	switch cfg.BackoffStrategy {
	case "linear":
		ms = cfg.InitialDelayMs * int64(attempt)
	case "exponential":
		ms = cfg.InitialDelayMs
		for i := 1; i < attempt; i++ {
			ms *= 2
		}
	default: // "constant" or unset
		ms = cfg.InitialDelayMs
	}
	if cfg.MaxDelayMs > 0 && ms > cfg.MaxDelayMs {
		ms = cfg.MaxDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}

// maybeRedrive re-enters the driver loop after an out-of-band retry so any
// nodes that were waiting on the retried node's output get dispatched.
func (e *Engine) maybeRedrive(sess *session) {
	if sess.ctx.Err() != nil {
		return
	}
	e.drive(sess)
}

// SkipNode implements §4.6's skipNode(executionId, nodeId, reason): forces a
// node to Skipped regardless of its current state.
func (e *Engine) SkipNode(ctx context.Context, executionID, nodeID, reason string) error {
	sess, ok := e.reg.get(executionID)
	if !ok {
		return models.ErrExecutionNotFound
	}
	node, err := sess.workflow.GetNode(nodeID)
	if err != nil {
		return err
	}
	e.markSkipped(sess, node, reason)
	return nil
}

// Pause implements §4.6's pause: signals the session's cancellation handle
// and persists Paused. Running nodes observe cancellation at their next
// suspension point.
func (e *Engine) Pause(ctx context.Context, executionID string) error {
	sess, ok := e.reg.get(executionID)
	if !ok {
		return models.ErrExecutionNotFound
	}

	var status models.ExecutionStatus
	sess.withExecution(func(exec *models.Execution) {
		status = exec.Status
		if status == models.ExecutionStatusRunning {
			exec.Status = models.ExecutionStatusPaused
		}
	})
	if status != models.ExecutionStatusRunning {
		return models.ErrExecutionNotPausable
	}

	sess.cancel()
	var exec *models.Execution
	sess.withExecution(func(ex *models.Execution) { exec = ex })
	if err := e.executions.Update(ctx, exec); err != nil {
		return err
	}
	e.notify(ctx, observer.Event{
		Type:        observer.EventTypeExecutionPaused,
		ExecutionID: executionID,
		WorkflowID:  sess.workflow.ID,
		Timestamp:   now(),
	})
	return nil
}

// Resume implements §4.6's resume: only valid from Paused, recreates a
// session from persisted state (completed node outputs reloaded) and
// re-drives remaining nodes.
func (e *Engine) Resume(ctx context.Context, executionID string) error {
	sess, err := e.reconstructSession(ctx, executionID, models.ExecutionStatusPaused)
	if err != nil {
		return err
	}

	e.notify(ctx, observer.Event{
		Type:        observer.EventTypeExecutionResumed,
		ExecutionID: executionID,
		WorkflowID:  sess.workflow.ID,
		Timestamp:   now(),
	})

	go e.drive(sess)
	return nil
}

// reconstructSession rebuilds a live session from a persisted execution that
// is no longer registered, requiring it be in the given expectedStatus
// (ErrExecutionNotResumable/NotFound-style errors are the caller's to map).
// Completed/Failed node outputs and status sets are reloaded so the driver's
// terminal-node guard (in drive) treats them as already resolved.
func (e *Engine) reconstructSession(ctx context.Context, executionID string, expectedStatus models.ExecutionStatus) (*session, error) {
	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != expectedStatus {
		if expectedStatus == models.ExecutionStatusPaused {
			return nil, models.ErrExecutionNotResumable
		}
		return nil, models.ErrExecutionNotFound
	}

	wf, err := e.workflows.GetByID(ctx, exec.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !e.reg.tryAcquire() {
		return nil, models.ErrSessionCapacityExceeded
	}

	exec.Status = models.ExecutionStatusRunning
	maxConcurrentNodes := wf.Settings.MaxConcurrentNodes
	if maxConcurrentNodes <= 0 {
		maxConcurrentNodes = e.opts.DefaultMaxConcurrentNodes
	}
	sess := newSession(context.Background(), wf, exec, sessionOptions{
		maxConcurrentNodes: maxConcurrentNodes,
		continueOnError:    wf.Settings.ContinueOnError,
	})
	for _, ne := range exec.NodeExecutions {
		if ne.Status == models.NodeExecutionStatusCompleted {
			sess.publishOutput(ne.NodeID, ne.Output)
			sess.markCompleted(ne.NodeID)
		}
		if ne.Status == models.NodeExecutionStatusFailed {
			sess.markFailed(ne.NodeID)
		}
	}
	e.reg.put(sess)

	if err := e.executions.Update(ctx, exec); err != nil {
		e.reg.remove(executionID)
		return nil, err
	}
	return sess, nil
}

// Cancel implements §4.6's cancel: signals the session and persists
// Cancelled. Idempotent — cancelling a session already gone is a no-op.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	sess, ok := e.reg.get(executionID)
	if !ok {
		exec, err := e.executions.GetByID(ctx, executionID)
		if err != nil {
			return err
		}
		if exec.Status.IsTerminal() {
			return nil
		}
		exec.Status = models.ExecutionStatusCancelled
		completedAt := now()
		exec.CompletedAt = &completedAt
		exec.Duration = exec.CalculateDuration()
		return e.executions.Update(ctx, exec)
	}
	sess.cancel()
	return nil
}

// GetStatistics implements §4.6's statistics query, matching
// models.ExecutionStatistics.
func (e *Engine) GetStatistics(ctx context.Context, executionID string) (*models.ExecutionStatistics, error) {
	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	stats := &models.ExecutionStatistics{
		ExecutionID: executionID,
		TotalNodes:  len(exec.NodeExecutions),
		DurationMs:  exec.CalculateDuration(),
	}

	var totalDuration, totalRetries int64
	var slowest, fastest *models.NodeExecution
	for _, ne := range exec.NodeExecutions {
		switch ne.Status {
		case models.NodeExecutionStatusCompleted:
			stats.CompletedNodes++
		case models.NodeExecutionStatusFailed:
			stats.FailedNodes++
		case models.NodeExecutionStatusSkipped:
			stats.SkippedNodes++
		}
		totalRetries += int64(ne.RetryCount)
		if ne.Status == models.NodeExecutionStatusCompleted || ne.Status == models.NodeExecutionStatusFailed {
			d := ne.CalculateDuration()
			totalDuration += d
			if slowest == nil || d > slowest.CalculateDuration() {
				slowest = ne
			}
			if fastest == nil || d < fastest.CalculateDuration() {
				fastest = ne
			}
		}
	}

	stats.TotalExecutionTimeMs = totalDuration
	stats.TotalRetries = int(totalRetries)
	if n := stats.CompletedNodes + stats.FailedNodes; n > 0 {
		stats.AverageNodeDurationMs = float64(totalDuration) / float64(n)
	}
	if slowest != nil {
		stats.SlowestNodeID = slowest.NodeID
	}
	if fastest != nil {
		stats.FastestNodeID = fastest.NodeID
	}
	stats.SuccessRate = exec.GetSuccessRate()

	return stats, nil
}

// GetLogs implements §4.6's getLogs(executionId, skip, take) query.
func (e *Engine) GetLogs(ctx context.Context, executionID string, skip, take int) ([]string, error) {
	return e.executions.GetLogs(ctx, executionID, skip, take)
}

// IsComplete reports whether an execution has reached a terminal status.
func (e *Engine) IsComplete(ctx context.Context, executionID string) (bool, error) {
	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return false, err
	}
	return exec.Status.IsTerminal(), nil
}

// GetActiveExecutions returns the executions with a live session, ordered by
// execution ID for deterministic output.
func (e *Engine) GetActiveExecutions() []string {
	sessions := e.reg.list()
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.executionID)
	}
	sort.Strings(ids)
	return ids
}

// Cleanup removes a session from the registry without altering persisted
// state, for reclaiming leaked slots (a session whose driver goroutine died
// without finalizing).
func (e *Engine) Cleanup(executionID string) {
	e.reg.remove(executionID)
}
