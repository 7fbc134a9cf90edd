package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/workflowkit/engine/internal/observer"
	"github.com/workflowkit/engine/pkg/models"
)

// drive runs a session's wave-partitioned node schedule to completion and
// finalizes the execution. It is the detached worker §4.6's submission step
// hands off to.
func (e *Engine) drive(sess *session) {
	ctx := sess.ctx

	// Disabled nodes are excluded from the DAG entirely (§4.5's enabled
	// subgraph), so they never appear in a wave for the loop below to reach.
	// Skip them explicitly up front so every node still resolves to a
	// terminal status by finalization.
	for _, node := range sess.workflow.Nodes {
		if !node.IsDisabled {
			continue
		}
		if ne := sess.nodeExecution(node.ID); ne != nil && !ne.Status.IsTerminal() {
			e.skipForDisabled(sess, node)
		}
	}

	waves, err := e.validator.Waves(sess.workflow)
	if err != nil {
		e.failExecution(sess, err.Error())
		return
	}

	for waveIndex, wave := range waves {
		if ctx.Err() != nil {
			break
		}

		e.notify(ctx, observer.Event{
			Type:        observer.EventTypeWaveStarted,
			ExecutionID: sess.executionID,
			WorkflowID:  sess.workflow.ID,
			WaveIndex:   intPtr(waveIndex),
			NodeCount:   intPtr(len(wave)),
			Timestamp:   now(),
		})

		var wg sync.WaitGroup
		for _, nodeID := range wave {
			node, err := sess.workflow.GetNode(nodeID)
			if err != nil || node == nil {
				continue
			}

			if ne := sess.nodeExecution(nodeID); ne != nil && ne.Status.IsTerminal() {
				// Already resolved from a prior run of this session (a Resume
				// redriving completed/skipped nodes) — just sync session
				// state from the persisted record, no re-dispatch.
				if ne.Status == models.NodeExecutionStatusCompleted {
					sess.publishOutput(nodeID, ne.Output)
					sess.markCompleted(nodeID)
				} else if ne.Status == models.NodeExecutionStatusFailed {
					sess.markFailed(nodeID)
				}
				continue
			}

			if !e.dependenciesSatisfied(sess, node) {
				e.skipForUnsatisfiedDependency(sess, node)
				continue
			}

			if err := sess.acquireNode(); err != nil {
				continue
			}

			wg.Add(1)
			go func(n *models.Node) {
				defer wg.Done()
				defer sess.releaseNode()
				e.runNode(sess, n)
			}(node)
		}
		wg.Wait()

		e.notify(ctx, observer.Event{
			Type:        observer.EventTypeWaveCompleted,
			ExecutionID: sess.executionID,
			WorkflowID:  sess.workflow.ID,
			WaveIndex:   intPtr(waveIndex),
			Timestamp:   now(),
		})

		if sess.failedCount() > 0 && !sess.options.continueOnError {
			break
		}
	}

	e.finalize(sess)
}

// dependenciesSatisfied implements §4.6's dependency-satisfaction rule: for
// every incoming enabled edge, its source must be Completed, unless the
// matching input mapping is optional.
func (e *Engine) dependenciesSatisfied(sess *session, node *models.Node) bool {
	for _, edge := range sess.workflow.Edges {
		if edge.To != node.ID || edge.IsDisabled {
			continue
		}
		if sess.isCompleted(edge.From) {
			continue
		}
		if mappingOptional(node, edge.From) {
			continue
		}
		return false
	}
	return true
}

func mappingOptional(node *models.Node, sourceNodeID string) bool {
	for _, m := range node.InputConfig.InputMappings {
		if m.SourceNodeID == sourceNodeID {
			return m.IsOptional
		}
	}
	return false
}

func (e *Engine) skipForDisabled(sess *session, node *models.Node) {
	e.markSkipped(sess, node, "Node is disabled")
}

func (e *Engine) skipForUnsatisfiedDependency(sess *session, node *models.Node) {
	e.markSkipped(sess, node, "Required dependency did not complete")
}

func (e *Engine) markSkipped(sess *session, node *models.Node, reason string) {
	ne := sess.nodeExecution(node.ID)
	if ne == nil {
		return
	}
	completedAt := now()
	sess.withExecution(func(exec *models.Execution) {
		ne.Status = models.NodeExecutionStatusSkipped
		ne.WasSkipped = true
		ne.SkipReason = reason
		ne.CompletedAt = &completedAt
		ne.Duration = ne.CalculateDuration()
	})
	sess.markCompleted(node.ID) // a skipped dependency never blocks further waves re-evaluating it
	e.persistNode(sess, ne)
	e.notify(sess.ctx, observer.Event{
		Type:        observer.EventTypeNodeSkipped,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		NodeID:      &node.ID,
		NodeName:    &node.Name,
		Message:     &reason,
		Timestamp:   now(),
	})
}

func (e *Engine) persistNode(sess *session, ne *models.NodeExecution) {
	if err := e.executions.UpdateNodeExecution(context.Background(), sess.executionID, ne); err != nil && e.logger != nil {
		e.logger.Error("persist node execution failed", "execution_id", sess.executionID, "node_id", ne.NodeID, "error", err)
	}
	progress := sess.updateProgress()
	if err := e.executions.UpdateProgress(context.Background(), sess.executionID, progress); err != nil && e.logger != nil {
		e.logger.Error("persist progress failed", "execution_id", sess.executionID, "error", err)
	}
}

func (e *Engine) failExecution(sess *session, message string) {
	completedAt := now()
	sess.withExecution(func(exec *models.Execution) {
		exec.Status = models.ExecutionStatusFailed
		exec.Error = message
		exec.CompletedAt = &completedAt
		exec.Duration = exec.CalculateDuration()
	})
	sess.withExecution(func(exec *models.Execution) {
		_ = e.executions.Update(context.Background(), exec)
	})
	e.reg.remove(sess.executionID)
	e.notify(sess.ctx, observer.Event{
		Type:        observer.EventTypeExecutionFailed,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		Error:       errorOf(message),
		Timestamp:   now(),
	})
}

// finalize implements §4.6's finalization: decide terminal status, build
// results, persist, and release the session's slot. A node failure with
// continueOnError off takes precedence over ctx.Err(): failNode cancels the
// session's context to stop dispatching further waves, so ctx.Err() is set
// on the same path a Pause/Cancel sets it, and the two must not be confused.
func (e *Engine) finalize(sess *session) {
	failed := sess.failedCount()
	stoppedByFailure := failed > 0 && !sess.options.continueOnError

	if !stoppedByFailure && sess.ctx.Err() != nil {
		e.finalizeCancelledOrPaused(sess)
		return
	}

	var exec *models.Execution
	sess.withExecution(func(ex *models.Execution) { exec = ex })

	finalOutputs := sess.snapshotOutputs()
	completedAt := now()

	sess.withExecution(func(ex *models.Execution) {
		if stoppedByFailure {
			ex.Status = models.ExecutionStatusFailed
			ex.Error = "one or more nodes failed"
		} else {
			ex.Status = models.ExecutionStatusCompleted
		}
		ex.Results = &models.ExecutionResults{
			FinalOutputs:        finalOutputs,
			IntermediateResults: finalOutputs,
			Summary:             summarize(ex),
		}
		ex.CompletedAt = &completedAt
		ex.Duration = ex.CalculateDuration()
	})

	_ = e.executions.Update(context.Background(), exec)
	e.reg.remove(sess.executionID)
	e.appendLog(context.Background(), sess.executionID, summarize(exec))

	evtType := observer.EventTypeExecutionCompleted
	if exec.Status == models.ExecutionStatusFailed {
		evtType = observer.EventTypeExecutionFailed
	}
	e.notify(context.Background(), observer.Event{
		Type:        evtType,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		Timestamp:   now(),
	})
}

func (e *Engine) finalizeCancelledOrPaused(sess *session) {
	var status models.ExecutionStatus
	sess.withExecution(func(ex *models.Execution) { status = ex.Status })
	if status == models.ExecutionStatusPaused {
		return // the paused execution stays as-is; Resume recreates the session
	}

	completedAt := now()
	var exec *models.Execution
	sess.withExecution(func(ex *models.Execution) {
		ex.Status = models.ExecutionStatusCancelled
		ex.CompletedAt = &completedAt
		ex.Duration = ex.CalculateDuration()
		exec = ex
	})
	_ = e.executions.Update(context.Background(), exec)
	e.reg.remove(sess.executionID)
	e.notify(context.Background(), observer.Event{
		Type:        observer.EventTypeExecutionCancelled,
		ExecutionID: sess.executionID,
		WorkflowID:  sess.workflow.ID,
		Timestamp:   now(),
	})
}

func summarize(exec *models.Execution) string {
	completed, failed, skipped := 0, 0, 0
	for _, ne := range exec.NodeExecutions {
		switch ne.Status {
		case models.NodeExecutionStatusCompleted:
			completed++
		case models.NodeExecutionStatusFailed:
			failed++
		case models.NodeExecutionStatusSkipped:
			skipped++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("%d node(s) completed, %d skipped", completed, skipped)
	}
	return fmt.Sprintf("%d node(s) completed, %d failed, %d skipped", completed, failed, skipped)
}

func intPtr(v int) *int { return &v }

func errorOf(msg string) error {
	if msg == "" {
		return nil
	}
	return stringError(msg)
}

type stringError string

func (s stringError) Error() string { return string(s) }
