package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/workflowkit/engine/pkg/models"
)

// sessionOptions mirrors §4.6's ExecutionSession.options.
type sessionOptions struct {
	maxConcurrentNodes int
	continueOnError    bool
	retainArtifacts    bool
}

// session is a live ExecutionSession: the mutable state the driver loop and
// every dispatched node task share for a single execution. nodeOutputs,
// completedNodes, and failedNodes are the three concurrent structures §5
// names as single-owner to this session.
type session struct {
	executionID string
	workflow    *models.Workflow
	options     sessionOptions

	mu        sync.Mutex // guards execution below
	execution *models.Execution

	outputsMu  sync.Mutex
	nodeOutputs map[string]map[string]interface{}

	nodeStateMu    sync.Mutex
	completedNodes map[string]bool
	failedNodes    map[string]bool

	nodeSem chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, wf *models.Workflow, exec *models.Execution, opts sessionOptions) *session {
	if opts.maxConcurrentNodes <= 0 {
		opts.maxConcurrentNodes = len(wf.Nodes)
		if opts.maxConcurrentNodes <= 0 {
			opts.maxConcurrentNodes = 1
		}
	}
	ctx, cancel := context.WithCancel(parent)
	return &session{
		executionID:    exec.ID,
		workflow:       wf,
		options:        opts,
		execution:      exec,
		nodeOutputs:    make(map[string]map[string]interface{}),
		completedNodes: make(map[string]bool),
		failedNodes:    make(map[string]bool),
		nodeSem:        make(chan struct{}, opts.maxConcurrentNodes),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *session) acquireNode() error {
	select {
	case s.nodeSem <- struct{}{}:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *session) releaseNode() {
	<-s.nodeSem
}

func (s *session) publishOutput(nodeID string, output map[string]interface{}) {
	s.outputsMu.Lock()
	defer s.outputsMu.Unlock()
	s.nodeOutputs[nodeID] = output
}

func (s *session) getOutput(nodeID string) (map[string]interface{}, bool) {
	s.outputsMu.Lock()
	defer s.outputsMu.Unlock()
	out, ok := s.nodeOutputs[nodeID]
	return out, ok
}

func (s *session) snapshotOutputs() map[string]map[string]interface{} {
	s.outputsMu.Lock()
	defer s.outputsMu.Unlock()
	out := make(map[string]map[string]interface{}, len(s.nodeOutputs))
	for k, v := range s.nodeOutputs {
		out[k] = v
	}
	return out
}

func (s *session) markCompleted(nodeID string) {
	s.nodeStateMu.Lock()
	defer s.nodeStateMu.Unlock()
	s.completedNodes[nodeID] = true
}

func (s *session) markFailed(nodeID string) {
	s.nodeStateMu.Lock()
	defer s.nodeStateMu.Unlock()
	s.failedNodes[nodeID] = true
}

// unmarkFailed clears a node from the failed set — used when a retry turns
// a previously-failed node into a completed one.
func (s *session) unmarkFailed(nodeID string) {
	s.nodeStateMu.Lock()
	defer s.nodeStateMu.Unlock()
	delete(s.failedNodes, nodeID)
}

func (s *session) isCompleted(nodeID string) bool {
	s.nodeStateMu.Lock()
	defer s.nodeStateMu.Unlock()
	return s.completedNodes[nodeID]
}

func (s *session) failedCount() int {
	s.nodeStateMu.Lock()
	defer s.nodeStateMu.Unlock()
	return len(s.failedNodes)
}

// withExecution runs fn with the session's Execution locked, for any
// read/mutate that must not race the driver or a concurrent node task.
func (s *session) withExecution(fn func(exec *models.Execution)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.execution)
}

func (s *session) nodeExecution(nodeID string) *models.NodeExecution {
	var found *models.NodeExecution
	s.withExecution(func(exec *models.Execution) {
		for _, ne := range exec.NodeExecutions {
			if ne.NodeID == nodeID {
				found = ne
				return
			}
		}
	})
	return found
}

func (s *session) updateProgress() models.ExecutionProgress {
	var progress models.ExecutionProgress
	s.withExecution(func(exec *models.Execution) {
		progress.TotalNodes = len(exec.NodeExecutions)
		for _, ne := range exec.NodeExecutions {
			switch ne.Status {
			case models.NodeExecutionStatusCompleted:
				progress.CompletedNodes++
			case models.NodeExecutionStatusFailed:
				progress.FailedNodes++
			case models.NodeExecutionStatusRunning, models.NodeExecutionStatusRetrying:
				progress.RunningNodes++
			}
		}
		progress.Recompute()
		exec.Progress = progress
	})
	return progress
}

// registry is the process-wide store of live sessions, bounded by a
// workflow-capacity semaphore (§4.6/§5's workflowSemaphore).
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	sem      chan struct{}
}

func newRegistry(capacity int) *registry {
	if capacity <= 0 {
		capacity = 10
	}
	return &registry{
		sessions: make(map[string]*session),
		sem:      make(chan struct{}, capacity),
	}
}

func (r *registry) tryAcquire() bool {
	select {
	case r.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (r *registry) release() {
	select {
	case <-r.sem:
	default:
	}
}

func (r *registry) put(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.executionID] = s
}

func (r *registry) get(executionID string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[executionID]
	return s, ok
}

func (r *registry) remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, executionID)
	r.release()
}

func (r *registry) list() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func now() time.Time { return time.Now().UTC() }
