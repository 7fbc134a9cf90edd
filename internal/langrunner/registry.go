package langrunner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/workflowkit/engine/pkg/models"
)

// Registry holds the set of registered Runners and resolves which one
// handles a given materialized project directory, trying registrations in
// priority order and breaking ties by registration order.
type Registry struct {
	mu      sync.RWMutex
	runners []Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a runner. Re-registering the same language replaces the
// prior registration.
func (r *Registry) Register(runner Runner) error {
	if runner == nil {
		return fmt.Errorf("%w: runner cannot be nil", models.ErrValidationFailed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.runners {
		if existing.Language() == runner.Language() {
			r.runners[i] = runner
			r.sortLocked()
			return nil
		}
	}
	r.runners = append(r.runners, runner)
	r.sortLocked()
	return nil
}

// sortLocked orders runners by descending priority; stable sort preserves
// registration order among equal priorities. Must be called with mu held.
func (r *Registry) sortLocked() {
	sort.SliceStable(r.runners, func(i, j int) bool {
		return r.runners[i].Priority() > r.runners[j].Priority()
	})
}

// Resolve probes registered runners in priority order and returns the
// first one whose CanHandle matches dir.
func (r *Registry) Resolve(ctx context.Context, dir string) (Runner, error) {
	r.mu.RLock()
	runners := make([]Runner, len(r.runners))
	copy(runners, r.runners)
	r.mu.RUnlock()

	for _, runner := range runners {
		if runner.CanHandle(ctx, dir) {
			return runner, nil
		}
	}
	return nil, models.ErrNoRunnerAvailable
}

// Get returns the runner registered for the given language, if any.
func (r *Registry) Get(language string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, runner := range r.runners {
		if runner.Language() == language {
			return runner, true
		}
	}
	return nil, false
}

// List returns the languages of all registered runners, in priority order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.runners))
	for i, runner := range r.runners {
		names[i] = runner.Language()
	}
	return names
}
