package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/workflowkit/engine/internal/logger"
)

// Manager fans out events to every registered Observer without blocking the
// caller: each notification runs in its own goroutine, and a panicking or
// failing observer never affects its siblings or the execution it observes.
type Manager struct {
	observers  []Observer
	logger     *logger.Logger
	mu         sync.RWMutex
	bufferSize int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used to report observer panics/failures.
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithBufferSize sets the manager's notification buffer size hint.
func WithBufferSize(size int) ManagerOption {
	return func(m *Manager) {
		m.bufferSize = size
	}
}

// NewManager creates an observer Manager.
func NewManager(opts ...ManagerOption) *Manager {
	mgr := &Manager{
		observers:  make([]Observer, 0),
		bufferSize: 100,
	}

	for _, opt := range opts {
		opt(mgr)
	}

	return mgr
}

// Register adds an observer. Names must be unique.
func (m *Manager) Register(obs Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.observers {
		if existing.Name() == obs.Name() {
			return fmt.Errorf("observer with name %q already registered", obs.Name())
		}
	}

	m.observers = append(m.observers, obs)
	return nil
}

// Unregister removes an observer by name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, obs := range m.observers {
		if obs.Name() == name {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("observer %q not found", name)
}

// Notify delivers event to every registered observer whose filter accepts
// it. Each observer is notified in its own goroutine; Notify itself never
// blocks on observer work and never returns an error.
func (m *Manager) Notify(ctx context.Context, event Event) {
	m.mu.RLock()
	observersCopy := make([]Observer, len(m.observers))
	copy(observersCopy, m.observers)
	m.mu.RUnlock()

	for _, obs := range observersCopy {
		go m.notifyObserver(ctx, obs, event)
	}
}

func (m *Manager) notifyObserver(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "observer panic recovered",
					"observer", obs.Name(),
					"event_type", string(event.Type),
					"panic", r,
				)
			}
		}
	}()

	filter := obs.Filter()
	if filter != nil && !filter.ShouldNotify(event) {
		return
	}

	if err := obs.OnEvent(ctx, event); err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "observer notification failed",
				"observer", obs.Name(),
				"event_type", string(event.Type),
				"error", err,
			)
		}
	}
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}
