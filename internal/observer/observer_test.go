package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeFilter_NoTypesAllowsEverything(t *testing.T) {
	f := NewEventTypeFilter()
	assert.Nil(t, f)
}

func TestEventTypeFilter_ShouldNotify(t *testing.T) {
	f := NewEventTypeFilter(EventTypeExecutionStarted, EventTypeExecutionCompleted)

	assert.True(t, f.ShouldNotify(Event{Type: EventTypeExecutionStarted}))
	assert.True(t, f.ShouldNotify(Event{Type: EventTypeExecutionCompleted}))
	assert.False(t, f.ShouldNotify(Event{Type: EventTypeNodeStarted}))
}

func TestExecutionIDFilter_ShouldNotify(t *testing.T) {
	f := NewExecutionIDFilter("exec-1")

	assert.True(t, f.ShouldNotify(Event{ExecutionID: "exec-1"}))
	assert.False(t, f.ShouldNotify(Event{ExecutionID: "exec-2"}))
}

// mockObserver records every event it receives; grounded on the teacher's
// MockObserver test double.
type mockObserver struct {
	name        string
	mu          sync.Mutex
	events      []Event
	shouldFail  bool
	failErr     error
	filter      EventFilter
}

func newMockObserver(name string) *mockObserver {
	return &mockObserver{name: name}
}

func (m *mockObserver) Name() string { return m.name }

func (m *mockObserver) Filter() EventFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

func (m *mockObserver) SetFilter(f EventFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

func (m *mockObserver) SetShouldFail(fail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
	m.failErr = err
}

func (m *mockObserver) OnEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.shouldFail {
		return m.failErr
	}
	return nil
}

func (m *mockObserver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockObserver) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// panicObserver always panics inside OnEvent, to exercise the manager's
// per-observer panic recovery.
type panicObserver struct{ name string }

func (p *panicObserver) Name() string     { return p.name }
func (p *panicObserver) Filter() EventFilter { return nil }
func (p *panicObserver) OnEvent(ctx context.Context, event Event) error {
	panic("observer panic")
}

// slowObserver blocks for delay before returning, to exercise Notify's
// non-blocking fan-out.
type slowObserver struct {
	name  string
	delay time.Duration
}

func (s *slowObserver) Name() string      { return s.name }
func (s *slowObserver) Filter() EventFilter { return nil }
func (s *slowObserver) OnEvent(ctx context.Context, event Event) error {
	time.Sleep(s.delay)
	return nil
}
