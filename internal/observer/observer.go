// Package observer implements non-blocking fan-out of workflow execution
// lifecycle events to any number of registered observers, narrowed to this
// engine's own event set (execution/wave/node transitions).
package observer

import (
	"context"
	"time"
)

// Observer receives workflow execution lifecycle events.
type Observer interface {
	OnEvent(ctx context.Context, event Event) error
	Name() string
	Filter() EventFilter
}

// Event describes a single lifecycle transition within a live execution.
type Event struct {
	Type        EventType
	ExecutionID string
	WorkflowID  string
	Timestamp   time.Time

	NodeID    *string
	NodeName  *string
	WaveIndex *int
	NodeCount *int

	Status string
	Error  error

	Input  map[string]interface{}
	Output map[string]interface{}

	DurationMs *int64
	RetryCount *int

	Message  *string
	Metadata map[string]interface{}
}

// EventType is the dot-notation lifecycle event name.
type EventType string

const (
	EventTypeExecutionStarted   EventType = "execution.started"
	EventTypeExecutionCompleted EventType = "execution.completed"
	EventTypeExecutionFailed    EventType = "execution.failed"
	EventTypeExecutionPaused    EventType = "execution.paused"
	EventTypeExecutionResumed   EventType = "execution.resumed"
	EventTypeExecutionCancelled EventType = "execution.cancelled"
	EventTypeWaveStarted        EventType = "wave.started"
	EventTypeWaveCompleted      EventType = "wave.completed"
	EventTypeNodeStarted        EventType = "node.started"
	EventTypeNodeCompleted      EventType = "node.completed"
	EventTypeNodeFailed         EventType = "node.failed"
	EventTypeNodeSkipped        EventType = "node.skipped"
	EventTypeNodeRetrying       EventType = "node.retrying"
)

// EventFilter decides whether an observer should be notified of an event.
type EventFilter interface {
	ShouldNotify(event Event) bool
}

// EventTypeFilter only notifies for a fixed set of event types.
type EventTypeFilter struct {
	allowed map[EventType]bool
}

// NewEventTypeFilter builds an EventTypeFilter. No types means no filtering.
func NewEventTypeFilter(types ...EventType) EventFilter {
	if len(types) == 0 {
		return nil
	}
	allowed := make(map[EventType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &EventTypeFilter{allowed: allowed}
}

// ShouldNotify implements EventFilter.
func (f *EventTypeFilter) ShouldNotify(event Event) bool {
	if f == nil || len(f.allowed) == 0 {
		return true
	}
	return f.allowed[event.Type]
}

// ExecutionIDFilter only notifies for events from one execution.
type ExecutionIDFilter struct {
	executionID string
}

// NewExecutionIDFilter builds an ExecutionIDFilter.
func NewExecutionIDFilter(executionID string) EventFilter {
	return &ExecutionIDFilter{executionID: executionID}
}

// ShouldNotify implements EventFilter.
func (f *ExecutionIDFilter) ShouldNotify(event Event) bool {
	return event.ExecutionID == f.executionID
}
