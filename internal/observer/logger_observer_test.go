package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/logger"
)

func TestLoggerObserver_Name(t *testing.T) {
	obs := NewLoggerObserver()
	assert.Equal(t, "logger", obs.Name())
}

func TestLoggerObserver_OnEvent_NoLoggerIsANoop(t *testing.T) {
	obs := NewLoggerObserver()
	err := obs.OnEvent(context.Background(), Event{Type: EventTypeNodeStarted})
	assert.NoError(t, err)
}

func TestLoggerObserver_OnEvent_LogsWithoutError(t *testing.T) {
	log := logger.New(config.LoggingConfig{Level: "info", Format: "json"})
	obs := NewLoggerObserver(WithLoggerInstance(log))

	err := obs.OnEvent(context.Background(), Event{
		Type:        EventTypeExecutionStarted,
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Status:      "running",
	})

	assert.NoError(t, err)
}

func TestLoggerObserver_OnEvent_LogsWithError(t *testing.T) {
	log := logger.New(config.LoggingConfig{Level: "info", Format: "json"})
	obs := NewLoggerObserver(WithLoggerInstance(log))

	err := obs.OnEvent(context.Background(), Event{
		Type:        EventTypeNodeFailed,
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Status:      "failed",
		Error:       errors.New("boom"),
	})

	assert.NoError(t, err)
}

func TestLoggerObserver_Filter_UsesConfiguredFilter(t *testing.T) {
	filter := NewEventTypeFilter(EventTypeExecutionFailed)
	obs := NewLoggerObserver(WithLoggerFilter(filter))
	assert.Same(t, filter, obs.Filter())
}
