package observer

import (
	"context"
	"fmt"

	"github.com/workflowkit/engine/internal/logger"
)

// LoggerObserver logs every lifecycle event through the engine's structured
// logger, at error level when the event carries an error and info otherwise.
type LoggerObserver struct {
	name   string
	logger *logger.Logger
	filter EventFilter
}

// LoggerObserverOption configures a LoggerObserver.
type LoggerObserverOption func(*LoggerObserver)

func WithLoggerInstance(l *logger.Logger) LoggerObserverOption {
	return func(o *LoggerObserver) { o.logger = l }
}

func WithLoggerFilter(filter EventFilter) LoggerObserverOption {
	return func(o *LoggerObserver) { o.filter = filter }
}

// NewLoggerObserver builds a LoggerObserver.
func NewLoggerObserver(opts ...LoggerObserverOption) *LoggerObserver {
	obs := &LoggerObserver{name: "logger"}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

func (o *LoggerObserver) Name() string       { return o.name }
func (o *LoggerObserver) Filter() EventFilter { return o.filter }

func (o *LoggerObserver) OnEvent(ctx context.Context, event Event) error {
	if o.logger == nil {
		return nil
	}

	fields := []any{
		"event_type", string(event.Type),
		"execution_id", event.ExecutionID,
		"workflow_id", event.WorkflowID,
		"status", event.Status,
	}
	if event.NodeID != nil {
		fields = append(fields, "node_id", *event.NodeID)
	}
	if event.NodeName != nil {
		fields = append(fields, "node_name", *event.NodeName)
	}
	if event.WaveIndex != nil {
		fields = append(fields, "wave_index", *event.WaveIndex)
	}
	if event.NodeCount != nil {
		fields = append(fields, "node_count", *event.NodeCount)
	}
	if event.DurationMs != nil {
		fields = append(fields, "duration_ms", *event.DurationMs)
	}

	msg := fmt.Sprintf("workflow event: %s", event.Type)
	if event.Error != nil {
		fields = append(fields, "error", event.Error.Error())
		o.logger.ErrorContext(ctx, msg, fields...)
	} else {
		o.logger.InfoContext(ctx, msg, fields...)
	}
	return nil
}
