// Package telemetry defines the fire-and-forget event sink consumed by the
// sync path. Sink failures must never reach the caller, so Record returns
// nothing.
package telemetry

import "go.uber.org/zap"

// Event is one telemetry datum.
type Event struct {
	EventName string            `json:"eventName"`
	TenantID  string            `json:"tenantId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink accepts events. Implementations swallow their own errors.
type Sink interface {
	Record(event Event)
}

// LogSink writes events to the structured log. The default sink for
// deployments without a telemetry backend.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a sink over the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("telemetry")}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Record(event Event) {
	fields := []zap.Field{
		zap.String("event", event.EventName),
		zap.String("tenant_id", event.TenantID),
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String(k, v))
	}
	s.logger.Info("telemetry event", fields...)
}

// NopSink discards all events.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Record(Event) {}
