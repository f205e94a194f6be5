// Package metrics defines the interface contract for the metrics sink
// (spec §1/§6: an external collaborator out of scope for this module).
// Line-protocol points per refresh cycle — vehicle counts, single-
// interval counts, per-status-code rail HTTP counts, per-phase refresh
// duration — are emitted through Sink without this package owning a
// network client.
package metrics

import (
	"time"

	"go.uber.org/zap"
)

// Sink receives one measurement per call. A real implementation (e.g.
// an InfluxDB line-protocol writer, as the upstream service this spec
// was distilled from uses) lives outside this module; it only needs to
// satisfy this interface.
type Sink interface {
	Count(measurement, field string, n int, tags map[string]string)
	Duration(measurement, field string, d time.Duration, tags map[string]string)
}

// NopSink discards everything. Useful in tests and when no sink is
// configured.
type NopSink struct{}

func (NopSink) Count(string, string, int, map[string]string)            {}
func (NopSink) Duration(string, string, time.Duration, map[string]string) {}

// LogSink writes each measurement as a structured log line via zap,
// for local runs where standing up a real metrics backend isn't worth
// it.
type LogSink struct {
	Logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Count(measurement, field string, n int, tags map[string]string) {
	fields := []zap.Field{zap.String("measurement", measurement), zap.String("field", field), zap.Int("value", n)}
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	s.Logger.Info("metric", fields...)
}

func (s *LogSink) Duration(measurement, field string, d time.Duration, tags map[string]string) {
	fields := []zap.Field{zap.String("measurement", measurement), zap.String("field", field), zap.Duration("value", d)}
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	s.Logger.Info("metric", fields...)
}
