// Package log provides logger decorators used when wiring adapters.
package log

import "github.com/bft-labs/platewatch/internal/ports"

// ScopedLogger prepends a fixed set of fields to every message.
type ScopedLogger struct {
	next   ports.Logger
	fields []ports.Field
}

// With returns a logger that adds fields to every message logged through next.
// Scoping a ScopedLogger again flattens the field lists.
func With(next ports.Logger, fields ...ports.Field) *ScopedLogger {
	if s, ok := next.(*ScopedLogger); ok {
		merged := make([]ports.Field, 0, len(s.fields)+len(fields))
		merged = append(merged, s.fields...)
		merged = append(merged, fields...)
		return &ScopedLogger{next: s.next, fields: merged}
	}
	return &ScopedLogger{next: next, fields: fields}
}

// Component scopes next to a named component.
func Component(next ports.Logger, name string) *ScopedLogger {
	return With(next, ports.String("component", name))
}

func (s *ScopedLogger) Debug(msg string, fields ...ports.Field) {
	s.next.Debug(msg, s.merge(fields)...)
}

func (s *ScopedLogger) Info(msg string, fields ...ports.Field) {
	s.next.Info(msg, s.merge(fields)...)
}

func (s *ScopedLogger) Warn(msg string, fields ...ports.Field) {
	s.next.Warn(msg, s.merge(fields)...)
}

func (s *ScopedLogger) Error(msg string, fields ...ports.Field) {
	s.next.Error(msg, s.merge(fields)...)
}

func (s *ScopedLogger) merge(fields []ports.Field) []ports.Field {
	if len(fields) == 0 {
		return s.fields
	}
	out := make([]ports.Field, 0, len(s.fields)+len(fields))
	out = append(out, s.fields...)
	return append(out, fields...)
}
