// Package memory provides an in-process window sink.
package memory

import (
	"context"
	"sync"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Sink keeps flushed records in memory. It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	windows []domain.WindowPayload
	records []domain.Record
	fail    error
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Flush stores one record per plate of the window.
func (s *Sink) Flush(ctx context.Context, w *domain.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.windows = append(s.windows, w.Payload())
	s.records = append(s.records, w.Records()...)
	return nil
}

// Close implements ports.WindowSink.
func (s *Sink) Close() error {
	return nil
}

// FailWith makes every later Flush return err. Pass nil to recover.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Windows returns the flushed windows in flush order.
func (s *Sink) Windows() []domain.WindowPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WindowPayload(nil), s.windows...)
}

// Records returns every stored record in flush order.
func (s *Sink) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Record(nil), s.records...)
}
