package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bft-labs/platewatch/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// flushedWindow is a snapshot of a window taken by fakeSink at flush time.
type flushedWindow struct {
	id     string
	start  time.Time
	end    time.Time
	plates []string
}

var errSinkUnavailable = errors.New("sink unavailable")

// fakeSink records flushed windows and fails on demand.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	failAll  bool
	calls    int
	windows  []flushedWindow
	closed   bool
}

func (s *fakeSink) Flush(ctx context.Context, w *domain.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failAll {
		return errSinkUnavailable
	}
	if s.failures > 0 {
		s.failures--
		return errSinkUnavailable
	}
	s.windows = append(s.windows, flushedWindow{
		id:     w.ID,
		start:  w.Start,
		end:    w.End,
		plates: w.Plates(),
	})
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) Windows() []flushedWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flushedWindow(nil), s.windows...)
}

func (s *fakeSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSink) SetFailAll(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = v
}

// recordingEmitter captures window events.
type recordingEmitter struct {
	NopEmitter
	mu       sync.Mutex
	flushed  []WindowEvent
	dropped  []WindowEvent
	rejected map[string]int
}

func (e *recordingEmitter) OnWindowFlushed(w WindowEvent, attempt int, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushed = append(e.flushed, w)
}

func (e *recordingEmitter) OnWindowDropped(w WindowEvent, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropped = append(e.dropped, w)
}

func (e *recordingEmitter) OnCandidateRejected(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rejected == nil {
		e.rejected = make(map[string]int)
	}
	e.rejected[reason]++
}

func (e *recordingEmitter) Rejected(reason string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rejected[reason]
}
