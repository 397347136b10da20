package app

import (
	"time"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Reasons reported with OnCandidateRejected.
const (
	RejectLowConfidence   = "low_confidence"
	RejectGrammar         = "grammar"
	RejectRecognizerError = "recognizer_error"
	RejectMalformedRegion = "malformed_region"
)

// WindowEvent describes a closed window at the time an event is emitted.
// Plates is a copy and stays valid after the window is cleared.
type WindowEvent struct {
	ID     string
	Start  time.Time
	End    time.Time
	Plates []string
}

func newWindowEvent(w *domain.Window) WindowEvent {
	return WindowEvent{ID: w.ID, Start: w.Start, End: w.End, Plates: w.Plates()}
}

// PipelineEventEmitter receives pipeline activity.
// All methods are called from the analysis goroutine and must not block.
type PipelineEventEmitter interface {
	OnFrameAnalyzed(frame domain.Frame, accepted int, duration time.Duration)
	OnCandidateRejected(reason string)
	OnDetectError(err error)
	OnQueueDepth(depth int)
	OnWindowFlushed(window WindowEvent, attempt int, duration time.Duration)
	OnFlushError(window WindowEvent, err error, attempt int, willRetry bool)
	OnWindowDropped(window WindowEvent, err error)
}

// NopEmitter implements PipelineEventEmitter with no-ops.
// Embed it to implement only the callbacks you need.
type NopEmitter struct{}

func (NopEmitter) OnFrameAnalyzed(domain.Frame, int, time.Duration) {}
func (NopEmitter) OnCandidateRejected(string)                       {}
func (NopEmitter) OnDetectError(error)                              {}
func (NopEmitter) OnQueueDepth(int)                                 {}
func (NopEmitter) OnWindowFlushed(WindowEvent, int, time.Duration)  {}
func (NopEmitter) OnFlushError(WindowEvent, error, int, bool)       {}
func (NopEmitter) OnWindowDropped(WindowEvent, error)               {}

// MultiEmitter fans every event out to each emitter in order.
type MultiEmitter []PipelineEventEmitter

func (m MultiEmitter) OnFrameAnalyzed(frame domain.Frame, accepted int, d time.Duration) {
	for _, e := range m {
		e.OnFrameAnalyzed(frame, accepted, d)
	}
}

func (m MultiEmitter) OnCandidateRejected(reason string) {
	for _, e := range m {
		e.OnCandidateRejected(reason)
	}
}

func (m MultiEmitter) OnDetectError(err error) {
	for _, e := range m {
		e.OnDetectError(err)
	}
}

func (m MultiEmitter) OnQueueDepth(depth int) {
	for _, e := range m {
		e.OnQueueDepth(depth)
	}
}

func (m MultiEmitter) OnWindowFlushed(w WindowEvent, attempt int, d time.Duration) {
	for _, e := range m {
		e.OnWindowFlushed(w, attempt, d)
	}
}

func (m MultiEmitter) OnFlushError(w WindowEvent, err error, attempt int, willRetry bool) {
	for _, e := range m {
		e.OnFlushError(w, err, attempt, willRetry)
	}
}

func (m MultiEmitter) OnWindowDropped(w WindowEvent, err error) {
	for _, e := range m {
		e.OnWindowDropped(w, err)
	}
}
