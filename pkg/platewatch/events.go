package platewatch

import (
	"time"

	"github.com/bft-labs/platewatch/internal/app"
	"github.com/bft-labs/platewatch/internal/domain"
)

// State is the lifecycle state of a Platewatch instance.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

func convertState(s app.State) State {
	return State(s)
}

// Rejection reasons reported in CandidateRejectedEvent.
const (
	RejectLowConfidence   = app.RejectLowConfidence
	RejectGrammar         = app.RejectGrammar
	RejectRecognizerError = app.RejectRecognizerError
	RejectMalformedRegion = app.RejectMalformedRegion
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FrameAnalyzedEvent is emitted after each frame has been analyzed.
type FrameAnalyzedEvent struct {
	Seq      uint64
	Accepted int
	Duration time.Duration
}

// CandidateRejectedEvent is emitted for every discarded reading.
type CandidateRejectedEvent struct {
	Reason string
}

// WindowFlushedEvent is emitted when a window has been persisted.
type WindowFlushedEvent struct {
	ID       string
	Start    time.Time
	End      time.Time
	Plates   []string
	Attempt  int
	Duration time.Duration
}

// FlushErrorEvent is emitted for every failed flush attempt.
type FlushErrorEvent struct {
	ID        string
	Plates    []string
	Error     error
	Attempt   int
	WillRetry bool
}

// WindowDroppedEvent is emitted when a window is discarded after its last
// retry. Its plates are lost.
type WindowDroppedEvent struct {
	ID     string
	Start  time.Time
	End    time.Time
	Plates []string
	Error  error
}

// EventHandler receives notifications about pipeline activity.
// Frame and window events are called synchronously from the analysis
// goroutine; implementations should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFrameAnalyzed(event FrameAnalyzedEvent)
	OnCandidateRejected(event CandidateRejectedEvent)
	OnWindowFlushed(event WindowFlushedEvent)
	OnFlushError(event FlushErrorEvent)
	OnWindowDropped(event WindowDroppedEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
// Embed it to implement only the callbacks you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)             {}
func (BaseEventHandler) OnFrameAnalyzed(FrameAnalyzedEvent)         {}
func (BaseEventHandler) OnCandidateRejected(CandidateRejectedEvent) {}
func (BaseEventHandler) OnWindowFlushed(WindowFlushedEvent)         {}
func (BaseEventHandler) OnFlushError(FlushErrorEvent)               {}
func (BaseEventHandler) OnWindowDropped(WindowDroppedEvent)         {}

// eventBridge adapts an EventHandler to the internal emitter interfaces.
type eventBridge struct {
	app.NopEmitter
	handler EventHandler
}

func (e eventBridge) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e eventBridge) OnFrameAnalyzed(frame domain.Frame, accepted int, d time.Duration) {
	e.handler.OnFrameAnalyzed(FrameAnalyzedEvent{Seq: frame.Seq, Accepted: accepted, Duration: d})
}

func (e eventBridge) OnCandidateRejected(reason string) {
	e.handler.OnCandidateRejected(CandidateRejectedEvent{Reason: reason})
}

func (e eventBridge) OnWindowFlushed(w app.WindowEvent, attempt int, d time.Duration) {
	e.handler.OnWindowFlushed(WindowFlushedEvent{
		ID:       w.ID,
		Start:    w.Start,
		End:      w.End,
		Plates:   w.Plates,
		Attempt:  attempt,
		Duration: d,
	})
}

func (e eventBridge) OnFlushError(w app.WindowEvent, err error, attempt int, willRetry bool) {
	e.handler.OnFlushError(FlushErrorEvent{
		ID:        w.ID,
		Plates:    w.Plates,
		Error:     err,
		Attempt:   attempt,
		WillRetry: willRetry,
	})
}

func (e eventBridge) OnWindowDropped(w app.WindowEvent, err error) {
	e.handler.OnWindowDropped(WindowDroppedEvent{
		ID:     w.ID,
		Start:  w.Start,
		End:    w.End,
		Plates: w.Plates,
		Error:  err,
	})
}

// lifecycleFanout forwards state changes to several emitters.
type lifecycleFanout []app.EventEmitter

func (f lifecycleFanout) OnStateChange(previous, current app.State, reason string) {
	for _, e := range f {
		e.OnStateChange(previous, current, reason)
	}
}
