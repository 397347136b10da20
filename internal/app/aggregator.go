package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// DefaultWindowDuration is the default aggregation window length.
const DefaultWindowDuration = 20 * time.Second

// AggregatorConfig configures the window aggregator.
type AggregatorConfig struct {
	WindowDuration time.Duration
	Retry          RetryPolicy
}

// pendingWindow is a closed window whose flush has failed at least once.
type pendingWindow struct {
	window   *domain.Window
	attempts int
	due      time.Time
	backoff  *backoff
	lastErr  error
}

// Aggregator collects distinct accepted plates in the current time window and
// hands closed windows to the sink on rollover.
//
// An Aggregator is owned by the analysis goroutine and is not safe for
// concurrent use.
type Aggregator struct {
	config  AggregatorConfig
	sink    ports.WindowSink
	clock   ports.Clock
	logger  ports.Logger
	emitter PipelineEventEmitter

	current *domain.Window
	pending []*pendingWindow

	flushed int
	dropped int
	lost    error
}

// NewAggregator creates an aggregator whose first window opens at clock.Now().
func NewAggregator(
	config AggregatorConfig,
	sink ports.WindowSink,
	clock ports.Clock,
	logger ports.Logger,
	emitter PipelineEventEmitter,
) *Aggregator {
	if config.WindowDuration <= 0 {
		config.WindowDuration = DefaultWindowDuration
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = DefaultFlushMaxAttempts
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Aggregator{
		config:  config,
		sink:    sink,
		clock:   clock,
		logger:  logger,
		emitter: emitter,
		current: domain.NewWindow(clock.Now()),
	}
}

// Offer records plate in the current window. Offering a plate already present
// has no effect. Returns true if the plate was new to the window.
func (a *Aggregator) Offer(plate string, eventTime time.Time) bool {
	added := a.current.Offer(plate)
	if added {
		a.logger.Debug("plate accepted",
			ports.String("plate", plate),
			ports.String("window", a.current.ID),
			ports.Time("at", eventTime),
		)
	}
	return added
}

// MaybeRollover closes the current window when it has been open for at least
// the window duration, flushes it and opens a new window at now. Pending
// windows whose retry is due are attempted first.
// Returns true if a rollover happened.
func (a *Aggregator) MaybeRollover(ctx context.Context, now time.Time) bool {
	a.retryPending(ctx, now)

	if a.current.Elapsed(now) < a.config.WindowDuration {
		return false
	}

	closed := a.current
	closed.Close(now)
	a.current = domain.NewWindow(now)

	if closed.Empty() {
		a.logger.Debug("empty window skipped",
			ports.String("window", closed.ID),
			ports.Time("start", closed.Start),
			ports.Time("end", closed.End),
		)
		return true
	}

	pw := &pendingWindow{
		window:  closed,
		backoff: newBackoff(a.config.Retry.Initial, a.config.Retry.Max),
	}
	if !a.attempt(ctx, pw) {
		a.schedule(pw, now)
	}
	return true
}

// retryPending attempts every pending window whose retry is due, oldest first.
func (a *Aggregator) retryPending(ctx context.Context, now time.Time) {
	if len(a.pending) == 0 {
		return
	}

	remaining := a.pending[:0]
	for _, pw := range a.pending {
		if now.Before(pw.due) {
			remaining = append(remaining, pw)
			continue
		}
		if a.attempt(ctx, pw) {
			continue
		}
		if pw.attempts >= a.config.Retry.MaxAttempts {
			a.drop(pw)
			continue
		}
		pw.due = now.Add(pw.backoff.Next())
		remaining = append(remaining, pw)
	}
	for i := len(remaining); i < len(a.pending); i++ {
		a.pending[i] = nil
	}
	a.pending = remaining
}

// schedule queues a window after its first failed flush.
func (a *Aggregator) schedule(pw *pendingWindow, now time.Time) {
	if pw.attempts >= a.config.Retry.MaxAttempts {
		a.drop(pw)
		return
	}
	pw.due = now.Add(pw.backoff.Next())
	a.pending = append(a.pending, pw)
}

// attempt flushes a closed window once. On success the window is cleared.
func (a *Aggregator) attempt(ctx context.Context, pw *pendingWindow) bool {
	pw.attempts++
	w := pw.window

	start := time.Now()
	err := a.sink.Flush(ctx, w)
	duration := time.Since(start)

	if err != nil {
		pw.lastErr = err
		willRetry := pw.attempts < a.config.Retry.MaxAttempts
		a.logger.Warn("window flush failed",
			ports.Err(err),
			ports.String("window", w.ID),
			ports.Int("plates", w.Len()),
			ports.Int("attempt", pw.attempts),
			ports.Bool("will_retry", willRetry),
		)
		a.emitter.OnFlushError(newWindowEvent(w), err, pw.attempts, willRetry)
		return false
	}

	a.logger.Info("window flushed",
		ports.String("window", w.ID),
		ports.Int("plates", w.Len()),
		ports.Time("start", w.Start),
		ports.Time("end", w.End),
		ports.Int("attempt", pw.attempts),
		ports.Duration("duration", duration),
	)
	a.emitter.OnWindowFlushed(newWindowEvent(w), pw.attempts, duration)

	w.Clear()
	a.flushed++
	return true
}

// drop discards a window whose retries are exhausted, listing its plates.
func (a *Aggregator) drop(pw *pendingWindow) {
	w := pw.window
	err := fmt.Errorf("%w: window %s after %d attempts: %v",
		domain.ErrFlushExhausted, w.ID, pw.attempts, pw.lastErr)

	a.logger.Error("window dropped, plates lost",
		ports.Err(err),
		ports.String("window", w.ID),
		ports.Time("start", w.Start),
		ports.Time("end", w.End),
		ports.Strings("plates", w.Plates()),
	)
	a.emitter.OnWindowDropped(newWindowEvent(w), err)

	w.Clear()
	a.dropped++
	a.lost = multierr.Append(a.lost, err)
}

// Drain closes the current window at the clock's now and flushes it together
// with every pending window, retrying with blocking backoff until each window
// is persisted, its attempts are exhausted or ctx is done. Windows that could
// not be persisted are dropped and reported in the returned error.
func (a *Aggregator) Drain(ctx context.Context) error {
	now := a.clock.Now()
	closed := a.current
	closed.Close(now)
	a.current = domain.NewWindow(now)

	queue := a.pending
	a.pending = nil
	if !closed.Empty() {
		queue = append(queue, &pendingWindow{
			window:  closed,
			backoff: newBackoff(a.config.Retry.Initial, a.config.Retry.Max),
		})
	}

	lostBefore := a.dropped
	var lost error
	for _, pw := range queue {
		if !a.drainOne(ctx, pw) {
			lost = multierr.Append(lost, fmt.Errorf("%w: window %s", domain.ErrFlushExhausted, pw.window.ID))
		}
	}

	if a.dropped > lostBefore {
		a.logger.Error("drain finished with lost windows",
			ports.Int("lost", a.dropped-lostBefore),
			ports.Int("flushed_total", a.flushed),
		)
	}
	return lost
}

func (a *Aggregator) drainOne(ctx context.Context, pw *pendingWindow) bool {
	for pw.attempts < a.config.Retry.MaxAttempts {
		if ctx.Err() != nil {
			if pw.lastErr == nil {
				pw.lastErr = ctx.Err()
			}
			break
		}
		if a.attempt(ctx, pw) {
			return true
		}
		if pw.attempts >= a.config.Retry.MaxAttempts {
			break
		}
		if err := pw.backoff.Wait(ctx); err != nil {
			pw.lastErr = multierr.Append(pw.lastErr, err)
			break
		}
	}
	a.drop(pw)
	return false
}

// Current returns the open window. The returned window must not be modified.
func (a *Aggregator) Current() *domain.Window {
	return a.current
}

// Pending returns the number of closed windows awaiting a retry.
func (a *Aggregator) Pending() int {
	return len(a.pending)
}

// Flushed returns the number of windows persisted so far.
func (a *Aggregator) Flushed() int {
	return a.flushed
}

// Dropped returns the number of windows discarded after exhausting retries.
func (a *Aggregator) Dropped() int {
	return a.dropped
}

// Err returns every window loss recorded so far, combined, or nil.
func (a *Aggregator) Err() error {
	return a.lost
}
