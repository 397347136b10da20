package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// Default pipeline configuration values.
const (
	DefaultQueueCapacity   = 10
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxSourceErrors = 10
)

// PipelineConfig contains configuration for the producer/consumer pipeline.
type PipelineConfig struct {
	QueueCapacity   int
	PollInterval    time.Duration
	MaxSourceErrors int
	ShutdownTimeout time.Duration
}

// Pipeline moves frames from a source through a bounded queue to the analysis
// stage. One producer goroutine reads the source and one consumer goroutine
// analyzes frames in acquisition order.
//
// The producer closes the queue after its last send; the consumer stops once
// it has received every buffered frame. A shutdown signal stops acquisition
// only, so frames already enqueued are still analyzed.
type Pipeline struct {
	config     PipelineConfig
	source     ports.FrameSource
	analyzer   *Analyzer
	aggregator *Aggregator
	lifecycle  *Lifecycle
	logger     ports.Logger
	emitter    PipelineEventEmitter

	queue chan domain.Frame

	mu           sync.Mutex
	stopProducer context.CancelFunc
	abort        context.CancelFunc
	err          error
	stopOnce     sync.Once

	enqueued  atomic.Uint64
	analyzed  atomic.Uint64
	abandoned atomic.Uint64
}

// NewPipeline creates a pipeline in the Idle state.
func NewPipeline(
	config PipelineConfig,
	source ports.FrameSource,
	analyzer *Analyzer,
	aggregator *Aggregator,
	lifecycle *Lifecycle,
	logger ports.Logger,
	emitter PipelineEventEmitter,
) *Pipeline {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Pipeline{
		config:     config,
		source:     source,
		analyzer:   analyzer,
		aggregator: aggregator,
		lifecycle:  lifecycle,
		logger:     logger,
		emitter:    emitter,
		queue:      make(chan domain.Frame, config.QueueCapacity),
	}
}

// Start launches the producer and consumer goroutines.
// Cancelling ctx acts as a shutdown signal; use Abort for a hard stop.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	abortCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	produceCtx, stopProducer := context.WithCancel(abortCtx)

	p.mu.Lock()
	p.abort = abort
	p.stopProducer = stopProducer
	p.mu.Unlock()

	if err := p.lifecycle.TransitionTo(StateRunning, "start"); err != nil {
		stopProducer()
		abort()
		return domain.ErrAlreadyRunning
	}

	stopWatch := context.AfterFunc(ctx, func() { p.shutdown("context canceled") })

	var g errgroup.Group
	g.Go(func() error { return p.produce(produceCtx) })
	g.Go(func() error { return p.consume(abortCtx) })

	go func() {
		err := g.Wait()
		stopWatch()
		aborted := abortCtx.Err() != nil
		stopProducer()
		abort()
		p.finish(err, aborted)
	}()

	return nil
}

// Stop sends the shutdown signal. Acquisition stops, frames already enqueued
// are analyzed and the open window is flushed. Stop does not wait; calling
// it more than once has no further effect.
func (p *Pipeline) Stop() error {
	if p.lifecycle.State() == StateIdle {
		return domain.ErrNotRunning
	}
	p.shutdown("stop requested")
	return nil
}

// Abort cancels in-flight analysis and sink calls. Windows that are not yet
// persisted are dropped and reported.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	abort := p.abort
	p.mu.Unlock()
	if abort != nil {
		abort()
	}
}

// Shutdown stops the pipeline and waits up to timeout for it to reach Stopped.
// On timeout the pipeline is aborted and ErrShutdownTimeout is returned.
func (p *Pipeline) Shutdown(timeout time.Duration) error {
	if err := p.Stop(); err != nil {
		return err
	}
	if err := p.lifecycle.WaitWithTimeout(timeout); err != nil {
		p.Abort()
		<-p.lifecycle.Stopped()
		return err
	}
	return nil
}

// Wait blocks until the pipeline is Stopped and returns the run error: a fatal
// source error, an abort, or the windows lost to persistence failures.
func (p *Pipeline) Wait() error {
	if p.lifecycle.State() == StateIdle {
		return domain.ErrNotRunning
	}
	<-p.lifecycle.Stopped()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done returns a channel closed when the pipeline reaches Stopped.
func (p *Pipeline) Done() <-chan struct{} {
	return p.lifecycle.Stopped()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return p.lifecycle.State()
}

// QueueDepth returns the number of frames waiting for analysis.
func (p *Pipeline) QueueDepth() int {
	return len(p.queue)
}

// Enqueued returns the number of frames accepted into the queue.
func (p *Pipeline) Enqueued() uint64 {
	return p.enqueued.Load()
}

// Analyzed returns the number of frames the consumer has analyzed.
func (p *Pipeline) Analyzed() uint64 {
	return p.analyzed.Load()
}

// Abandoned returns the number of frames read but not enqueued because the
// shutdown signal arrived first.
func (p *Pipeline) Abandoned() uint64 {
	return p.abandoned.Load()
}

func (p *Pipeline) shutdown(reason string) {
	p.stopOnce.Do(func() {
		_ = p.lifecycle.TransitionTo(StateDraining, reason)

		p.mu.Lock()
		stop := p.stopProducer
		p.mu.Unlock()
		if stop != nil {
			stop()
		}
	})
}

// produce reads frames and enqueues them, blocking while the queue is full.
func (p *Pipeline) produce(ctx context.Context) error {
	reason := "end of stream"
	defer func() {
		if err := p.source.Close(); err != nil {
			p.logger.Warn("failed to close frame source", ports.Err(err))
		}
		p.shutdown(reason)
		close(p.queue)
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			reason = "shutdown signal"
			return nil
		}

		frame, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrEndOfStream) {
				p.logger.Info("frame source exhausted", ports.Uint64("enqueued", p.enqueued.Load()))
				return nil
			}
			if ctx.Err() != nil {
				reason = "shutdown signal"
				return nil
			}

			failures++
			p.logger.Error("read error",
				ports.Err(err),
				ports.Int("consecutive", failures),
			)
			if p.config.MaxSourceErrors > 0 && failures >= p.config.MaxSourceErrors {
				reason = "source failed"
				return fmt.Errorf("frame source: %d consecutive read errors: %w", failures, err)
			}

			t := time.NewTimer(p.config.PollInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				reason = "shutdown signal"
				return nil
			case <-t.C:
				continue
			}
		}
		failures = 0

		if ctx.Err() != nil {
			p.abandon(frame)
			reason = "shutdown signal"
			return nil
		}

		select {
		case p.queue <- frame:
			p.enqueued.Add(1)
		case <-ctx.Done():
			p.abandon(frame)
			reason = "shutdown signal"
			return nil
		}
	}
}

func (p *Pipeline) abandon(frame domain.Frame) {
	p.abandoned.Add(1)
	p.logger.Debug("frame not enqueued, shutdown in progress", ports.Uint64("frame", frame.Seq))
}

// consume analyzes frames until the queue is closed and drained, then flushes
// the open window.
func (p *Pipeline) consume(ctx context.Context) error {
	defer p.drainWindows(ctx)

	for {
		select {
		case frame, ok := <-p.queue:
			if !ok {
				return nil
			}
			p.emitter.OnQueueDepth(len(p.queue))
			p.analyzer.Analyze(ctx, frame)
			p.analyzed.Add(1)
		case <-ctx.Done():
			return fmt.Errorf("pipeline aborted: %w", ctx.Err())
		}
	}
}

func (p *Pipeline) drainWindows(ctx context.Context) {
	dctx, cancel := context.WithTimeout(ctx, p.config.ShutdownTimeout)
	defer cancel()

	if err := p.aggregator.Drain(dctx); err != nil {
		p.logger.Error("drain flush incomplete", ports.Err(err))
	}
}

func (p *Pipeline) finish(runErr error, aborted bool) {
	p.mu.Lock()
	p.err = multierr.Append(runErr, p.aggregator.Err())
	p.mu.Unlock()

	reason := "drained"
	switch {
	case aborted:
		reason = "aborted"
	case runErr != nil:
		reason = "source failed"
	}

	p.logger.Info("pipeline finished",
		ports.Uint64("enqueued", p.enqueued.Load()),
		ports.Uint64("analyzed", p.analyzed.Load()),
		ports.Int("windows_flushed", p.aggregator.Flushed()),
		ports.Int("windows_dropped", p.aggregator.Dropped()),
	)

	p.shutdown(reason)
	_ = p.lifecycle.TransitionTo(StateStopped, reason)
}
