package platewatch

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/internal/adapters/metrics"
	"github.com/bft-labs/platewatch/internal/app"
	"github.com/bft-labs/platewatch/internal/ports"
)

// pluginShutdownTimeout bounds each plugin's Shutdown call.
const pluginShutdownTimeout = 5 * time.Second

// Components are the external collaborators of a pipeline.
// Ownership passes to Platewatch: the source is closed by the producer, the
// sink (and the detector or recognizer when they implement io.Closer) once
// the pipeline has stopped.
type Components struct {
	Source     FrameSource
	Detector   Detector
	Recognizer Recognizer
	Sink       WindowSink
}

// Stats are pipeline counters, safe to read while running.
type Stats struct {
	QueueDepth int
	Enqueued   uint64
	Analyzed   uint64
	Abandoned  uint64
}

// Platewatch reads frames from a source, recognizes license plates and
// persists the distinct plates seen in each time window.
// Use New to create an instance, then Start to begin processing.
type Platewatch struct {
	config     Config
	components Components
	opts       options
	logger     ports.Logger
	emitter    app.PipelineEventEmitter
	lifecycle  *app.Lifecycle

	mu       sync.Mutex
	pipeline *app.Pipeline

	releaseOnce sync.Once
	released    chan struct{}
	releaseErr  error
}

// New creates a Platewatch instance in StateIdle.
// Returns an error wrapping ErrInvalidConfig if the configuration or
// components are invalid.
func New(cfg Config, components Components, opts ...Option) (*Platewatch, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case components.Source == nil:
		return nil, fmt.Errorf("%w: frame source is required", ErrInvalidConfig)
	case components.Detector == nil:
		return nil, fmt.Errorf("%w: detector is required", ErrInvalidConfig)
	case components.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer is required", ErrInvalidConfig)
	case components.Sink == nil:
		return nil, fmt.Errorf("%w: window sink is required", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultOptions().logger
	}

	var (
		emitters   app.MultiEmitter
		lifecycles lifecycleFanout
	)
	if o.eventHandler != nil {
		bridge := eventBridge{handler: o.eventHandler}
		emitters = append(emitters, bridge)
		lifecycles = append(lifecycles, bridge)
	}
	if o.registerer != nil {
		m := metrics.New(o.registerer)
		emitters = append(emitters, m)
		lifecycles = append(lifecycles, m)
	}

	return &Platewatch{
		config:     cfg,
		components: components,
		opts:       o,
		logger:     o.logger,
		emitter:    emitters,
		lifecycle:  app.NewLifecycle(o.logger, lifecycles),
		released:   make(chan struct{}),
	}, nil
}

// Start initializes plugins and launches the pipeline in the background.
// The first window opens now. Cancelling ctx has the same effect as Stop
// without waiting.
func (p *Platewatch) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline != nil || !p.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}

	pluginCfg := PluginConfig{
		Logger: p.logger,
		Status: p.Status,
		Stats:  p.Stats,
	}
	for i, plugin := range p.opts.plugins {
		if err := plugin.Initialize(ctx, pluginCfg); err != nil {
			p.logger.Error("plugin initialization failed",
				ports.String("plugin", plugin.Name()),
				ports.Err(err))
			p.shutdownPlugins(p.opts.plugins[:i])
			return fmt.Errorf("initialize plugin %s: %w", plugin.Name(), err)
		}
		p.logger.Info("plugin initialized", ports.String("plugin", plugin.Name()))
	}

	cfg := p.config
	aggregator := app.NewAggregator(app.AggregatorConfig{
		WindowDuration: cfg.WindowDuration,
		Retry:          cfg.Retry,
	}, p.components.Sink, p.opts.clock, p.logger, p.emitter)

	analyzer := app.NewAnalyzer(app.AnalyzerConfig{
		Profile:   cfg.Profile,
		Artifacts: cfg.Artifacts,
	},
		p.components.Detector,
		app.NewConfidenceFilter(p.components.Recognizer, cfg.ConfidenceThreshold),
		aggregator,
		p.opts.annotator,
		p.opts.clock,
		p.logger,
		p.emitter,
	)

	pipeline := app.NewPipeline(app.PipelineConfig{
		QueueCapacity:   cfg.QueueCapacity,
		PollInterval:    cfg.PollInterval,
		MaxSourceErrors: cfg.MaxSourceErrors,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, p.components.Source, analyzer, aggregator, p.lifecycle, p.logger, p.emitter)

	if err := pipeline.Start(ctx); err != nil {
		p.shutdownPlugins(p.opts.plugins)
		return err
	}
	p.pipeline = pipeline

	p.logger.Info("platewatch started",
		ports.String("profile", cfg.Profile.String()),
		ports.Duration("window", cfg.WindowDuration),
		ports.Int("queue_capacity", cfg.QueueCapacity),
	)

	go func() {
		<-pipeline.Done()
		p.release()
	}()
	return nil
}

// Stop sends the shutdown signal and waits up to the configured shutdown
// timeout for queued frames to be analyzed and the open window to be
// flushed. Returns ErrShutdownTimeout if the pipeline had to be aborted.
func (p *Platewatch) Stop() error {
	pipeline := p.current()
	if pipeline == nil {
		return ErrNotRunning
	}
	err := pipeline.Shutdown(p.config.ShutdownTimeout)
	<-p.released
	return err
}

// Abort stops the pipeline without draining. Windows not yet persisted are
// dropped.
func (p *Platewatch) Abort() {
	if pipeline := p.current(); pipeline != nil {
		pipeline.Abort()
	}
}

// Wait blocks until the pipeline has stopped and its resources are released.
// The error combines a fatal source failure, windows lost to persistence
// failures and errors closing the components.
func (p *Platewatch) Wait() error {
	pipeline := p.current()
	if pipeline == nil {
		return ErrNotRunning
	}
	err := pipeline.Wait()
	<-p.released
	return multierr.Append(err, p.releaseErr)
}

// Done returns a channel that is closed once the pipeline has stopped and
// its resources are released.
func (p *Platewatch) Done() <-chan struct{} {
	return p.released
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (p *Platewatch) Status() State {
	return convertState(p.lifecycle.State())
}

// Stats returns the pipeline counters.
func (p *Platewatch) Stats() Stats {
	pipeline := p.current()
	if pipeline == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth: pipeline.QueueDepth(),
		Enqueued:   pipeline.Enqueued(),
		Analyzed:   pipeline.Analyzed(),
		Abandoned:  pipeline.Abandoned(),
	}
}

func (p *Platewatch) current() *app.Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pipeline
}

// release closes the components and shuts plugins down in reverse order.
func (p *Platewatch) release() {
	p.releaseOnce.Do(func() {
		var err error
		for _, c := range p.closers() {
			err = multierr.Append(err, c.Close())
		}
		if err != nil {
			p.logger.Error("failed to close components", ports.Err(err))
		}
		p.releaseErr = err
		p.shutdownPlugins(p.opts.plugins)
		close(p.released)
	})
}

// closers lists the sink and any closable detector or recognizer, once each.
func (p *Platewatch) closers() []io.Closer {
	closers := []io.Closer{p.components.Sink}
	for _, v := range []interface{}{p.components.Detector, p.components.Recognizer} {
		c, ok := v.(io.Closer)
		if !ok || containsCloser(closers, c) {
			continue
		}
		closers = append(closers, c)
	}
	return closers
}

func containsCloser(closers []io.Closer, c io.Closer) bool {
	if !reflect.TypeOf(c).Comparable() {
		return false
	}
	for _, existing := range closers {
		if reflect.TypeOf(existing) == reflect.TypeOf(c) && existing == c {
			return true
		}
	}
	return false
}

func (p *Platewatch) shutdownPlugins(plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugin := plugins[i]
		ctx, cancel := context.WithTimeout(context.Background(), pluginShutdownTimeout)
		err := plugin.Shutdown(ctx)
		cancel()
		if err != nil {
			p.logger.Error("plugin shutdown failed",
				ports.String("plugin", plugin.Name()),
				ports.Err(err))
			continue
		}
		p.logger.Info("plugin shutdown complete", ports.String("plugin", plugin.Name()))
	}
}
