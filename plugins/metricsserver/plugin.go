// Package metricsserver exposes Prometheus metrics and a health endpoint for
// platewatch over HTTP.
package metricsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/platewatch/pkg/log"
	"github.com/bft-labs/platewatch/pkg/platewatch"
)

// Plugin serves /metrics and /healthz for the lifetime of a Platewatch instance.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	addr       string
	path       string
	gatherer   prometheus.Gatherer
	readHeader time.Duration

	// Runtime state
	logger   platewatch.Logger
	status   func() platewatch.State
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// Config holds configuration options for the metrics server plugin.
type Config struct {
	// Addr is the listen address. Default: ":9090"
	Addr string

	// Path serves the metrics. Default: "/metrics"
	Path string

	// Gatherer supplies the metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:     ":9090",
		Path:     "/metrics",
		Gatherer: prometheus.DefaultGatherer,
	}
}

// New creates a new metrics server plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = def.Gatherer
	}

	return &Plugin{
		addr:       cfg.Addr,
		path:       cfg.Path,
		gatherer:   cfg.Gatherer,
		readHeader: 5 * time.Second,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "metricsserver"
}

// Initialize binds the listen address and starts serving.
func (p *Plugin) Initialize(ctx context.Context, cfg platewatch.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = cfg.Logger
	p.status = cfg.Status

	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(p.path, promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", p.health)

	p.listener = ln
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: p.readHeader}
	p.serveErr = make(chan error, 1)

	go func(srv *http.Server, errc chan<- error) {
		errc <- srv.Serve(ln)
	}(p.server, p.serveErr)

	p.logger.Info("metrics server listening",
		log.String("addr", ln.Addr().String()),
		log.String("path", p.path),
	)
	return nil
}

// Shutdown stops the HTTP server, waiting for in-flight scrapes until ctx ends.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	server, serveErr := p.server, p.serveErr
	p.server = nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	if serr := <-serveErr; serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		return serr
	}
	return err
}

// Addr returns the bound address once initialized.
func (p *Plugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// health reports 200 while the pipeline is running or draining.
func (p *Plugin) health(w http.ResponseWriter, r *http.Request) {
	state := platewatch.StateRunning
	if p.status != nil {
		state = p.status()
	}
	code := http.StatusOK
	if state != platewatch.StateRunning && state != platewatch.StateDraining {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprintln(w, state)
}
