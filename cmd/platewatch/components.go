package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/internal/adapters/fs"
	"github.com/bft-labs/platewatch/internal/adapters/fullframe"
	httpAdapter "github.com/bft-labs/platewatch/internal/adapters/http"
	"github.com/bft-labs/platewatch/internal/adapters/kafka"
	logAdapter "github.com/bft-labs/platewatch/internal/adapters/log"
	"github.com/bft-labs/platewatch/internal/adapters/mqtt"
	"github.com/bft-labs/platewatch/internal/adapters/ocr"
	"github.com/bft-labs/platewatch/internal/adapters/redis"
	"github.com/bft-labs/platewatch/internal/adapters/sqlite"
	"github.com/bft-labs/platewatch/internal/adapters/video"
	"github.com/bft-labs/platewatch/internal/adapters/worker"
	"github.com/bft-labs/platewatch/internal/cliconfig"
	"github.com/bft-labs/platewatch/pkg/log"
	"github.com/bft-labs/platewatch/pkg/platewatch"
)

// Minimum plate size, in pixels, reported by the cascade detector.
const (
	cascadeMinWidth  = 60
	cascadeMinHeight = 20
)

// components tracks everything opened so far so a failed build can be
// unwound.
type components struct {
	platewatch.Components
	opened []io.Closer
}

func (c *components) track(v any) {
	if closer, ok := v.(io.Closer); ok {
		c.opened = append(c.opened, closer)
	}
}

// close releases the tracked resources in reverse order of opening.
func (c *components) close() error {
	var err error
	for i := len(c.opened) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.opened[i].Close())
	}
	c.opened = nil
	return err
}

func buildComponents(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (*components, error) {
	c := &components{}
	if err := c.build(ctx, cfg, logger); err != nil {
		return nil, multierr.Append(err, c.close())
	}
	return c, nil
}

func (c *components) build(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	var err error

	switch cfg.Source {
	case cliconfig.SourceVideo:
		c.Source, err = video.OpenSource(cfg.Input)
	default:
		c.Source, err = fs.NewDirSource(cfg.Input, cfg.Once, logAdapter.Component(logger, "source"))
	}
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	c.track(c.Source)

	// One worker process serves as detector and recognizer when both are
	// configured to use it.
	var proc *worker.Process
	if cfg.Detector == cliconfig.DetectorWorker || cfg.Recognizer == cliconfig.RecognizerWorker {
		proc, err = worker.Start(cfg.WorkerCommand, cfg.WorkerArgv(), logAdapter.Component(logger, "worker"))
		if err != nil {
			return err
		}
		c.track(proc)
	}

	switch cfg.Detector {
	case cliconfig.DetectorWorker:
		c.Detector = proc
	case cliconfig.DetectorCascade:
		d, err := video.NewCascadeDetector(cfg.CascadePath, cascadeMinWidth, cascadeMinHeight)
		if err != nil {
			return fmt.Errorf("load cascade: %w", err)
		}
		c.track(d)
		c.Detector = d
	default:
		c.Detector = fullframe.Detector{}
	}

	switch cfg.Recognizer {
	case cliconfig.RecognizerTesseract:
		r, err := ocr.New(ocr.Config{Language: cfg.OCRLanguage})
		if err != nil {
			return fmt.Errorf("create recognizer: %w", err)
		}
		c.track(r)
		c.Recognizer = r
	default:
		c.Recognizer = proc
	}

	c.Sink, err = openSink(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", cfg.Sink, err)
	}
	c.track(c.Sink)
	return nil
}

func openSink(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (platewatch.WindowSink, error) {
	switch cfg.Sink {
	case cliconfig.SinkFile:
		return fs.NewWindowFileSink(cfg.OutputDir)
	case cliconfig.SinkHTTP:
		return httpAdapter.NewWindowSender(
			httpAdapter.WindowSenderConfig{URL: cfg.WebhookURL, AuthKey: cfg.AuthKey},
			&http.Client{Timeout: cfg.HTTPTimeout},
			logAdapter.Component(logger, "sink"),
		), nil
	case cliconfig.SinkRedis:
		return redis.NewSink(ctx, redis.Config{Addrs: []string{cfg.RedisAddr}, Stream: cfg.RedisStream})
	case cliconfig.SinkKafka:
		return kafka.NewSink(kafka.Config{Brokers: cfg.Brokers(), Topic: cfg.KafkaTopic})
	case cliconfig.SinkMQTT:
		return mqtt.NewSink(mqtt.Config{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic}, logAdapter.Component(logger, "sink"))
	default:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
}
