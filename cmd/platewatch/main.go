package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/internal/cliconfig"
	"github.com/bft-labs/platewatch/pkg/log"
	"github.com/bft-labs/platewatch/pkg/platewatch"
	"github.com/bft-labs/platewatch/plugins/framecleanup"
	"github.com/bft-labs/platewatch/plugins/metricsserver"
)

const helpDescription = `
Watch a camera or a directory of frames, read the license plates in view and
record the distinct plates seen in each time window.

Highlights:
  - Region grammars for USA, EU and Indian plates; low-confidence readings are dropped.
  - Each plate is stored at most once per window.
  - Windows go to SQLite, JSON files, a webhook, Redis, Kafka or MQTT, with retry.
  - Configure via file, env (PLATEWATCH_*), or flags.
`

var longHelp = "platewatch: license plate window aggregation\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  platewatch --input ./frames --once --worker-cmd plate-worker
  platewatch --source video --input rtsp://cam-1/stream --region EU --sink kafka --kafka-brokers k1:9092 --kafka-topic plates
  platewatch --config $HOME/.platewatch/config.toml --metrics-addr :9090
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := log.NewZerologAdapter()

	root := &cobra.Command{
		Use:           "platewatch",
		Short:         "Record the distinct license plates seen in each time window",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Env overrides file, flags override env.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := cliconfig.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger = log.NewConsoleAdapter(os.Stderr, level)

			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			logger.Info("configuration", log.Any("config", logCfg))

			return run(cmd.Context(), cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.platewatch/config.toml)")

	root.Flags().StringVar(&cfg.Source, "source", cfg.Source, "frame source: dir or video")
	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "frame directory, video file, stream URL or camera index")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "process the frames present at start and exit (dir source)")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "source poll interval when idle")
	root.Flags().IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "frames buffered between reader and analyzer")
	root.Flags().IntVar(&cfg.MaxSourceErrors, "max-source-errors", cfg.MaxSourceErrors, "consecutive source errors before giving up (0 retries forever)")
	root.Flags().BoolVar(&cfg.PruneFrames, "prune-frames", cfg.PruneFrames, "remove the oldest frames when the input directory grows past 2 GiB")

	root.Flags().StringVar(&cfg.Region, "region", cfg.Region, "plate grammar: USA, EU or IN")
	root.Flags().DurationVar(&cfg.WindowDuration, "window", cfg.WindowDuration, "aggregation window length")
	root.Flags().Float64Var(&cfg.ConfidenceThreshold, "confidence", cfg.ConfidenceThreshold, "minimum recognizer confidence in [0, 1], exclusive")
	root.Flags().StringVar(&cfg.Artifacts, "artifacts", cfg.Artifacts, "glyphs stripped from recognized text")

	root.Flags().StringVar(&cfg.Detector, "detector", cfg.Detector, "plate detector: worker, cascade or fullframe")
	root.Flags().StringVar(&cfg.Recognizer, "recognizer", cfg.Recognizer, "text recognizer: worker or tesseract")
	root.Flags().StringVar(&cfg.CascadePath, "cascade", cfg.CascadePath, "Haar cascade XML for the cascade detector")
	root.Flags().StringVar(&cfg.WorkerCommand, "worker-cmd", cfg.WorkerCommand, "model worker executable")
	root.Flags().StringVar(&cfg.WorkerArgs, "worker-args", cfg.WorkerArgs, "model worker arguments")
	root.Flags().StringVar(&cfg.OCRLanguage, "ocr-lang", cfg.OCRLanguage, "tesseract language")

	root.Flags().StringVar(&cfg.Sink, "sink", cfg.Sink, "window sink: sqlite, file, http, redis, kafka or mqtt")
	root.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	root.Flags().StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for window JSON files")
	root.Flags().StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "URL receiving one POST per window")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token for the webhook")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	root.Flags().StringVar(&cfg.RedisStream, "redis-stream", cfg.RedisStream, "Redis stream name")
	root.Flags().StringVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "comma-separated Kafka brokers")
	root.Flags().StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic")
	root.Flags().StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL")
	root.Flags().StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic")

	root.Flags().DurationVar(&cfg.RetryInitial, "retry-initial", cfg.RetryInitial, "first flush retry delay")
	root.Flags().DurationVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "maximum flush retry delay")
	root.Flags().IntVar(&cfg.RetryAttempts, "retry-attempts", cfg.RetryAttempts, "flush attempts before a window is dropped")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time to drain on shutdown")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("platewatch", log.Err(err))
		os.Exit(1)
	}
}

// run builds the components, starts the pipeline and blocks until it finishes
// or ctx is cancelled by a signal.
func run(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, comps, logger)
}

// serve hands comps to the pipeline. Until the pipeline has started, comps is
// closed here on failure and its close errors are returned with the cause.
func serve(ctx context.Context, cfg cliconfig.Config, comps *components, logger log.Logger) error {
	libCfg, err := libraryConfig(cfg)
	if err != nil {
		return multierr.Append(err, comps.close())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []platewatch.Option{
		platewatch.WithLogger(logger),
		platewatch.WithMetrics(reg),
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, metricsserver.WithMetricsServer(metricsserver.Config{
			Addr:     cfg.MetricsAddr,
			Gatherer: reg,
		}))
	}

	if cfg.PruneFrames {
		opts = append(opts, framecleanup.WithFrameCleanup(framecleanup.Config{Dir: cfg.Input}))
	}

	p, err := platewatch.New(libCfg, comps.Components, opts...)
	if err != nil {
		return multierr.Append(fmt.Errorf("create platewatch: %w", err), comps.close())
	}

	if err := p.Start(context.Background()); err != nil {
		return multierr.Append(fmt.Errorf("start platewatch: %w", err), comps.close())
	}

	select {
	case <-ctx.Done():
		logger.Info("received signal, stopping...")
	case <-p.Done():
	}

	if err := p.Stop(); err != nil {
		return fmt.Errorf("stop platewatch: %w", err)
	}
	return p.Wait()
}

func libraryConfig(cfg cliconfig.Config) (platewatch.Config, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return platewatch.Config{}, err
	}
	return platewatch.Config{
		Profile:                 profile,
		WindowDuration:          cfg.WindowDuration,
		ConfidenceThreshold:     cfg.ConfidenceThreshold,
		ZeroConfidenceThreshold: cfg.ConfidenceThreshold == 0,
		Artifacts:               cfg.Artifacts,
		NoArtifacts:             cfg.Artifacts == "",
		QueueCapacity:           cfg.QueueCapacity,
		PollInterval:            cfg.PollInterval,
		MaxSourceErrors:         cfg.MaxSourceErrors,
		UnlimitedSourceErrors:   cfg.MaxSourceErrors == 0,
		ShutdownTimeout:         cfg.ShutdownTimeout,
		Retry: platewatch.RetryPolicy{
			Initial:     cfg.RetryInitial,
			Max:         cfg.RetryMax,
			MaxAttempts: cfg.RetryAttempts,
		},
	}, nil
}
