package cliconfig

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/platewatch/internal/adapters/sqlite"
	"github.com/bft-labs/platewatch/internal/app"
	"github.com/bft-labs/platewatch/internal/domain"
)

// Frame sources.
const (
	SourceDir   = "dir"
	SourceVideo = "video"
)

// Detectors.
const (
	DetectorWorker    = "worker"
	DetectorCascade   = "cascade"
	DetectorFullFrame = "fullframe"
)

// Recognizers.
const (
	RecognizerWorker    = "worker"
	RecognizerTesseract = "tesseract"
)

// Window sinks.
const (
	SinkSQLite = "sqlite"
	SinkFile   = "file"
	SinkHTTP   = "http"
	SinkRedis  = "redis"
	SinkKafka  = "kafka"
	SinkMQTT   = "mqtt"
)

// Config holds CLI configuration for platewatch.
type Config struct {
	Source          string
	Input           string
	Once            bool
	PollInterval    time.Duration
	QueueCapacity   int
	MaxSourceErrors int
	PruneFrames     bool

	Region              string
	WindowDuration      time.Duration
	ConfidenceThreshold float64
	Artifacts           string

	Detector      string
	Recognizer    string
	CascadePath   string
	WorkerCommand string
	WorkerArgs    string
	OCRLanguage   string

	Sink         string
	SQLitePath   string
	OutputDir    string
	WebhookURL   string
	AuthKey      string
	HTTPTimeout  time.Duration
	RedisAddr    string
	RedisStream  string
	KafkaBrokers string
	KafkaTopic   string
	MQTTBroker   string
	MQTTTopic    string

	RetryInitial  time.Duration
	RetryMax      time.Duration
	RetryAttempts int

	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	retry := app.DefaultRetryPolicy()
	return Config{
		Source:              SourceDir,
		PollInterval:        app.DefaultPollInterval,
		QueueCapacity:       app.DefaultQueueCapacity,
		MaxSourceErrors:     app.DefaultMaxSourceErrors,
		Region:              domain.ProfileUSA.String(),
		WindowDuration:      app.DefaultWindowDuration,
		ConfidenceThreshold: app.DefaultConfidenceThreshold,
		Artifacts:           domain.DefaultArtifacts,
		Detector:            DetectorWorker,
		Recognizer:          RecognizerWorker,
		OCRLanguage:         "eng",
		Sink:                SinkSQLite,
		SQLitePath:          sqlite.DefaultPath,
		HTTPTimeout:         15 * time.Second,
		RetryInitial:        retry.Initial,
		RetryMax:            retry.Max,
		RetryAttempts:       retry.MaxAttempts,
		ShutdownTimeout:     app.DefaultShutdownTimeout,
		LogLevel:            "info",
		AuthKey:             os.Getenv("PLATEWATCH_AUTH_KEY"),
	}
}

// Profile returns the parsed region profile.
func (c *Config) Profile() (domain.RegionProfile, error) {
	return domain.ParseRegionProfile(c.Region)
}

// Brokers splits the comma-separated Kafka broker list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// WorkerArgv splits WorkerArgs on white space.
func (c *Config) WorkerArgv() []string {
	return strings.Fields(c.WorkerArgs)
}

// Validate checks the configuration for errors and normalizes derived values.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}

	c.Source = strings.ToLower(c.Source)
	switch c.Source {
	case SourceDir, SourceVideo:
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceDir, SourceVideo)
	}

	p, err := c.Profile()
	if err != nil {
		return err
	}
	c.Region = p.String()

	c.Detector = strings.ToLower(c.Detector)
	switch c.Detector {
	case DetectorWorker, DetectorFullFrame:
	case DetectorCascade:
		if c.CascadePath == "" {
			return fmt.Errorf("cascade detector requires cascade")
		}
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}

	c.Recognizer = strings.ToLower(c.Recognizer)
	switch c.Recognizer {
	case RecognizerWorker, RecognizerTesseract:
	default:
		return fmt.Errorf("unknown recognizer %q", c.Recognizer)
	}

	if (c.Detector == DetectorWorker || c.Recognizer == RecognizerWorker) && c.WorkerCommand == "" {
		return fmt.Errorf("worker-cmd is required for the worker detector or recognizer")
	}

	if c.PruneFrames && c.Source != SourceDir {
		return fmt.Errorf("prune-frames requires the dir source")
	}

	if err := c.validateSink(); err != nil {
		return err
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 || math.IsNaN(c.ConfidenceThreshold) {
		return fmt.Errorf("confidence must be in [0, 1]")
	}
	if c.MaxSourceErrors < 0 {
		return fmt.Errorf("max source errors must not be negative")
	}
	if c.RetryInitial <= 0 || c.RetryMax < c.RetryInitial {
		return fmt.Errorf("retry backoff must satisfy 0 < retry-initial <= retry-max")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	return nil
}

func (c *Config) validateSink() error {
	c.Sink = strings.ToLower(c.Sink)
	switch c.Sink {
	case SinkSQLite:
		if c.SQLitePath == "" {
			c.SQLitePath = sqlite.DefaultPath
		}
	case SinkFile:
		if c.OutputDir == "" {
			return fmt.Errorf("file sink requires output-dir")
		}
	case SinkHTTP:
		if c.WebhookURL == "" {
			return fmt.Errorf("http sink requires webhook-url")
		}
	case SinkRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis sink requires redis-addr")
		}
	case SinkKafka:
		if len(c.Brokers()) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("kafka sink requires kafka-brokers and kafka-topic")
		}
	case SinkMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("mqtt sink requires mqtt-broker")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer so an explicit zero can be applied.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value from a pointer if not nil and flag not changed.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setSeconds parses a whole number of seconds and sets it as a duration.
func (s *configSetter) setSeconds(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if n <= 0 {
		return fmt.Errorf("parse %s: %d seconds is not positive", flag, n)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f < 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
