package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
//
// region_profile, window_duration_seconds and confidence_threshold are
// accepted as long-form names for region, window and confidence. When both
// forms are present the short key wins.
type FileConfig struct {
	Source          string `toml:"source"`
	Input           string `toml:"input"`
	Once            *bool  `toml:"once"`
	PollInterval    string `toml:"poll_interval"`
	QueueCapacity   int    `toml:"queue_capacity"`
	MaxSourceErrors *int   `toml:"max_source_errors"`
	PruneFrames     *bool  `toml:"prune_frames"`

	Region                string   `toml:"region"`
	RegionProfile         string   `toml:"region_profile"`
	Window                string   `toml:"window"`
	WindowDurationSeconds int      `toml:"window_duration_seconds"`
	Confidence            *float64 `toml:"confidence"`
	ConfidenceThreshold   *float64 `toml:"confidence_threshold"`
	Artifacts             string   `toml:"artifacts"`

	Detector      string `toml:"detector"`
	Recognizer    string `toml:"recognizer"`
	CascadePath   string `toml:"cascade"`
	WorkerCommand string `toml:"worker_cmd"`
	WorkerArgs    string `toml:"worker_args"`
	OCRLanguage   string `toml:"ocr_lang"`

	Sink  string         `toml:"sink"`
	Retry RetryFile      `toml:"retry"`
	Sinks SinkFileConfig `toml:"sinks"`

	MetricsAddr     string `toml:"metrics_addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	LogLevel        string `toml:"log_level"`
}

// RetryFile is the [retry] table.
type RetryFile struct {
	Initial  string `toml:"initial"`
	Max      string `toml:"max"`
	Attempts int    `toml:"attempts"`
}

// SinkFileConfig is the [sinks] table, one sub-table per sink.
type SinkFileConfig struct {
	SQLite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`
	File struct {
		Dir string `toml:"dir"`
	} `toml:"file"`
	HTTP struct {
		URL     string `toml:"url"`
		AuthKey string `toml:"auth_key"`
		Timeout string `toml:"timeout"`
	} `toml:"http"`
	Redis struct {
		Addr   string `toml:"addr"`
		Stream string `toml:"stream"`
	} `toml:"redis"`
	Kafka struct {
		Brokers string `toml:"brokers"`
		Topic   string `toml:"topic"`
	} `toml:"kafka"`
	MQTT struct {
		Broker string `toml:"broker"`
		Topic  string `toml:"topic"`
	} `toml:"mqtt"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.platewatch/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".platewatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setString("input", fc.Input, &cfg.Input)
	s.setBool("once", fc.Once, &cfg.Once)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setIntPtr("max-source-errors", fc.MaxSourceErrors, &cfg.MaxSourceErrors)
	s.setBool("prune-frames", fc.PruneFrames, &cfg.PruneFrames)

	s.setString("region", fc.RegionProfile, &cfg.Region)
	s.setString("region", fc.Region, &cfg.Region)
	s.setFloat("confidence", fc.ConfidenceThreshold, &cfg.ConfidenceThreshold)
	s.setFloat("confidence", fc.Confidence, &cfg.ConfidenceThreshold)
	if fc.WindowDurationSeconds < 0 {
		return fmt.Errorf("window_duration_seconds must not be negative")
	}
	if fc.WindowDurationSeconds > 0 && !s.changed["window"] {
		cfg.WindowDuration = time.Duration(fc.WindowDurationSeconds) * time.Second
	}
	s.setString("artifacts", fc.Artifacts, &cfg.Artifacts)

	s.setString("detector", fc.Detector, &cfg.Detector)
	s.setString("recognizer", fc.Recognizer, &cfg.Recognizer)
	s.setString("cascade", fc.CascadePath, &cfg.CascadePath)
	s.setString("worker-cmd", fc.WorkerCommand, &cfg.WorkerCommand)
	s.setString("worker-args", fc.WorkerArgs, &cfg.WorkerArgs)
	s.setString("ocr-lang", fc.OCRLanguage, &cfg.OCRLanguage)

	s.setString("sink", fc.Sink, &cfg.Sink)
	s.setString("sqlite-path", fc.Sinks.SQLite.Path, &cfg.SQLitePath)
	s.setString("output-dir", fc.Sinks.File.Dir, &cfg.OutputDir)
	s.setString("webhook-url", fc.Sinks.HTTP.URL, &cfg.WebhookURL)
	s.setString("auth-key", fc.Sinks.HTTP.AuthKey, &cfg.AuthKey)
	s.setString("redis-addr", fc.Sinks.Redis.Addr, &cfg.RedisAddr)
	s.setString("redis-stream", fc.Sinks.Redis.Stream, &cfg.RedisStream)
	s.setString("kafka-brokers", fc.Sinks.Kafka.Brokers, &cfg.KafkaBrokers)
	s.setString("kafka-topic", fc.Sinks.Kafka.Topic, &cfg.KafkaTopic)
	s.setString("mqtt-broker", fc.Sinks.MQTT.Broker, &cfg.MQTTBroker)
	s.setString("mqtt-topic", fc.Sinks.MQTT.Topic, &cfg.MQTTTopic)

	s.setInt("retry-attempts", fc.Retry.Attempts, &cfg.RetryAttempts)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"poll", fc.PollInterval, &cfg.PollInterval},
		{"window", fc.Window, &cfg.WindowDuration},
		{"timeout", fc.Sinks.HTTP.Timeout, &cfg.HTTPTimeout},
		{"retry-initial", fc.Retry.Initial, &cfg.RetryInitial},
		{"retry-max", fc.Retry.Max, &cfg.RetryMax},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
