package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "PLATEWATCH_"

// ApplyEnvConfig applies configuration from environment variables (PLATEWATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
//
// PLATEWATCH_REGION_PROFILE, PLATEWATCH_WINDOW_DURATION_SECONDS and
// PLATEWATCH_CONFIDENCE_THRESHOLD are long-form names for REGION, WINDOW and
// CONFIDENCE. The short names win when both are set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("source", env("SOURCE"), &cfg.Source)
	s.setString("input", env("INPUT"), &cfg.Input)
	s.setBoolFromString("once", env("ONCE"), &cfg.Once)
	s.setBoolFromString("prune-frames", env("PRUNE_FRAMES"), &cfg.PruneFrames)

	s.setString("region", env("REGION_PROFILE"), &cfg.Region)
	s.setString("region", env("REGION"), &cfg.Region)
	s.setString("artifacts", env("ARTIFACTS"), &cfg.Artifacts)

	s.setString("detector", env("DETECTOR"), &cfg.Detector)
	s.setString("recognizer", env("RECOGNIZER"), &cfg.Recognizer)
	s.setString("cascade", env("CASCADE"), &cfg.CascadePath)
	s.setString("worker-cmd", env("WORKER_CMD"), &cfg.WorkerCommand)
	s.setString("worker-args", env("WORKER_ARGS"), &cfg.WorkerArgs)
	s.setString("ocr-lang", env("OCR_LANG"), &cfg.OCRLanguage)

	s.setString("sink", env("SINK"), &cfg.Sink)
	s.setString("sqlite-path", env("SQLITE_PATH"), &cfg.SQLitePath)
	s.setString("output-dir", env("OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("webhook-url", env("WEBHOOK_URL"), &cfg.WebhookURL)
	s.setString("auth-key", env("AUTH_KEY"), &cfg.AuthKey)
	s.setString("redis-addr", env("REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-stream", env("REDIS_STREAM"), &cfg.RedisStream)
	s.setString("kafka-brokers", env("KAFKA_BROKERS"), &cfg.KafkaBrokers)
	s.setString("kafka-topic", env("KAFKA_TOPIC"), &cfg.KafkaTopic)
	s.setString("mqtt-broker", env("MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-topic", env("MQTT_TOPIC"), &cfg.MQTTTopic)

	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setSeconds("window", env("WINDOW_DURATION_SECONDS"), &cfg.WindowDuration); err != nil {
		return err
	}
	if err := s.setDuration("window", env("WINDOW"), &cfg.WindowDuration); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-initial", env("RETRY_INITIAL"), &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", env("RETRY_MAX"), &cfg.RetryMax); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", env("SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setFloatFromString("confidence", env("CONFIDENCE_THRESHOLD"), &cfg.ConfidenceThreshold); err != nil {
		return err
	}
	if err := s.setFloatFromString("confidence", env("CONFIDENCE"), &cfg.ConfidenceThreshold); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-capacity", env("QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}
	if err := s.setIntFromString("max-source-errors", env("MAX_SOURCE_ERRORS"), &cfg.MaxSourceErrors); err != nil {
		return err
	}
	if err := s.setIntFromString("retry-attempts", env("RETRY_ATTEMPTS"), &cfg.RetryAttempts); err != nil {
		return err
	}

	return nil
}
