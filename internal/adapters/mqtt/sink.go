// Package mqtt publishes windows to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// Defaults for the MQTT sink.
const (
	DefaultTopic   = "platewatch/windows"
	DefaultQoS     = 1
	DefaultTimeout = 5 * time.Second
)

// Config configures the MQTT sink.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	// QoS is 1 or 2. Zero selects DefaultQoS; flushes need a broker ack.
	QoS      byte
	Timeout  time.Duration
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// connector is the part of mqtt.Client NewSink needs to establish a session.
type connector interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// Sink implements ports.WindowSink. Each window is one message, so a flush
// either reaches the broker whole or not at all.
type Sink struct {
	client  publisher
	topic   string
	qos     byte
	timeout time.Duration
}

// NewSink connects to the broker.
func NewSink(cfg Config, logger ports.Logger) (*Sink, error) {
	cfg = withDefaults(cfg)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect",
			ports.Err(err),
			ports.String("broker", cfg.Broker),
		)
	}

	client := mqtt.NewClient(opts)
	if err := connect(client, cfg); err != nil {
		return nil, err
	}

	logger.Info("mqtt connection established",
		ports.String("broker", cfg.Broker),
		ports.String("client_id", cfg.ClientID),
	)
	return newSink(client, cfg), nil
}

// connect waits for the session and tears the client down on failure so
// auto-reconnect does not keep retrying in the background.
func connect(client connector, cfg Config) error {
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout: %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func newSink(client publisher, cfg Config) *Sink {
	cfg = withDefaults(cfg)
	return &Sink{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: cfg.Timeout}
}

func withDefaults(cfg Config) Config {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.QoS == 0 || cfg.QoS > 2 {
		cfg.QoS = DefaultQoS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "platewatch"
	}
	return cfg
}

// Flush publishes the window and waits for the broker acknowledgement
// required by the configured QoS.
func (s *Sink) Flush(ctx context.Context, w *domain.Window) error {
	payload, err := json.Marshal(w.Payload())
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages 250ms.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
