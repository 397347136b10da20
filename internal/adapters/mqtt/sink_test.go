package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/platewatch/internal/domain"
)

// fakeToken completes when done is closed.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	token        mqtt.Token
	connectToken mqtt.Token
	messages     []published
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func testWindow() *domain.Window {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w := domain.NewWindow(start)
	w.Offer("MH12AB1234")
	w.Close(start.Add(21 * time.Second))
	return w
}

func TestSink_Flush(t *testing.T) {
	client := &fakeClient{token: completed(nil)}
	s := newSink(client, Config{Topic: "site/gate-1/plates", QoS: 1})
	w := testWindow()

	require.NoError(t, s.Flush(context.Background(), w))
	require.Len(t, client.messages, 1)

	msg := client.messages[0]
	assert.Equal(t, "site/gate-1/plates", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var p domain.WindowPayload
	require.NoError(t, json.Unmarshal(msg.payload, &p))
	assert.Equal(t, w.ID, p.ID)
	assert.Equal(t, []string{"MH12AB1234"}, p.Plates)

	require.NoError(t, s.Close())
	assert.True(t, client.disconnected)
}

func TestSink_Defaults(t *testing.T) {
	s := newSink(&fakeClient{}, Config{QoS: 7})
	assert.Equal(t, DefaultTopic, s.topic)
	assert.Equal(t, byte(DefaultQoS), s.qos)
	assert.Equal(t, DefaultTimeout, s.timeout)
}

func TestSink_ZeroQoSIsAcknowledged(t *testing.T) {
	client := &fakeClient{token: completed(nil)}
	s := newSink(client, Config{})
	assert.Equal(t, byte(1), s.qos)

	require.NoError(t, s.Flush(context.Background(), testWindow()))
	require.Len(t, client.messages, 1)
	assert.Equal(t, byte(1), client.messages[0].qos)

	assert.Equal(t, byte(2), newSink(client, Config{QoS: 2}).qos)
}

func TestConnect_DisconnectsOnFailure(t *testing.T) {
	refused := errors.New("connection refused")
	client := &fakeClient{connectToken: completed(refused)}

	err := connect(client, withDefaults(Config{Broker: "tcp://127.0.0.1:1"}))
	assert.ErrorIs(t, err, refused)
	assert.True(t, client.disconnected)
}

func TestConnect_DisconnectsOnTimeout(t *testing.T) {
	client := &fakeClient{connectToken: &fakeToken{done: make(chan struct{})}}

	err := connect(client, Config{Broker: "tcp://10.0.0.1:1883", Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.True(t, client.disconnected)
}

func TestConnect_Succeeds(t *testing.T) {
	client := &fakeClient{connectToken: completed(nil)}

	require.NoError(t, connect(client, withDefaults(Config{})))
	assert.False(t, client.disconnected)
}

func TestSink_PublishError(t *testing.T) {
	boom := errors.New("not connected")
	s := newSink(&fakeClient{token: completed(boom)}, Config{})

	err := s.Flush(context.Background(), testWindow())
	assert.ErrorIs(t, err, boom)
}

func TestSink_PublishTimeout(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}
	s := newSink(&fakeClient{token: pending}, Config{Timeout: 10 * time.Millisecond})

	err := s.Flush(context.Background(), testWindow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestSink_ContextCanceled(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}
	s := newSink(&fakeClient{token: pending}, Config{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Flush(ctx, testWindow()), context.Canceled)
}
