package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// ErrNotConnected is returned by Publish before Connect succeeds or while
// the broker session is down.
var ErrNotConnected = errors.New("emitter: not connected")

// Timeouts and reconnect pacing for the broker connection.
const (
	connectTimeout       = 5 * time.Second
	publishTimeout       = 2 * time.Second
	retryInterval        = 2 * time.Second
	maxReconnectInterval = 30 * time.Second
	disconnectQuiesceMS  = 250
)

// Options configures the MQTT emitter
type Options struct {
	Broker   string // host:port or a full URL
	ClientID string
	Topic    string
	QoS      byte
}

// MQTTEmitter publishes detection annotations to an MQTT broker.
// Publish is safe for concurrent use.
type MQTTEmitter struct {
	opts   Options
	client mqtt.Client

	connected atomic.Bool
	published atomic.Uint64
	failures  atomic.Uint64
}

// NewMQTTEmitter creates an emitter; nothing is dialed until Connect.
func NewMQTTEmitter(opts Options) *MQTTEmitter {
	return &MQTTEmitter{opts: opts}
}

func (e *MQTTEmitter) clientOptions() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(brokerURL(e.opts.Broker)).
		SetClientID(e.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetOnConnectHandler(func(mqtt.Client) {
			e.connected.Store(true)
			slog.Info("emitter: broker session up", "broker", e.opts.Broker, "client_id", e.opts.ClientID)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			e.connected.Store(false)
			slog.Warn("emitter: broker session lost, reconnecting", "broker", e.opts.Broker, "error", err)
		})
}

// Connect dials the broker and waits up to connectTimeout for the session.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	e.client = mqtt.NewClient(e.clientOptions())
	slog.Info("emitter: dialing broker", "broker", e.opts.Broker, "topic", e.opts.Topic)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("emitter: connect to %s timed out after %s", e.opts.Broker, connectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: connect to %s: %w", e.opts.Broker, err)
	}

	e.connected.Store(true)
	return nil
}

// Publish encodes a and publishes it to the configured topic.
func (e *MQTTEmitter) Publish(a faceoverlay.Annotation) error {
	if err := e.publish(a); err != nil {
		e.failures.Add(1)
		return err
	}
	e.published.Add(1)
	return nil
}

func (e *MQTTEmitter) publish(a faceoverlay.Annotation) error {
	if e.client == nil || !e.connected.Load() {
		return ErrNotConnected
	}

	payload, err := Encode(a)
	if err != nil {
		return fmt.Errorf("emitter: encode seq %d: %w", a.Seq, err)
	}

	token := e.client.Publish(e.opts.Topic, e.opts.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("emitter: publish seq %d: no ack within %s", a.Seq, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: publish seq %d: %w", a.Seq, err)
	}

	slog.Debug("emitter: annotation sent",
		"topic", e.opts.Topic,
		"seq", a.Seq,
		"faces", len(a.Objects),
		"bytes", len(payload),
	)
	return nil
}

// Run publishes every annotation received on in until ctx is done or in is closed.
// Publish failures are logged and counted, never fatal.
func (e *MQTTEmitter) Run(ctx context.Context, in <-chan faceoverlay.Annotation) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-in:
			if !ok {
				return
			}
			if err := e.Publish(a); err != nil {
				slog.Warn("emitter: annotation dropped", "seq", a.Seq, "error", err)
			}
		}
	}
}

// Disconnect ends the broker session. Safe to call when never connected.
func (e *MQTTEmitter) Disconnect() error {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(disconnectQuiesceMS)
		slog.Info("emitter: broker session closed", "broker", e.opts.Broker)
	}
	e.connected.Store(false)
	return nil
}

// Stats is a snapshot of emitter counters.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (e *MQTTEmitter) Stats() Stats {
	return Stats{
		Connected: e.connected.Load(),
		Published: e.published.Load(),
		Errors:    e.failures.Load(),
	}
}

// brokerURL adds the tcp:// scheme to a bare host:port
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
