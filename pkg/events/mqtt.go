package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/debug"
)

// ErrConnectTimeout is returned when the broker does not answer in time.
var ErrConnectTimeout = errors.New("mqtt connect timed out")

// Config configures the MQTT publisher.
type Config struct {
	Broker         string // e.g. tcp://localhost:1883
	Topic          string
	ClientID       string // random when empty
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration
}

// DefaultConfig returns QoS 0 on facemoji/expressions with retained
// messages, so a new subscriber sees the current faces.
func DefaultConfig() Config {
	return Config{
		Topic:          "facemoji/expressions",
		Retain:         true,
		ConnectTimeout: 30 * time.Second,
	}
}

// client is the subset of mqtt.Client used here.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes events to a broker from its own goroutine.
type MQTT struct {
	config Config
	client client
	queue  chan Expressions
}

var _ Publisher = (*MQTT)(nil)

// NewMQTT creates a publisher. Call Connect, then Run.
func NewMQTT(cfg Config) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "facemoji-" + uuid.New().String()
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	return newMQTT(cfg, mqtt.NewClient(opts))
}

func newMQTT(cfg Config, c client) *MQTT {
	return &MQTT{
		config: cfg,
		client: c,
		queue:  make(chan Expressions, 8),
	}
}

// Connect dials the broker.
func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.config.ConnectTimeout) {
		return fmt.Errorf("%w: %s", ErrConnectTimeout, m.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", m.config.Broker, err)
	}
	return nil
}

// Publish queues e. A full queue drops the event.
func (m *MQTT) Publish(e Expressions) {
	select {
	case m.queue <- e:
	default:
		debug.FrameLog("⚠️  mqtt queue full, dropping event\n")
	}
}

// Run sends queued events until ctx is done, then disconnects.
func (m *MQTT) Run(ctx context.Context) {
	defer m.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.queue:
			if err := m.send(e); err != nil {
				log.Warn("mqtt publish failed", "topic", m.config.Topic, "error", err)
			}
		}
	}
}

func (m *MQTT) send(e Expressions) error {
	payload, err := jsoniter.Marshal(e)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.config.Topic, m.config.QoS, m.config.Retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timed out")
	}
	return token.Error()
}
