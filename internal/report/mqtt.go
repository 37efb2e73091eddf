package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// BrokerConfig describes the broker connection.
type BrokerConfig struct {
	URL            string // tcp://host:port
	ClientID       string
	Topic          string
	ConnectTimeout time.Duration
}

func (c BrokerConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ConnectTimeout
}

// MQTTPublisher publishes counts over one persistent connection.
// Messages are fire-and-forget: QoS 0, not retained, no ack wait.
type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	clientID string

	mu        sync.RWMutex
	published uint64
	errors    uint64
	lastErr   string

	disconnectOnce sync.Once
}

// NewClientOptions builds the paho options used by publisher and subscriber.
func NewClientOptions(cfg BrokerConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false) // the first connect must fail fast
	opts.SetConnectTimeout(cfg.connectTimeout())
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt: connection established",
			"broker", cfg.URL,
			"client_id", cfg.ClientID,
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt: connection lost, will auto-reconnect",
			"error", err,
			"broker", cfg.URL,
		)
	}

	return opts
}

// Connect opens a client connection and waits up to the connect timeout.
func Connect(ctx context.Context, cfg BrokerConfig, opts *mqtt.ClientOptions) (mqtt.Client, error) {
	client := mqtt.NewClient(opts)

	slog.Info("mqtt: connecting to broker", "broker", cfg.URL)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(cfg.connectTimeout()):
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection aborted: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return client, nil
}

// DialPublisher connects to the broker and returns a ready publisher
func DialPublisher(ctx context.Context, cfg BrokerConfig) (*MQTTPublisher, error) {
	client, err := Connect(ctx, cfg, NewClientOptions(cfg))
	if err != nil {
		return nil, err
	}
	return NewMQTTPublisher(client, cfg.Topic, cfg.ClientID), nil
}

// NewMQTTPublisher wraps an already connected client
func NewMQTTPublisher(client mqtt.Client, topic, clientID string) *MQTTPublisher {
	return &MQTTPublisher{
		client:   client,
		topic:    topic,
		clientID: clientID,
	}
}

// Publish sends "<clientID>,<count>" without waiting for delivery.
// A closed connection or an immediately failed token is an error;
// nothing is retried.
func (p *MQTTPublisher) Publish(count int) error {
	if !p.client.IsConnectionOpen() {
		p.recordError("mqtt not connected")
		return fmt.Errorf("mqtt not connected")
	}

	payload := FormatPayload(p.clientID, count)
	token := p.client.Publish(p.topic, 0, false, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			p.recordError(err.Error())
			return fmt.Errorf("publish failed: %w", err)
		}
	default:
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	slog.Debug("mqtt: count published",
		"topic", p.topic,
		"payload", payload,
	)

	return nil
}

// Disconnect closes the connection once
func (p *MQTTPublisher) Disconnect() error {
	p.disconnectOnce.Do(func() {
		if p.client.IsConnected() {
			p.client.Disconnect(250) // 250ms grace period
			slog.Info("mqtt: disconnected")
		}
	})
	return nil
}

// Stats returns publisher statistics
func (p *MQTTPublisher) Stats() PublisherStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PublisherStats{
		Connected: p.client.IsConnectionOpen(),
		Published: p.published,
		Errors:    p.errors,
		LastError: p.lastErr,
	}
}

// PublisherStats contains publisher statistics
type PublisherStats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

func (p *MQTTPublisher) recordError(msg string) {
	p.mu.Lock()
	p.errors++
	p.lastErr = msg
	p.mu.Unlock()
}
