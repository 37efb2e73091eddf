package report

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Reading is one count message received from the broker.
type Reading struct {
	Topic    string
	Payload  string
	ClientID string
	Count    int
	// Valid is false when the payload did not parse; Payload is still set
	Valid    bool
	Received time.Time
}

// Subscriber delivers count messages published by counters.
//
// Clients reconnect with a clean session; Attach re-subscribes from OnConnect.
type Subscriber struct {
	topic   string
	handler func(Reading)

	client  mqtt.Client
	started atomic.Bool
}

// NewSubscriber creates a subscriber for topic
func NewSubscriber(topic string, handler func(Reading)) *Subscriber {
	return &Subscriber{
		topic:   topic,
		handler: handler,
	}
}

// Attach chains a re-subscribe onto the options' OnConnect handler.
// Call it before connecting.
func (s *Subscriber) Attach(opts *mqtt.ClientOptions) {
	prev := opts.OnConnect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if prev != nil {
			prev(c)
		}
		s.resubscribe(c)
	})
}

// Start subscribes to the topic on a connected client
func (s *Subscriber) Start(client mqtt.Client) error {
	s.client = client
	if err := s.subscribe(client); err != nil {
		return err
	}
	s.started.Store(true)
	return nil
}

// resubscribe runs on every (re)connect once Start has succeeded.
func (s *Subscriber) resubscribe(c mqtt.Client) {
	if !s.started.Load() {
		return
	}
	if err := s.subscribe(c); err != nil {
		slog.Error("mqtt: re-subscribe failed", "topic", s.topic, "error", err)
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	slog.Info("mqtt: subscribing", "topic", s.topic)

	token := c.Subscribe(s.topic, 0, s.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription failed: %w", err)
	}

	return nil
}

// Stop unsubscribes and disconnects
func (s *Subscriber) Stop() error {
	s.started.Store(false)
	if s.client != nil && s.client.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
		s.client.Disconnect(250)
	}

	slog.Info("mqtt: subscriber stopped", "topic", s.topic)
	return nil
}

// messageHandler is called by paho for every message on the topic
func (s *Subscriber) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	s.handler(decodeReading(msg.Topic(), msg.Payload()))
}

func decodeReading(topic string, payload []byte) Reading {
	r := Reading{
		Topic:    topic,
		Payload:  string(payload),
		Received: time.Now(),
	}

	clientID, count, err := ParsePayload(r.Payload)
	if err != nil {
		slog.Debug("mqtt: unparsed payload", "payload", r.Payload, "error", err)
		return r
	}

	r.ClientID = clientID
	r.Count = count
	r.Valid = true
	return r
}
