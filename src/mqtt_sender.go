package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrPublish wraps a publish that failed or did not complete in time
var ErrPublish = errors.New("publish failed")

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// jsonMessage marshals v into a message for topic
func jsonMessage(topic string, qos byte, retain bool, v any) (MQTTMessage, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return MQTTMessage{}, fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return MQTTMessage{Topic: topic, Payload: payload, QoS: qos, Retain: retain}, nil
}

// MQTTSender publishes synchronously on one client, waiting for each message to
// be acknowledged
type MQTTSender struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewMQTTSender creates a sender publishing on client
func NewMQTTSender(client mqtt.Client) *MQTTSender {
	return &MQTTSender{client: client, timeout: publishTimeout}
}

// Send publishes msg and waits for the broker's acknowledgement
func (s *MQTTSender) Send(msg MQTTMessage) error {
	token := s.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("%w: %s: no ack within %v", ErrPublish, msg.Topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublish, msg.Topic, err)
	}
	return nil
}

// SendAll publishes msgs in order, stopping at the first failure
func (s *MQTTSender) SendAll(msgs []MQTTMessage) error {
	for _, msg := range msgs {
		if err := s.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// waitToken waits for token until it completes, ctx is done or timeout passes
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("no response within %v: %w", timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}
