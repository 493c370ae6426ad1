package main

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// errAlreadyConnected is what paho returns when Connect is called on a client
// whose session is still open
var errAlreadyConnected = errors.New("status is already connected or reconnecting")

// fakeToken completes immediately unless pending is set
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

// fakeClient records publishes. Methods not overridden panic through the nil
// embedded interface.
type fakeClient struct {
	mqtt.Client

	mu          sync.Mutex
	open        bool
	connects    int
	disconnects int
	connectErr  error
	publishErr  error
	pending     bool
	published   []MQTTMessage
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.open {
		return &fakeToken{err: errAlreadyConnected}
	}
	if c.connectErr == nil {
		c.open = true
	}
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return &fakeToken{pending: true}
	}
	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr}
	}
	c.published = append(c.published, MQTTMessage{Topic: topic, Payload: payload.([]byte), QoS: qos, Retain: retained})
	return &fakeToken{}
}

func (c *fakeClient) messages() []MQTTMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MQTTMessage(nil), c.published...)
}

func newTestConn(client *fakeClient) *brokerConn {
	conn := newBrokerConn("test", "tcp://localhost:1883", "test")
	conn.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }
	return conn
}
