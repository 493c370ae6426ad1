package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// brokerConn owns one paho client. Paho's own reconnect is off; the link.Machine
// driving the owner decides when to connect again.
type brokerConn struct {
	name      string
	opts      *mqtt.ClientOptions
	newClient func(*mqtt.ClientOptions) mqtt.Client

	client mqtt.Client
	sender *MQTTSender
}

func newBrokerConn(name, broker, clientID string) *brokerConn {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetCleanSession(true)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("%s: MQTT connection lost: %v\n", name, err)
	})

	return &brokerConn{
		name:      name,
		opts:      opts,
		newClient: mqtt.NewClient,
	}
}

func (b *brokerConn) connect(ctx context.Context) error {
	if b.client == nil {
		b.client = b.newClient(b.opts)
		b.sender = NewMQTTSender(b.client)
	} else {
		// A failed publish can leave the old session open, and paho refuses
		// to connect over it
		b.client.Disconnect(0)
	}

	log.Printf("%s: connecting to MQTT broker %v...\n", b.name, b.opts.Servers)
	return waitToken(ctx, b.client.Connect(), connectTimeout)
}

func (b *brokerConn) connected() bool {
	return b.client != nil && b.client.IsConnectionOpen()
}

func (b *brokerConn) close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		log.Printf("%s: disconnected from MQTT broker\n", b.name)
	}
}

// newTLSConfig loads a CA bundle and a client key pair for mutual TLS
func newTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key pair: %w", err)
	}

	return &tls.Config{
		RootCAs:      roots,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
