package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ryansname/powermeter/src/config"
	"github.com/ryansname/powermeter/src/link"
	"github.com/ryansname/powermeter/src/meter"
)

type measurementBatch struct {
	DeviceID string          `json:"device_id"`
	BatchID  string          `json:"batch_id"`
	Readings []meter.Reading `json:"readings"`
}

type cloudHeartbeat struct {
	DeviceID string `json:"device_id"`
	UptimeS  int64  `json:"uptime_s"`
	RSSI     int    `json:"rssi_dbm"`
	Firmware string `json:"firmware"`
}

// CloudLink uploads buffered readings to the cloud IoT endpoint over mutual
// TLS. Each publish period it drains the measurement buffer into one batch;
// a batch whose publish fails is dropped.
type CloudLink struct {
	conn            *brokerConn
	deviceID        string
	buffer          *meter.Buffer
	signal          func() int
	publishPeriod   time.Duration
	heartbeatPeriod time.Duration
	bootTime        time.Time
	newBatchID      func() string

	nextPublish   time.Time
	nextHeartbeat time.Time
}

// Ensure CloudLink implements link.Link
var _ link.Link = (*CloudLink)(nil)

// NewCloudLink creates the link. signal reports the current WiFi RSSI.
func NewCloudLink(cfg *config.Config, buffer *meter.Buffer, signal func() int) (*CloudLink, error) {
	tlsConfig, err := newTLSConfig(cfg.Cloud.CAFile, cfg.Cloud.CertFile, cfg.Cloud.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("cloud link: %w", err)
	}

	conn := newBrokerConn("Cloud", fmt.Sprintf("ssl://%s:%d", cfg.Cloud.Endpoint, cfg.Cloud.Port), cfg.DeviceID)
	conn.opts.SetTLSConfig(tlsConfig)

	return newCloudLink(conn, cfg, buffer, signal), nil
}

func newCloudLink(conn *brokerConn, cfg *config.Config, buffer *meter.Buffer, signal func() int) *CloudLink {
	return &CloudLink{
		conn:            conn,
		deviceID:        cfg.DeviceID,
		buffer:          buffer,
		signal:          signal,
		publishPeriod:   cfg.Sampling.PublishPeriod,
		heartbeatPeriod: cfg.Cloud.HeartbeatPeriod,
		bootTime:        time.Now(),
		newBatchID:      uuid.NewString,
	}
}

func (c *CloudLink) Connect(ctx context.Context) error {
	if err := c.conn.connect(ctx); err != nil {
		return err
	}
	// heartbeat straight away so the backend sees the reconnect
	c.nextHeartbeat = time.Time{}
	return nil
}

func (c *CloudLink) Connected() bool {
	return c.conn.connected()
}

func (c *CloudLink) Serve(ctx context.Context, now time.Time) error {
	if c.nextPublish.IsZero() {
		c.nextPublish = now.Add(c.publishPeriod)
	}
	if !now.Before(c.nextPublish) {
		c.nextPublish = now.Add(c.publishPeriod)
		if err := c.publishBatch(); err != nil {
			return err
		}
	}

	if !now.Before(c.nextHeartbeat) {
		c.nextHeartbeat = now.Add(c.heartbeatPeriod)
		msg, err := jsonMessage(c.deviceID+"/heartbeat", 1, false, cloudHeartbeat{
			DeviceID: c.deviceID,
			UptimeS:  int64(now.Sub(c.bootTime).Seconds()),
			RSSI:     c.signal(),
			Firmware: firmwareVersion,
		})
		if err != nil {
			return err
		}
		if err := c.conn.sender.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// publishBatch drains the buffer and publishes it. An empty drain publishes
// nothing.
func (c *CloudLink) publishBatch() error {
	readings := c.buffer.Drain()
	if len(readings) == 0 {
		return nil
	}

	msg, err := jsonMessage(c.deviceID+"/measurements", 1, false, measurementBatch{
		DeviceID: c.deviceID,
		BatchID:  c.newBatchID(),
		Readings: readings,
	})
	if err != nil {
		return err
	}

	if err := c.conn.sender.Send(msg); err != nil {
		log.Printf("Cloud: dropped batch of %d readings\n", len(readings))
		return err
	}
	log.Printf("Cloud: published %d readings\n", len(readings))
	return nil
}

// Close disconnects from the endpoint
func (c *CloudLink) Close() {
	c.conn.close()
}
