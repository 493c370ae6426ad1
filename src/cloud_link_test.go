package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/powermeter/src/config"
	"github.com/ryansname/powermeter/src/link"
	"github.com/ryansname/powermeter/src/meter"
)

func newTestCloudLink(t *testing.T) (*CloudLink, *fakeClient, *meter.Buffer, time.Time) {
	t.Helper()

	cfg := config.Default()
	cfg.DeviceID = "meter-1"
	client := &fakeClient{}
	buffer := meter.NewBuffer(cfg.Sampling.BufferCapacity)

	cl := newCloudLink(newTestConn(client), cfg, buffer, func() int { return -55 })
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cl.bootTime = start
	cl.newBatchID = func() string { return "batch-1" }

	require.NoError(t, cl.Connect(context.Background()))
	return cl, client, buffer, start
}

func TestCloudLink_HeartbeatOnConnect(t *testing.T) {
	cl, client, _, start := newTestCloudLink(t)

	require.NoError(t, cl.Serve(context.Background(), start.Add(90*time.Second)))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "meter-1/heartbeat", msgs[0].Topic)

	var hb cloudHeartbeat
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &hb))
	assert.Equal(t, cloudHeartbeat{DeviceID: "meter-1", UptimeS: 90, RSSI: -55, Firmware: firmwareVersion}, hb)
}

func TestCloudLink_PublishesDrainedBatch(t *testing.T) {
	cl, client, buffer, start := newTestCloudLink(t)
	ctx := context.Background()

	require.NoError(t, cl.Serve(ctx, start))
	for _, amps := range []float64{1, 2, 3} {
		buffer.Append(meter.NewReading(amps, 230))
	}

	require.NoError(t, cl.Serve(ctx, start.Add(29*time.Second)))
	assert.Len(t, client.messages(), 1, "batch published before the period elapsed")

	require.NoError(t, cl.Serve(ctx, start.Add(30*time.Second)))
	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "meter-1/measurements", msgs[1].Topic)

	var batch measurementBatch
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &batch))
	assert.Equal(t, "batch-1", batch.BatchID)
	assert.Equal(t, []meter.Reading{{Amps: 1, Watts: 230}, {Amps: 2, Watts: 460}, {Amps: 3, Watts: 690}}, batch.Readings)
	assert.Zero(t, buffer.Len())
}

func TestCloudLink_EmptyDrainPublishesNothing(t *testing.T) {
	cl, client, _, start := newTestCloudLink(t)
	ctx := context.Background()

	require.NoError(t, cl.Serve(ctx, start))
	require.NoError(t, cl.Serve(ctx, start.Add(30*time.Second)))
	require.NoError(t, cl.Serve(ctx, start.Add(60*time.Second)))

	assert.Len(t, client.messages(), 1)
}

func TestCloudLink_FailedPublishDropsBatch(t *testing.T) {
	cl, client, buffer, start := newTestCloudLink(t)
	ctx := context.Background()

	require.NoError(t, cl.Serve(ctx, start))
	buffer.Append(meter.NewReading(1, 230))
	client.publishErr = errors.New("connection reset")

	err := cl.Serve(ctx, start.Add(30*time.Second))
	assert.ErrorIs(t, err, ErrPublish)
	assert.Zero(t, buffer.Len())
}

func TestCloudLink_FailedPublishIsDrop(t *testing.T) {
	cl, client, buffer, start := newTestCloudLink(t)
	now := start

	m := link.New("cloud", cl, link.DefaultBackoff(), link.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	m.Tick(ctx)
	require.True(t, m.IsConnected())
	m.Tick(ctx)
	require.Len(t, client.messages(), 1)

	buffer.Append(meter.NewReading(1, 230))
	client.publishErr = errors.New("connection reset")
	now = now.Add(31 * time.Second)
	m.Tick(ctx)

	assert.Equal(t, link.Reconnecting, m.State())
	assert.ErrorIs(t, m.Status().LastErr, ErrPublish)
}

func TestCloudLink_ReconnectsAfterFailedPublish(t *testing.T) {
	cl, client, buffer, start := newTestCloudLink(t)
	now := start

	m := link.New("cloud", cl, link.DefaultBackoff(), link.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	m.Tick(ctx)
	m.Tick(ctx)
	require.True(t, m.IsConnected())

	buffer.Append(meter.NewReading(1, 230))
	client.publishErr = errors.New("connection reset")
	now = now.Add(31 * time.Second)
	m.Tick(ctx)
	require.Equal(t, link.Reconnecting, m.State())
	require.True(t, client.IsConnectionOpen(), "session stays open after a failed publish")

	client.publishErr = nil
	connects := client.connects
	now = now.Add(link.DefaultBackoff().Delay(1))
	m.Tick(ctx)

	assert.Equal(t, link.Connected, m.State())
	assert.Equal(t, connects+1, client.connects)
	assert.Zero(t, m.Status().Retries)

	m.Tick(ctx)
	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "meter-1/heartbeat", msgs[1].Topic)
}
