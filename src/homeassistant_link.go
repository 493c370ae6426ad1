package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ryansname/powermeter/src/config"
	"github.com/ryansname/powermeter/src/display"
	"github.com/ryansname/powermeter/src/link"
	"github.com/ryansname/powermeter/src/meter"
)

type haState struct {
	Watts      float64 `json:"watts"`
	Amps       float64 `json:"amps"`
	RSSI       int     `json:"rssi"`
	WattsMin1h float64 `json:"watts_min_1h"`
	WattsMax1h float64 `json:"watts_max_1h"`
}

// HomeAssistantLink reports to the local hub: discovery config once per
// connection, then the meter state every heartbeat period.
type HomeAssistantLink struct {
	conn            *brokerConn
	deviceName      string
	state           *display.State
	peaks           *meter.HourlyRange
	heartbeatPeriod time.Duration

	discovered    bool
	nextHeartbeat time.Time
}

// Ensure HomeAssistantLink implements link.Link
var _ link.Link = (*HomeAssistantLink)(nil)

func NewHomeAssistantLink(cfg *config.Config, state *display.State, peaks *meter.HourlyRange) *HomeAssistantLink {
	conn := newBrokerConn("Home Assistant", fmt.Sprintf("tcp://%s:%d", cfg.Local.Broker, cfg.Local.Port), cfg.DeviceID+"-ha")
	conn.opts.SetUsername(cfg.Local.Username)
	conn.opts.SetPassword(cfg.Local.Password)

	return newHomeAssistantLink(conn, cfg, state, peaks)
}

func newHomeAssistantLink(conn *brokerConn, cfg *config.Config, state *display.State, peaks *meter.HourlyRange) *HomeAssistantLink {
	return &HomeAssistantLink{
		conn:            conn,
		deviceName:      cfg.DeviceID,
		state:           state,
		peaks:           peaks,
		heartbeatPeriod: cfg.Local.HeartbeatPeriod,
	}
}

func (h *HomeAssistantLink) Connect(ctx context.Context) error {
	if err := h.conn.connect(ctx); err != nil {
		return err
	}
	h.discovered = false
	h.nextHeartbeat = time.Time{}
	return nil
}

func (h *HomeAssistantLink) Connected() bool {
	return h.conn.connected()
}

func (h *HomeAssistantLink) Serve(ctx context.Context, now time.Time) error {
	if !h.discovered {
		msgs, err := discoveryMessages(h.deviceName, uint(h.heartbeatPeriod.Seconds()))
		if err != nil {
			return err
		}
		if err := h.conn.sender.SendAll(msgs); err != nil {
			return err
		}
		h.discovered = true
		log.Printf("Home Assistant: published %d discovery configs\n", len(msgs))
	}

	if now.Before(h.nextHeartbeat) {
		return nil
	}
	h.nextHeartbeat = now.Add(h.heartbeatPeriod)

	msg, err := jsonMessage(haStateTopic(h.deviceName), 1, false, h.snapshot(now))
	if err != nil {
		return err
	}
	return h.conn.sender.Send(msg)
}

func (h *HomeAssistantLink) snapshot(now time.Time) haState {
	snap := h.state.Snapshot()
	lo, hi := h.peaks.Range(now)
	return haState{
		Watts:      math.Round(snap.Watts),
		Amps:       math.Round(snap.Amps*100) / 100,
		RSSI:       snap.WiFiStrengthDbm,
		WattsMin1h: math.Round(lo),
		WattsMax1h: math.Round(hi),
	}
}

// Close disconnects from the hub
func (h *HomeAssistantLink) Close() {
	h.conn.close()
}
