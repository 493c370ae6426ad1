// Package wifi watches the wireless link the meter reports through.
package wifi

import (
	"context"
	"errors"
	"time"

	"github.com/ryansname/powermeter/src/link"
)

// ErrNoSignal is returned when the interface has no signal reading
var ErrNoSignal = errors.New("no signal reading")

// Link is the network stack: a wireless connection and its signal strength
type Link interface {
	Connect(ctx context.Context) error
	Connected() bool
	// SignalStrength returns the RSSI in dBm
	SignalStrength() (int, error)
}

// SignalSink receives RSSI samples
type SignalSink interface {
	SetSignalStrength(dbm int)
}

// Duty adapts a Link for a link.Machine. While connected it samples signal
// strength into the sink every period; a failed sample counts as a drop.
type Duty struct {
	network Link
	sink    SignalSink
	period  time.Duration

	nextSample time.Time
}

// Ensure Duty implements link.Link
var _ link.Link = (*Duty)(nil)

func NewDuty(network Link, sink SignalSink, period time.Duration) *Duty {
	return &Duty{network: network, sink: sink, period: period}
}

func (d *Duty) Connect(ctx context.Context) error {
	if err := d.network.Connect(ctx); err != nil {
		return err
	}
	d.nextSample = time.Time{}
	return nil
}

func (d *Duty) Connected() bool {
	return d.network.Connected()
}

func (d *Duty) Serve(ctx context.Context, now time.Time) error {
	if now.Before(d.nextSample) {
		return nil
	}
	d.nextSample = now.Add(d.period)

	dbm, err := d.network.SignalStrength()
	if err != nil {
		return err
	}
	d.sink.SetSignalStrength(dbm)
	return nil
}
