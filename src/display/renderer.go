package display

import (
	"fmt"
	"sync"
)

// Renderer paints snapshots onto a Surface. It never touches the network or
// the sensor, and never holds a producer's lock.
type Renderer struct {
	mu      sync.Mutex
	surface Surface
}

func NewRenderer(surface Surface) *Renderer {
	return &Renderer{surface: surface}
}

// Render draws one frame for snap and flushes it
func (r *Renderer) Render(snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.surface.Clear()
	if snap.Phase == Running {
		r.drawTime(snap)
		r.drawSignalStrength(snap)
		r.drawAmpsWatts(snap)
		r.drawMeasurementProgress(snap)
	} else {
		r.drawBootscreen(snap)
	}

	if err := r.surface.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	return nil
}

func (r *Renderer) drawTime(snap Snapshot) {
	r.surface.SetFont(FontSmall)
	r.surface.SetCursor(0, 0)
	r.surface.Print(snap.ClockText)
}

func (r *Renderer) drawSignalStrength(snap Snapshot) {
	const x = 51
	const spacing = 2

	bars := SignalBars(snap.WiFiStrengthDbm)
	for i := range 4 {
		height := 2
		if i < bars {
			height = 2 * (i + 1)
		}
		r.surface.DrawBox(x+spacing*i, 8-height, 1, height)
	}
}

func (r *Renderer) drawAmpsWatts(snap Snapshot) {
	const startY = 30

	amps := FormatAmps(snap.Amps)
	watts := FormatWatts(snap.Watts)

	r.centered(amps, FontLarge, startY)
	r.centered("Amps", FontSmall, startY+15)
	r.centered(watts, FontLarge, startY+40)
	r.centered("Watt", FontSmall, startY+60)
}

func (r *Renderer) centered(text string, f Font, y int) {
	r.surface.SetFont(f)
	r.surface.SetCursor(CenterX(text, f), y)
	r.surface.Print(text)
}

// drawMeasurementProgress draws a bar 2px per buffered reading
func (r *Renderer) drawMeasurementProgress(snap Snapshot) {
	if snap.BufferFill <= 0 {
		return
	}
	r.surface.DrawBox(0, ScreenHeight-20, min(snap.BufferFill*2, ScreenWidth), 2)
}

// drawBootscreen draws four ascending bars and the phase being waited on
func (r *Renderer) drawBootscreen(snap Snapshot) {
	const (
		x          = 14
		y          = 70
		width      = 6
		maxHeight  = 35
		heightStep = 10
		spacing    = 10
	)

	for i := range 4 {
		r.surface.DrawBox(x+spacing*i, y-heightStep*i, width, maxHeight-heightStep*(3-i))
	}

	r.surface.SetFont(FontSmall)
	r.surface.SetCursor(0, y+maxHeight/2)

	var sub string
	switch snap.Phase {
	case Booting:
		r.surface.Print("Starting")
		return
	case ConnectingWiFi:
		sub = "WiFi"
	case ConnectingCloud:
		sub = "Cloud"
	}

	r.surface.Print("Connecting")
	if sub != "" {
		r.surface.SetCursor(CenterX(sub, FontSmall), y+maxHeight/2+FontSmall.Height)
		r.surface.Print(sub)
	}
}
