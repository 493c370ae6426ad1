// Package display holds the state shared between producer tasks and the
// renderer, and paints it onto the device screen.
package display

import (
	"math"
	"sync/atomic"
)

// AppPhase is the boot/connection phase shown on screen
type AppPhase int32

const (
	Booting AppPhase = iota
	ConnectingWiFi
	ConnectingCloud
	Running
)

func (p AppPhase) String() string {
	switch p {
	case Booting:
		return "Booting"
	case ConnectingWiFi:
		return "ConnectingWiFi"
	case ConnectingCloud:
		return "ConnectingCloud"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// PlaceholderClock is shown until the clock task writes the time
const PlaceholderClock = "--:--"

// State is the single record written by every producer task and read by the
// renderer. Each setter is one atomic store of one field; there is no
// cross-field consistency, so a snapshot may mix values from different
// moments. The only consumer is the display, where that shows as a stale value
// for at most one frame.
type State struct {
	clock      atomic.Pointer[string]
	amps       atomic.Uint64
	watts      atomic.Uint64
	rssi       atomic.Int32
	phase      atomic.Int32
	bufferFill atomic.Int32
	bufferCap  atomic.Int32
}

// Snapshot is a plain copy of State
type Snapshot struct {
	ClockText       string
	Amps            float64
	Watts           float64
	WiFiStrengthDbm int
	Phase           AppPhase
	BufferFill      int
	BufferCap       int
}

// NewState creates the record with placeholder values and phase Booting
func NewState() *State {
	s := &State{}
	s.SetClock(PlaceholderClock)
	s.SetPhase(Booting)
	return s
}

func (s *State) SetClock(text string) {
	s.clock.Store(&text)
}

// SetReading stores amps then watts as two independent writes
func (s *State) SetReading(amps, watts float64) {
	s.amps.Store(math.Float64bits(amps))
	s.watts.Store(math.Float64bits(watts))
}

func (s *State) SetSignalStrength(dbm int) {
	s.rssi.Store(int32(dbm))
}

// SetPhase is reserved for the PhaseGate; other components only read the phase
func (s *State) SetPhase(p AppPhase) {
	s.phase.Store(int32(p))
}

func (s *State) SetBufferFill(n, capacity int) {
	s.bufferFill.Store(int32(n))
	s.bufferCap.Store(int32(capacity))
}

func (s *State) Phase() AppPhase {
	return AppPhase(s.phase.Load())
}

// Snapshot copies every field. It never waits on a writer.
func (s *State) Snapshot() Snapshot {
	clock := PlaceholderClock
	if p := s.clock.Load(); p != nil {
		clock = *p
	}
	return Snapshot{
		ClockText:       clock,
		Amps:            math.Float64frombits(s.amps.Load()),
		Watts:           math.Float64frombits(s.watts.Load()),
		WiFiStrengthDbm: int(s.rssi.Load()),
		Phase:           AppPhase(s.phase.Load()),
		BufferFill:      int(s.bufferFill.Load()),
		BufferCap:       int(s.bufferCap.Load()),
	}
}
