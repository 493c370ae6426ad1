package display

import (
	"log"
	"sync"

	"github.com/ryansname/powermeter/src/link"
)

// Role identifies which connection a state machine maintains
type Role int

const (
	RoleWiFi Role = iota
	RoleCloud
	RoleLocal
)

// PhaseGate derives the boot phase from the connection state machines and is
// the only writer of State's phase. WiFi gates ConnectingWiFi and the cloud
// broker gates ConnectingCloud. Once WiFi and every enabled broker have each
// connected at least once the phase latches to Running.
type PhaseGate struct {
	state        *State
	cloudEnabled bool
	localEnabled bool

	mu      sync.Mutex
	wifiUp  bool
	cloudUp bool
	localUp bool
	running bool
}

// NewPhaseGate creates a gate writing into state
func NewPhaseGate(state *State, cloudEnabled, localEnabled bool) *PhaseGate {
	return &PhaseGate{
		state:        state,
		cloudEnabled: cloudEnabled,
		localEnabled: localEnabled,
	}
}

// Observer returns a transition callback for the machine playing role
func (g *PhaseGate) Observer(role Role) func(link.Transition) {
	return func(t link.Transition) {
		g.observe(role, t)
	}
}

func (g *PhaseGate) observe(role Role, t link.Transition) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}

	if t.To == link.Connected {
		switch role {
		case RoleWiFi:
			g.wifiUp = true
		case RoleCloud:
			g.cloudUp = true
		case RoleLocal:
			g.localUp = true
		}
	}

	switch {
	case g.wifiUp && (!g.cloudEnabled || g.cloudUp) && (!g.localEnabled || g.localUp):
		g.running = true
		g.set(Running)
	case role == RoleWiFi && !g.wifiUp:
		g.set(ConnectingWiFi)
	case g.wifiUp && g.cloudEnabled && !g.cloudUp && (role == RoleWiFi || role == RoleCloud):
		g.set(ConnectingCloud)
	}
}

func (g *PhaseGate) set(p AppPhase) {
	if g.state.Phase() == p {
		return
	}
	log.Printf("Phase: %s\n", p)
	g.state.SetPhase(p)
}

// Running reports whether the gate has latched to Running
func (g *PhaseGate) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
