// Package link keeps network connections alive with bounded retry backoff.
package link

import "time"

// State is the phase of one keep-alive state machine
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// Transition is emitted every time a machine enters a state, including repeated
// entries into Reconnecting after consecutive failed attempts
type Transition struct {
	Link    string
	From    State
	To      State
	Retries int
	Err     error
	At      time.Time
}

// Status is a point-in-time copy of a machine's bookkeeping
type Status struct {
	Name          string
	State         State
	Retries       int
	LastAttempt   time.Time
	NextAttempt   time.Time
	EverConnected bool
	LastErr       error
}
