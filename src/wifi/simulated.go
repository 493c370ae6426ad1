package wifi

import (
	"context"
	"fmt"
	"sync"

	"github.com/ryansname/powermeter/src/link"
)

// SimulatedLink is a network stack for mock runs and tests. It fails the first
// FailConnects attempts, then stays up until Drop is called.
type SimulatedLink struct {
	mu           sync.Mutex
	FailConnects int
	RSSI         int
	up           bool
	attempts     int
}

// Ensure SimulatedLink implements Link
var _ Link = (*SimulatedLink)(nil)

func NewSimulatedLink(failConnects, rssi int) *SimulatedLink {
	return &SimulatedLink{FailConnects: failConnects, RSSI: rssi}
}

func (s *SimulatedLink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.attempts <= s.FailConnects {
		return fmt.Errorf("simulated association failure %d: %w", s.attempts, link.ErrLinkDown)
	}
	s.up = true
	return nil
}

func (s *SimulatedLink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

func (s *SimulatedLink) SignalStrength() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.up {
		return 0, link.ErrLinkDown
	}
	return s.RSSI, nil
}

// Drop takes the link down
func (s *SimulatedLink) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.up = false
}

// Attempts returns the number of Connect calls so far
func (s *SimulatedLink) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
