package link

import (
	"context"
	"log"
	"sync"
	"time"
)

// Link is the connection a Machine keeps alive
type Link interface {
	// Connect makes one connection attempt, blocking up to the link's own timeout
	Connect(ctx context.Context) error
	// Connected reports the link's current status without blocking on the network
	Connected() bool
	// Serve performs steady-state work while connected. An error means the
	// connection dropped.
	Serve(ctx context.Context, now time.Time) error
}

// Machine is a keep-alive state machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connected ...
//
// A failed attempt enters Reconnecting and schedules the next attempt using the
// configured Backoff. A drop detected while connected enters Reconnecting at once.
// There is no terminal state.
type Machine struct {
	name      string
	link      Link
	backoff   Backoff
	now       func() time.Time
	gate      func() bool
	observers []func(Transition)

	mu            sync.RWMutex
	state         State
	retries       int
	lastAttempt   time.Time
	nextAttempt   time.Time
	everConnected bool
	lastErr       error
}

// Option configures a Machine
type Option func(*Machine)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithGate blocks connection attempts while gate returns false
func WithGate(gate func() bool) Option {
	return func(m *Machine) { m.gate = gate }
}

// WithObserver registers fn to be called after every transition
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) { m.observers = append(m.observers, fn) }
}

// New creates a machine in the Disconnected state
func New(name string, link Link, backoff Backoff, opts ...Option) *Machine {
	m := &Machine{
		name:    name,
		link:    link,
		backoff: backoff,
		now:     time.Now,
		state:   Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the machine's name
func (m *Machine) Name() string {
	return m.name
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the machine is in the Connected state
func (m *Machine) IsConnected() bool {
	return m.State() == Connected
}

// EverConnected reports whether the machine has reached Connected at least once
func (m *Machine) EverConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.everConnected
}

// Status returns a copy of the machine's bookkeeping
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Name:          m.name,
		State:         m.state,
		Retries:       m.retries,
		LastAttempt:   m.lastAttempt,
		NextAttempt:   m.nextAttempt,
		EverConnected: m.everConnected,
		LastErr:       m.lastErr,
	}
}

// Tick advances the machine once. It must only be called from the owning
// goroutine; other goroutines may read State and Status concurrently.
func (m *Machine) Tick(ctx context.Context) {
	now := m.now()

	m.mu.RLock()
	state := m.state
	nextAttempt := m.nextAttempt
	m.mu.RUnlock()

	switch state {
	case Disconnected, Reconnecting:
		if now.Before(nextAttempt) {
			return
		}
		if m.gate != nil && !m.gate() {
			return
		}
		m.attempt(ctx, now, state)

	case Connected:
		if !m.link.Connected() {
			m.drop(now, ErrLinkDown)
			return
		}
		if err := m.link.Serve(ctx, now); err != nil {
			m.drop(now, err)
		}
	}
}

// Step is Tick under the name the supervisor expects
func (m *Machine) Step(ctx context.Context) {
	m.Tick(ctx)
}

// Run ticks the machine every interval until ctx is done
func (m *Machine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Machine) attempt(ctx context.Context, now time.Time, from State) {
	m.mu.Lock()
	m.lastAttempt = now
	m.mu.Unlock()

	if from == Disconnected {
		m.transition(Connecting, now, nil)
	}

	err := m.link.Connect(ctx)
	if err != nil {
		cerr := Classify(err)

		m.mu.Lock()
		m.retries++
		delay := m.backoff.Delay(m.retries)
		m.nextAttempt = now.Add(delay)
		retries := m.retries
		m.mu.Unlock()

		log.Printf("%s: connect attempt %d failed (%v), retrying in %v\n", m.name, retries, cerr, delay)
		m.transition(Reconnecting, now, cerr)
		return
	}

	m.mu.Lock()
	m.retries = 0
	m.everConnected = true
	m.mu.Unlock()

	log.Printf("%s: connected\n", m.name)
	m.transition(Connected, now, nil)
}

func (m *Machine) drop(now time.Time, err error) {
	m.mu.Lock()
	m.nextAttempt = now.Add(m.backoff.Delay(1))
	m.mu.Unlock()

	log.Printf("%s: connection dropped: %v\n", m.name, err)
	m.transition(Reconnecting, now, err)
}

func (m *Machine) transition(to State, now time.Time, err error) {
	m.mu.Lock()
	t := Transition{
		Link:    m.name,
		From:    m.state,
		To:      to,
		Retries: m.retries,
		Err:     err,
		At:      now,
	}
	m.state = to
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()

	for _, fn := range m.observers {
		fn(t)
	}
}
