package meter

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// MockSource simulates a household load swinging around a base current
type MockSource struct {
	BaseAmps  float64
	SwingAmps float64
	Period    time.Duration
	FailEvery int // every Nth read fails with ErrSensorTransient, 0 = never

	mu    sync.Mutex
	start time.Time
	reads int
	now   func() time.Time
}

// NewMockSource creates a mock with a 1.5 A base load swinging by 1 A over 5 minutes
func NewMockSource() *MockSource {
	return &MockSource{
		BaseAmps:  1.5,
		SwingAmps: 1.0,
		Period:    5 * time.Minute,
		now:       time.Now,
	}
}

// ReadCurrentRMS returns the simulated current at the present time
func (m *MockSource) ReadCurrentRMS(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSensorTransient, err)
	}

	if m.now == nil {
		m.now = time.Now
	}
	now := m.now()
	if m.start.IsZero() {
		m.start = now
	}

	m.reads++
	if m.FailEvery > 0 && m.reads%m.FailEvery == 0 {
		return 0, fmt.Errorf("%w: simulated timeout", ErrSensorTransient)
	}

	if m.Period <= 0 {
		return m.BaseAmps, nil
	}
	phase := 2 * math.Pi * float64(now.Sub(m.start)) / float64(m.Period)
	return math.Max(0, m.BaseAmps+m.SwingAmps*math.Sin(phase)), nil
}
