package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name     string
		backoff  Backoff
		failures int
		want     time.Duration
	}{
		{"first failure", DefaultBackoff(), 1, time.Second},
		{"second failure", DefaultBackoff(), 2, 2 * time.Second},
		{"third failure", DefaultBackoff(), 3, 4 * time.Second},
		{"capped", DefaultBackoff(), 10, time.Minute},
		{"huge failure count stays capped", DefaultBackoff(), 1000, time.Minute},
		{"fixed policy", Backoff{Min: 3 * time.Second, Max: time.Minute}, 5, 3 * time.Second},
		{"min clamped to floor", Backoff{Min: 10 * time.Millisecond, Max: time.Second, Exponential: true}, 1, MinRetryInterval},
		{"max below min", Backoff{Min: 2 * time.Second, Max: time.Second, Exponential: true}, 4, 2 * time.Second},
		{"zero value", Backoff{}, 3, MinRetryInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.Delay(tt.failures))
		})
	}
}

func TestBackoff_Monotonic(t *testing.T) {
	b := DefaultBackoff()
	prev := time.Duration(0)
	for i := 1; i < 20; i++ {
		d := b.Delay(i)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, b.Max)
		prev = d
	}
}
