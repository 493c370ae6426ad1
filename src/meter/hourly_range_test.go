package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourlyRange_Empty(t *testing.T) {
	var r HourlyRange
	lo, hi := r.Range(time.Now())
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestHourlyRange_TracksMinMax(t *testing.T) {
	var r HourlyRange
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	r.Observe(500, base)
	r.Observe(120, base.Add(10*time.Second))
	r.Observe(900, base.Add(5*time.Minute))

	lo, hi := r.Range(base.Add(6 * time.Minute))
	assert.Equal(t, 120.0, lo)
	assert.Equal(t, 900.0, hi)
}

func TestHourlyRange_ExpiresAfterAnHour(t *testing.T) {
	var r HourlyRange
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	r.Observe(50, base)
	r.Observe(300, base.Add(30*time.Minute))

	lo, hi := r.Range(base.Add(61 * time.Minute))
	assert.Equal(t, 300.0, lo)
	assert.Equal(t, 300.0, hi)
}

func TestHourlyRange_ReusesBucketNextHour(t *testing.T) {
	var r HourlyRange
	base := time.Date(2026, 1, 1, 12, 7, 0, 0, time.UTC)

	r.Observe(1000, base)
	r.Observe(10, base.Add(time.Hour))

	lo, hi := r.Range(base.Add(time.Hour))
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 10.0, hi)
}
