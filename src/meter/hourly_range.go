package meter

import (
	"math"
	"sync"
	"time"
)

// rangeBucket holds min/max values seen during one wall-clock minute
type rangeBucket struct {
	minute   time.Time // start of the minute, zero = empty
	min, max float64
}

// HourlyRange tracks min/max values over a rolling one hour window using sixty
// one-minute buckets. Buckets older than an hour are ignored rather than swept.
type HourlyRange struct {
	mu      sync.Mutex
	buckets [60]rangeBucket
}

// Observe records a value at time t
func (r *HourlyRange) Observe(value float64, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	minute := t.Truncate(time.Minute)
	b := &r.buckets[minute.Minute()]
	if !b.minute.Equal(minute) {
		*b = rangeBucket{minute: minute, min: value, max: value}
		return
	}
	b.min = min(b.min, value)
	b.max = max(b.max, value)
}

// Range returns min and max over the hour ending at now, or 0, 0 with no data
func (r *HourlyRange) Range(now time.Time) (lo, hi float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Truncate(time.Minute).Add(-time.Hour)
	lo, hi = math.MaxFloat64, -math.MaxFloat64
	for _, b := range r.buckets {
		if b.minute.IsZero() || !b.minute.After(cutoff) {
			continue
		}
		lo = min(lo, b.min)
		hi = max(hi, b.max)
	}

	if lo == math.MaxFloat64 {
		return 0, 0
	}
	return lo, hi
}
