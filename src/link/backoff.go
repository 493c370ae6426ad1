package link

import "time"

// MinRetryInterval is the floor for any delay between connection attempts
const MinRetryInterval = 500 * time.Millisecond

// Backoff computes the delay before the next attempt after consecutive failures.
// With Exponential set the delay doubles per failure from Min up to Max,
// otherwise it is always Min.
type Backoff struct {
	Min         time.Duration
	Max         time.Duration
	Exponential bool
}

// DefaultBackoff returns capped exponential backoff from 1s to 60s
func DefaultBackoff() Backoff {
	return Backoff{Min: time.Second, Max: time.Minute, Exponential: true}
}

// Delay returns the wait after the given number of consecutive failures (>= 1)
func (b Backoff) Delay(failures int) time.Duration {
	lo := max(b.Min, MinRetryInterval)
	hi := max(b.Max, lo)

	if !b.Exponential || failures <= 1 {
		return lo
	}

	delay := lo
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= hi {
			return hi
		}
	}
	return delay
}
