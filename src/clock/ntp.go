package clock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// ntpRetryDelay is how soon a failed sync is retried, when shorter than the
// resync period
const ntpRetryDelay = time.Minute

// NTPClock corrects the host clock by the offset last measured against an NTP
// server. Until the first successful sync it reports the host time.
type NTPClock struct {
	server  string
	timeout time.Duration
	resync  time.Duration
	gate    func() bool
	query   func(server string, opts ntp.QueryOptions) (*ntp.Response, error)
	now     func() time.Time

	mu       sync.RWMutex
	offset   time.Duration
	synced   bool
	nextSync time.Time
}

// Ensure NTPClock implements Source
var _ Source = (*NTPClock)(nil)

// NewNTPClock creates a clock synced every resync period. gate, when set, holds
// syncs back until it returns true (the network is up).
func NewNTPClock(server string, resync time.Duration, gate func() bool) *NTPClock {
	return &NTPClock{
		server:  server,
		timeout: 5 * time.Second,
		resync:  resync,
		gate:    gate,
		query:   ntp.QueryWithOptions,
		now:     time.Now,
	}
}

func (c *NTPClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Add(c.offset)
}

// Synced reports whether at least one sync has succeeded
func (c *NTPClock) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// Offset returns the last measured correction
func (c *NTPClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Sync queries the server once and stores the measured offset
func (c *NTPClock) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := c.query(c.server, ntp.QueryOptions{Timeout: c.timeout})
	if err != nil {
		return fmt.Errorf("ntp query %s: %w", c.server, err)
	}
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("ntp response from %s: %w", c.server, err)
	}

	c.mu.Lock()
	c.offset = resp.ClockOffset
	c.synced = true
	c.mu.Unlock()
	return nil
}

// Step syncs when the resync period has elapsed
func (c *NTPClock) Step(ctx context.Context) {
	now := c.now()

	c.mu.RLock()
	due := !now.Before(c.nextSync)
	c.mu.RUnlock()

	if !due || (c.gate != nil && !c.gate()) {
		return
	}

	next := now.Add(c.resync)
	if err := c.Sync(ctx); err != nil {
		log.Printf("Time sync failed: %v\n", err)
		next = now.Add(min(c.resync, ntpRetryDelay))
	} else {
		log.Printf("Time synced, offset %v\n", c.Offset())
	}

	c.mu.Lock()
	c.nextSync = next
	c.mu.Unlock()
}
