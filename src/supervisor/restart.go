package supervisor

import (
	"context"
	"log"
	"time"
)

const (
	maxDelay    = 10 * time.Minute
	healthyRun  = 2 * time.Minute
	logEveryNth = 10
)

// initialDelay is the wait before the first restart of a crashed task
var initialDelay = time.Second

// Go runs fn on its own goroutine and restarts it whenever it panics. The
// restart delay doubles up to maxDelay and falls back to initialDelay once fn
// has stayed up for healthyRun. Only ctx ends the loop; a task that keeps
// crashing keeps being restarted.
func Go(ctx context.Context, name string, fn func(ctx context.Context)) {
	go func() {
		delay := initialDelay
		crashes := 0

		for {
			started := time.Now()
			crash, ok := runOnce(ctx, fn)
			if !ok {
				return
			}

			if time.Since(started) >= healthyRun {
				delay = initialDelay
				crashes = 0
			}
			crashes++
			if crashes == 1 || crashes%logEveryNth == 0 {
				log.Printf("%s crashed (%d in a row): %v, restarting in %v\n", name, crashes, crash, delay)
			}

			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
			delay = min(delay*2, maxDelay)
		}
	}()
}

// runOnce calls fn and reports the recovered panic value. ok is false when fn
// returned normally.
func runOnce(ctx context.Context, fn func(ctx context.Context)) (crash any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			crash, ok = r, true
		}
	}()
	fn(ctx)
	return nil, false
}
