package main

import (
	"context"
	"log"
	"time"

	"github.com/ryansname/powermeter/src/clock"
	"github.com/ryansname/powermeter/src/display"
	"github.com/ryansname/powermeter/src/link"
	"github.com/ryansname/powermeter/src/meter"
	"github.com/ryansname/powermeter/src/supervisor"
)

// affinityDisplay is the execution context shared by the renderer and sampler
// when the display driver cannot be used from several threads
const affinityDisplay supervisor.Affinity = "display"

const (
	linkTickPeriod = 250 * time.Millisecond
	clockPeriod    = time.Second
	timeSyncPeriod = 10 * time.Second
)

// taskSet is everything the supervisor runs
type taskSet struct {
	sampler       *meter.Sampler
	samplePeriod  time.Duration
	renderer      *display.Renderer
	state         *display.State
	refreshPeriod time.Duration
	clock         *clock.Display
	ntp           *clock.NTPClock // nil when time sync is off
	wifi          *link.Machine
	brokers       []*link.Machine
}

// renderStep paints one frame. Flush failures are retried on the next frame.
func renderStep(renderer *display.Renderer, state *display.State) func(context.Context) {
	return func(ctx context.Context) {
		if err := renderer.Render(state.Snapshot()); err != nil {
			log.Printf("Display: %v\n", err)
		}
	}
}

// buildSupervisor declares the fixed task table. The sampler and renderer are
// latency sensitive; connectivity is background work.
func buildSupervisor(ts taskSet, sharedContext bool) (*supervisor.Supervisor, error) {
	shared := supervisor.AffinityAny
	if sharedContext {
		shared = affinityDisplay
	}
	sup := supervisor.New(shared)

	tasks := []supervisor.Task{
		{
			Name:     "sampler",
			Priority: supervisor.PriorityRealtime,
			Affinity: affinityDisplay,
			Period:   ts.samplePeriod,
			Step:     ts.sampler.Step,
		},
		{
			Name:     "renderer",
			Priority: supervisor.PriorityRealtime,
			Affinity: affinityDisplay,
			Period:   ts.refreshPeriod,
			Step:     renderStep(ts.renderer, ts.state),
		},
		{
			Name:     "clock",
			Priority: supervisor.PriorityNormal,
			Period:   clockPeriod,
			Step:     ts.clock.Step,
		},
	}

	for _, m := range ts.brokers {
		tasks = append(tasks, supervisor.Task{
			Name:     m.Name(),
			Priority: supervisor.PriorityNetwork,
			Period:   linkTickPeriod,
			Step:     m.Step,
		})
	}

	tasks = append(tasks, supervisor.Task{
		Name:     ts.wifi.Name(),
		Priority: supervisor.PriorityBackground,
		Period:   linkTickPeriod,
		Step:     ts.wifi.Step,
	})

	if ts.ntp != nil {
		tasks = append(tasks, supervisor.Task{
			Name:     "time-sync",
			Priority: supervisor.PriorityBackground,
			Period:   timeSyncPeriod,
			Step:     ts.ntp.Step,
		})
	}

	for _, t := range tasks {
		if err := sup.Add(t); err != nil {
			return nil, err
		}
	}
	return sup, nil
}
