// Package supervisor runs the meter's fixed set of periodic tasks.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"
	"time"
)

// ErrStarted is returned when a task is added after Start
var ErrStarted = errors.New("supervisor already started")

// Priority orders tasks by real-time sensitivity; higher starts and steps first
type Priority int

const (
	PriorityBackground Priority = 1
	PriorityNetwork    Priority = 2
	PriorityNormal     Priority = 3
	PriorityRealtime   Priority = 5
)

// Affinity names an execution context. Tasks sharing the supervisor's shared
// affinity are stepped one at a time on a single OS thread.
type Affinity string

// AffinityAny lets a task run on its own goroutine
const AffinityAny Affinity = ""

// Task is one long-lived periodic unit of work. Step must return promptly;
// it is called again after Period.
type Task struct {
	Name     string
	Priority Priority
	Affinity Affinity
	Period   time.Duration
	Step     func(ctx context.Context)
}

// Supervisor holds the task table. Tasks are added before Start; the table is
// fixed afterwards.
type Supervisor struct {
	shared Affinity

	mu      sync.Mutex
	tasks   []Task
	started bool
}

// New creates a supervisor. Tasks with the shared affinity run on one locked
// OS thread; pass AffinityAny to give every task its own goroutine.
func New(shared Affinity) *Supervisor {
	return &Supervisor{shared: shared}
}

func (s *Supervisor) Add(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("add %s: %w", t.Name, ErrStarted)
	}
	if t.Period <= 0 {
		return fmt.Errorf("task %s has no period", t.Name)
	}
	if t.Step == nil {
		return fmt.Errorf("task %s has no step", t.Name)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Tasks returns the task table in start order
func (s *Supervisor) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Start launches every task in priority order. A panicking task is restarted
// for as long as ctx lives.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	slices.SortStableFunc(s.tasks, func(a, b Task) int {
		return int(b.Priority) - int(a.Priority)
	})
	tasks := slices.Clone(s.tasks)
	s.mu.Unlock()

	var group []Task
	for _, t := range tasks {
		if s.isShared(t) {
			group = append(group, t)
		}
	}

	groupStarted := false
	for _, t := range tasks {
		if s.isShared(t) {
			if groupStarted {
				continue
			}
			// the group starts at the slot of its most urgent member
			groupStarted = true
			name := "context-" + string(s.shared)
			Go(ctx, name, func(ctx context.Context) {
				runShared(ctx, group)
			})
			log.Printf("%s started with %d tasks\n", name, len(group))
			continue
		}

		Go(ctx, t.Name, func(ctx context.Context) {
			runPeriodic(ctx, t)
		})
		log.Printf("%s started (priority %d)\n", t.Name, t.Priority)
	}
	return nil
}

func (s *Supervisor) isShared(t Task) bool {
	return s.shared != AffinityAny && t.Affinity == s.shared
}

func runPeriodic(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()

	for {
		t.Step(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// runShared steps every due task of the group in priority order, then sleeps
// until the next one is due. Steps never overlap.
func runShared(ctx context.Context, tasks []Task) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	next := make([]time.Time, len(tasks))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}

		var earliest time.Time
		for i, t := range tasks {
			now := time.Now()
			if !now.Before(next[i]) {
				t.Step(ctx)
				next[i] = now.Add(t.Period)
			}
			if earliest.IsZero() || next[i].Before(earliest) {
				earliest = next[i]
			}
		}
		timer.Reset(time.Until(earliest))
	}
}
