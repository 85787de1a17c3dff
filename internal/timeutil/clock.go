// Package timeutil supplies the time source used to stamp and time runs.
package timeutil

import (
	"sync"
	"time"
)

// Clock returns the current time. The analysis runner and run store read
// every timestamp through it.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// StepClock is a deterministic clock for tests. Each call to Now returns
// the current reading and then moves the clock forward by the step, so a
// stage timed with two readings always lasts exactly one step.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock starts a clock at start that advances by step per reading.
// A zero step gives a frozen clock.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Advance moves the clock forward by d without taking a reading.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.next.Add(d)
}
