// Package monitoring holds the process-wide progress logger used by the
// CLI and the analysis runner.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level progress logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stopwatch times one stage of a run and reports it through Logf.
type Stopwatch struct {
	stage string
	start time.Time
	now   func() time.Time
}

// StartStage begins timing stage using now as the time source. A nil now
// uses time.Now.
func StartStage(stage string, now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	Logf("%s: started", stage)
	return &Stopwatch{stage: stage, start: now(), now: now}
}

// Elapsed returns the time since the stage began.
func (s *Stopwatch) Elapsed() time.Duration { return s.now().Sub(s.start) }

// Stop logs the stage duration and returns it.
func (s *Stopwatch) Stop() time.Duration {
	d := s.Elapsed()
	Logf("%s: finished in %v", s.stage, d.Round(time.Millisecond))
	return d
}
