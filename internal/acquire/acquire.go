// Package acquire runs the bounded-time polling loop that turns a GNSS
// driver into a single fix or timeout outcome.
package acquire

import (
	"time"

	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/gnss"
)

const (
	// MaxBudget caps any acquisition attempt.
	MaxBudget = 90 * time.Second

	DefaultBackoff = time.Second
	DefaultIdle    = 50 * time.Millisecond
)

// Budget derives the acquisition time budget from the reporting interval:
// half the interval, capped at MaxBudget. Zero means unset and gets the cap.
func Budget(intervalMs uint32) time.Duration {
	if intervalMs == 0 {
		return MaxBudget
	}
	if intervalMs > uint32(MaxBudget/time.Millisecond) {
		return MaxBudget
	}
	return time.Duration(intervalMs/2) * time.Millisecond
}

// Status is the outcome of one acquisition.
type Status int

const (
	StatusTimeout Status = iota
	StatusFix
	// StatusDegenerate is a reported fix at exactly 0,0. It is handled like
	// a timeout.
	StatusDegenerate
)

func (s Status) String() string {
	switch s {
	case StatusFix:
		return "fix"
	case StatusDegenerate:
		return "degenerate"
	default:
		return "timeout"
	}
}

// Outcome is the single result of Acquire.
type Outcome struct {
	Status  Status
	Fix     gnss.RawFix
	Polls   int
	Elapsed time.Duration
}

// OK reports whether the outcome carries a usable fix.
func (o Outcome) OK() bool { return o.Status == StatusFix }

// Poller is the part of gnss.Driver the loop needs.
type Poller interface {
	PollOnce() (gnss.RawFix, gnss.PollStatus, error)
}

// Acquirer polls a driver until it reports a fix or the budget runs out.
type Acquirer struct {
	Clock gnss.Clock
	// Backoff is slept after PollWait.
	Backoff time.Duration
	// Idle is slept after PollNoFix so a silent sentence module does not spin.
	Idle time.Duration
	Log  logrus.FieldLogger
}

func (a *Acquirer) clock() gnss.Clock {
	if a.Clock == nil {
		return gnss.SystemClock
	}
	return a.Clock
}

func (a *Acquirer) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.WithField("component", "acquire")
	}
	return a.Log
}

// Acquire polls p until a fix arrives or budget elapses. A single poll is not
// interrupted; the budget is checked between polls. Poll errors are logged
// and treated as PollWait.
func (a *Acquirer) Acquire(p Poller, budget time.Duration) Outcome {
	clk := a.clock()
	log := a.log()
	backoff, idle := a.Backoff, a.Idle
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if idle <= 0 {
		idle = DefaultIdle
	}

	start := clk.Now()
	var out Outcome
	for clk.Now().Sub(start) < budget {
		fix, st, err := p.PollOnce()
		out.Polls++
		if err != nil {
			log.WithError(err).Warn("poll failed")
			st = gnss.PollWait
		}

		switch st {
		case gnss.PollFix:
			out.Elapsed = clk.Now().Sub(start)
			if fix.LatE7 == 0 && fix.LonE7 == 0 {
				log.Warn("discarding fix at 0,0")
				out.Status = StatusDegenerate
				return out
			}
			out.Status = StatusFix
			out.Fix = fix
			return out
		case gnss.PollWait:
			clk.Sleep(backoff)
		default:
			clk.Sleep(idle)
		}
	}

	out.Status = StatusTimeout
	out.Elapsed = clk.Now().Sub(start)
	return out
}
