// Package pause suspends a goroutine until an instant with drift correction.
//
// Until never trusts a single long timer: it sleeps half of the remaining gap,
// re-reads the clock and repeats, so a late wake-up from the host (process
// suspend, GC pause, overloaded runtime) costs at most half of what is left
// instead of overshooting the deadline.
package pause

import (
	"context"
	"time"
)

// DefaultMinStep is the shortest slice Until will sleep in halves.
// Below it the whole remainder is slept in one go.
const DefaultMinStep = time.Millisecond

// Timer works like time.Timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock abstracts the wall clock so tests can drive time by hand.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer {
	return &stdTimer{t: time.NewTimer(d)}
}

type stdTimer struct {
	t *time.Timer
}

func (s *stdTimer) C() <-chan time.Time { return s.t.C }

func (s *stdTimer) Stop() bool { return s.t.Stop() }

// System is the real wall clock.
var System Clock = systemClock{}

// Pauser sleeps against a Clock.
type Pauser struct {
	clock   Clock
	minStep time.Duration
}

// Option configures a Pauser.
type Option func(*Pauser)

// WithMinStep overrides DefaultMinStep.
func WithMinStep(d time.Duration) Option {
	return func(p *Pauser) {
		if d > 0 {
			p.minStep = d
		}
	}
}

// New returns a Pauser bound to clock. A nil clock means System.
func New(clock Clock, opts ...Option) *Pauser {
	if clock == nil {
		clock = System
	}
	p := &Pauser{clock: clock, minStep: DefaultMinStep}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Clock returns the clock the Pauser reads.
func (p *Pauser) Clock() Clock {
	return p.clock
}

// Sleep suspends for d. Non-positive d returns nil without suspending.
// The only error is ctx.Err() when ctx ends first.
func (p *Pauser) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := p.clock.NewTimer(d)
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

// Until suspends until the clock reads deadline or later and reports how many
// sleep rounds it took. A deadline that is not in the future returns at once
// with zero rounds.
func (p *Pauser) Until(ctx context.Context, deadline time.Time) (int, error) {
	rounds := 0
	now := p.clock.Now()
	for deadline.After(now) {
		remaining := deadline.Sub(now)
		step := remaining / 2
		if step < p.minStep {
			step = remaining
		}
		if err := p.Sleep(ctx, step); err != nil {
			return rounds, err
		}
		rounds++
		now = p.clock.Now()
	}
	return rounds, nil
}

// Sleep suspends for d on the system clock.
func Sleep(ctx context.Context, d time.Duration) error {
	return New(System).Sleep(ctx, d)
}

// Until suspends until deadline on the system clock.
func Until(ctx context.Context, deadline time.Time) error {
	_, err := New(System).Until(ctx, deadline)
	return err
}
