// Package moments finds the instants at which a pattern matches inside a
// time window.
//
// The window is (from, to]: from is exclusive, to inclusive. Next covers the
// unbounded form and returns a single instant; Between covers the bounded form
// and returns every match (autorecover) or only the earliest one.
package moments

import (
	"log/slog"
	"time"

	"cronloop/internal/pattern"
)

// Enumerator applies the window policy on top of a Strategy.
type Enumerator struct {
	strategy Strategy
}

// Options configures New.
type Options struct {
	// Kind forces a strategy. Empty means KindParser.
	Kind Kind
	// Horizon bounds unbounded stepper scans. Zero means DefaultHorizon.
	Horizon time.Duration
	Logger  *slog.Logger
}

// New selects the strategy once. KindParser falls back to the stepper when
// the parser rejects the expression the matcher accepted.
func New(m *pattern.Matcher, opts Options) *Enumerator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Kind != KindStepper {
		p, err := NewParserBacked(m.Expression(), m.Location())
		if err == nil {
			return &Enumerator{strategy: p}
		}
		logger.Warn("parser strategy unavailable, stepping instead",
			"expression", m.Expression(), "error", err)
	}
	return &Enumerator{strategy: NewFallbackStepper(m, opts.Horizon)}
}

// WithStrategy wraps an explicit strategy.
func WithStrategy(s Strategy) *Enumerator {
	return &Enumerator{strategy: s}
}

// Kind reports which strategy was selected.
func (e *Enumerator) Kind() Kind {
	return e.strategy.Kind()
}

// Next returns the first moment strictly after after. The boolean is false
// when the pattern never matches again (or, for the stepper, not within its
// horizon).
func (e *Enumerator) Next(after time.Time) (time.Time, bool) {
	for tick := range e.strategy.Occurrences(after, time.Time{}) {
		if !tick.After(after) {
			continue
		}
		return tick, true
	}
	return time.Time{}, false
}

// Between returns the moments in (from, to] in ascending order. Without
// autorecover at most the earliest one is returned. An inverted window is
// empty and never reaches the strategy.
func (e *Enumerator) Between(from, to time.Time, autorecover bool) []time.Time {
	if from.After(to) {
		return nil
	}

	var result []time.Time
	for tick := range e.strategy.Occurrences(from, to) {
		if !tick.After(from) {
			continue
		}
		if tick.After(to) {
			break
		}
		result = append(result, tick)
		if !autorecover {
			break
		}
	}
	return result
}
