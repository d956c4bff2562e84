package moments

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/hashicorp/cronexpr"

	"cronloop/internal/pattern"
)

// Kind selects an enumeration strategy.
type Kind string

const (
	// KindParser asks a cron expression parser for successive occurrences.
	KindParser Kind = "parser"
	// KindStepper walks the calendar one second or one minute at a time and
	// tests every candidate with a pattern.Matcher.
	KindStepper Kind = "stepper"
)

// DefaultHorizon bounds how far an unbounded stepper scan looks ahead. Four
// years and two days always reach the next February 29th.
const DefaultHorizon = (4*365 + 2) * 24 * time.Hour

// Strategy yields occurrences strictly after from in ascending order. A zero
// to means unbounded; otherwise nothing later than to is yielded.
type Strategy interface {
	Kind() Kind
	Occurrences(from, to time.Time) iter.Seq[time.Time]
}

// ParserBacked enumerates with github.com/hashicorp/cronexpr.
type ParserBacked struct {
	expr *cronexpr.Expression
	loc  *time.Location
}

// NewParserBacked parses a canonical six-field expression. cronexpr reads a
// seven-field line as "sec min hour dom month dow year", so the year field is
// appended here.
func NewParserBacked(canonical string, loc *time.Location) (*ParserBacked, error) {
	if len(strings.Fields(canonical)) != 6 {
		return nil, fmt.Errorf("parser strategy: expected canonical six-field expression, got %q", canonical)
	}
	expr, err := cronexpr.Parse(canonical + " *")
	if err != nil {
		return nil, fmt.Errorf("parser strategy: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &ParserBacked{expr: expr, loc: loc}, nil
}

// Kind implements Strategy.
func (p *ParserBacked) Kind() Kind { return KindParser }

// Occurrences implements Strategy.
func (p *ParserBacked) Occurrences(from, to time.Time) iter.Seq[time.Time] {
	var end time.Time
	if !to.IsZero() {
		end = to.Add(time.Nanosecond)
	}
	return func(yield func(time.Time) bool) {
		tick := from.In(p.loc)
		for {
			tick = p.expr.Next(tick)
			if tick.IsZero() {
				return
			}
			if !end.IsZero() && !tick.Before(end) {
				return
			}
			if !yield(tick) {
				return
			}
		}
	}
}

// FallbackStepper enumerates by testing every candidate instant.
type FallbackStepper struct {
	matcher *pattern.Matcher
	step    time.Duration
	horizon time.Duration
}

// NewFallbackStepper picks one-second steps when the pattern has a seconds
// field and one-minute steps otherwise. A non-positive horizon means
// DefaultHorizon.
func NewFallbackStepper(m *pattern.Matcher, horizon time.Duration) *FallbackStepper {
	step := time.Minute
	if m.HasSeconds() {
		step = time.Second
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &FallbackStepper{matcher: m, step: step, horizon: horizon}
}

// Kind implements Strategy.
func (s *FallbackStepper) Kind() Kind { return KindStepper }

// Step returns the stepping granularity.
func (s *FallbackStepper) Step() time.Duration { return s.step }

// Occurrences implements Strategy. Candidates inside an hour or minute that
// cannot match are skipped as a whole, so an impossible pattern costs one
// test per hour of horizon rather than one per step.
func (s *FallbackStepper) Occurrences(from, to time.Time) iter.Seq[time.Time] {
	limit := to
	if limit.IsZero() {
		limit = from.Add(s.horizon)
	}
	return func(yield func(time.Time) bool) {
		// first whole step strictly after from, sub-step parts zeroed
		tick := from.Truncate(s.step).Add(s.step).In(s.matcher.Location())
		for !tick.After(limit) {
			field, miss := s.matcher.Mismatch(tick)
			if !miss {
				if !yield(tick) {
					return
				}
				tick = tick.Add(s.step)
				continue
			}
			tick = tick.Add(s.skip(tick, field))
		}
	}
}

// skip returns how far to move past tick when it fails on field. Distances
// follow the local wall clock and are never shorter than one step.
func (s *FallbackStepper) skip(tick time.Time, field int) time.Duration {
	var d time.Duration
	switch field {
	case pattern.FieldDom, pattern.FieldHour:
		d = time.Duration(60-tick.Minute())*time.Minute - time.Duration(tick.Second())*time.Second
	case pattern.FieldMinute:
		d = time.Duration(60-tick.Second()) * time.Second
	}
	return max(d, s.step)
}
