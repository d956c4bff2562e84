// Package pattern turns cron-style expressions into a canonical six-field form
// and tests single instants against them.
//
// Parsing is delegated to github.com/robfig/cron/v3; Matcher reads the parsed
// bit sets directly so that a match costs a handful of bit tests.
package pattern

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"cronloop/internal/shared"
)

// starBit mirrors robfig/cron: set on a day field written as * or ?.
const starBit = 1 << 63

var canonicalParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Matcher tests instants against a pattern in a fixed location.
type Matcher struct {
	expr string
	spec *cron.SpecSchedule
}

// NewMatcher normalizes expr and parses it. A nil loc means time.Local.
func NewMatcher(expr string, loc *time.Location) (*Matcher, error) {
	canonical, err := Normalize(expr)
	if err != nil {
		return nil, err
	}

	sched, err := canonicalParser.Parse(canonical)
	if err != nil {
		return nil, invalid(expr, err)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, invalid(expr, fmt.Errorf("%w: %T", ErrUnsupported, sched))
	}

	if loc == nil {
		loc = time.Local
	}
	spec.Location = loc

	return &Matcher{expr: canonical, spec: spec}, nil
}

// LoadLocation resolves an IANA timezone name. Empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("timezone %q: %w", name, err), shared.KindValidation)
	}
	return loc, nil
}

// Expression returns the canonical six-field expression.
func (m *Matcher) Expression() string {
	return m.expr
}

// Location returns the location instants are evaluated in.
func (m *Matcher) Location() *time.Location {
	return m.spec.Location
}

// HasSeconds reports whether the seconds field is anything other than a
// plain 0, i.e. whether the pattern can match within a minute.
func (m *Matcher) HasSeconds() bool {
	return m.spec.Second != 1<<0
}

// Match reports whether t, truncated to the second, satisfies the pattern.
func (m *Matcher) Match(t time.Time) bool {
	_, miss := m.Mismatch(t)
	return !miss
}

// Mismatch reports the coarsest field t fails on: FieldDom when the date is
// excluded (month, day of month or weekday), then FieldHour, FieldMinute and
// FieldSecond. miss is false when t matches.
func (m *Matcher) Mismatch(t time.Time) (field int, miss bool) {
	s := m.spec
	t = t.In(s.Location)

	switch {
	case 1<<uint(t.Month())&s.Month == 0 || !dayMatches(s, t):
		return FieldDom, true
	case 1<<uint(t.Hour())&s.Hour == 0:
		return FieldHour, true
	case 1<<uint(t.Minute())&s.Minute == 0:
		return FieldMinute, true
	case 1<<uint(t.Second())&s.Second == 0:
		return FieldSecond, true
	}
	return 0, false
}

// dayMatches follows cron semantics: when both day fields are restricted a
// match on either is enough.
func dayMatches(s *cron.SpecSchedule, t time.Time) bool {
	domMatch := 1<<uint(t.Day())&s.Dom > 0
	dowMatch := 1<<uint(t.Weekday())&s.Dow > 0
	if s.Dom&starBit > 0 || s.Dow&starBit > 0 {
		return domMatch && dowMatch
	}
	return domMatch || dowMatch
}
