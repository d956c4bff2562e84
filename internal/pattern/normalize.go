package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cronloop/internal/shared"
)

// ErrUnsupported is returned for expression forms that name an interval
// instead of calendar instants.
var ErrUnsupported = errors.New("unsupported expression")

// Field positions of a canonical expression.
const (
	FieldSecond = iota
	FieldMinute
	FieldHour
	FieldDom
	FieldMonth
	FieldDow
	fieldCount
)

var descriptors = map[string]string{
	"@yearly":   "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly":  "0 0 0 1 * *",
	"@weekly":   "0 0 0 * * 0",
	"@daily":    "0 0 0 * * *",
	"@midnight": "0 0 0 * * *",
	"@hourly":   "0 0 * * * *",
}

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var weekdayNames = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4, "friday": 5, "saturday": 6,
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

var reWord = regexp.MustCompile(`[A-Za-z]+`)

// Normalize rewrites a supported dialect into the canonical six-field form
// "sec min hour dom month dow" with numeric months and weekdays 0-6.
//
// Accepted input:
//   - five fields (seconds default to 0) or six fields
//   - month names (jan, January) and weekday names (mon, Monday)
//   - weekday 7 as Sunday, also as a range end ("5-7")
//   - "?" and "*/1" in the day fields, rewritten to "*"
//   - @yearly, @annually, @monthly, @weekly, @daily, @midnight, @hourly
//
// Errors are marked shared.KindValidation.
func Normalize(expr string) (string, error) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return "", invalid(expr, errors.New("empty expression"))
	}

	if len(fields) == 1 && strings.HasPrefix(fields[0], "@") {
		name := strings.ToLower(fields[0])
		if canonical, ok := descriptors[name]; ok {
			return canonical, nil
		}
		if name == "@every" {
			return "", invalid(expr, fmt.Errorf("%w: @every needs a duration and has no calendar instants", ErrUnsupported))
		}
		return "", invalid(expr, fmt.Errorf("unknown descriptor %s", fields[0]))
	}
	if strings.HasPrefix(strings.ToLower(fields[0]), "@every") {
		return "", invalid(expr, fmt.Errorf("%w: interval schedules have no calendar instants", ErrUnsupported))
	}

	switch len(fields) {
	case fieldCount - 1:
		fields = append([]string{"0"}, fields...)
	case fieldCount:
	default:
		return "", invalid(expr, fmt.Errorf("expected 5 or 6 fields, got %d", len(fields)))
	}

	fields[FieldDom] = foldWildcard(fields[FieldDom])
	fields[FieldDow] = foldWildcard(fields[FieldDow])

	var err error
	if fields[FieldMonth], err = replaceNames(fields[FieldMonth], monthNames); err != nil {
		return "", invalid(expr, fmt.Errorf("month: %w", err))
	}
	if fields[FieldDow], err = replaceNames(fields[FieldDow], weekdayNames); err != nil {
		return "", invalid(expr, fmt.Errorf("weekday: %w", err))
	}
	if fields[FieldDow], err = foldSunday(fields[FieldDow]); err != nil {
		return "", invalid(expr, fmt.Errorf("weekday: %w", err))
	}

	return strings.Join(fields, " "), nil
}

func invalid(expr string, err error) error {
	return shared.MarkKind(fmt.Errorf("pattern %q: %w", expr, err), shared.KindValidation)
}

func replaceNames(field string, names map[string]int) (string, error) {
	var unknown string
	out := reWord.ReplaceAllStringFunc(field, func(word string) string {
		n, ok := names[strings.ToLower(word)]
		if !ok {
			if unknown == "" {
				unknown = word
			}
			return word
		}
		return strconv.Itoa(n)
	})
	if unknown != "" {
		return "", fmt.Errorf("unknown name %q", unknown)
	}
	return out, nil
}

// foldWildcard rewrites "?" and "*/1" items of a day field to "*". Both mean
// "every day", but parsers disagree on whether "*/1" restricts the field,
// which decides between AND and OR when both day fields are present.
func foldWildcard(field string) string {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		if part == "?" {
			parts[i] = "*"
			continue
		}
		if step, ok := strings.CutPrefix(part, "*/"); ok {
			if n, err := strconv.Atoi(step); err == nil && n == 1 {
				parts[i] = "*"
			}
		}
	}
	return strings.Join(parts, ",")
}

// foldSunday maps weekday 7 onto 0 so the matcher only ever sees 0-6.
func foldSunday(field string) (string, error) {
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts)+1)
	addSunday := false

	for _, part := range parts {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return "", fmt.Errorf("bad step in %q", part)
			}
			step = s
		}

		lo, hi, isRange := strings.Cut(rng, "-")
		switch {
		case rng == "7":
			addSunday = true
		case isRange && hi == "7":
			start, err := strconv.Atoi(lo)
			if err != nil {
				return "", fmt.Errorf("bad range in %q", part)
			}
			if start == 7 {
				addSunday = true
				continue
			}
			if (7-start)%step == 0 {
				addSunday = true
			}
			folded := lo + "-6"
			if hasStep {
				folded += "/" + stepStr
			}
			out = append(out, folded)
		default:
			out = append(out, part)
		}
	}

	if addSunday && !containsPart(out, "0") {
		out = append(out, "0")
	}
	return strings.Join(out, ","), nil
}

func containsPart(parts []string, want string) bool {
	for _, p := range parts {
		if p == want {
			return true
		}
	}
	return false
}
