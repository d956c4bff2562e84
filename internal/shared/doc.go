// Package shared contains the error sentinels and classification helpers
// used across cronloop packages.
//
// Packages mark their failures with a Kind instead of inventing their own
// error hierarchies:
//
//	expr, err := pattern.Normalize(raw)
//	if err != nil {
//	    return shared.MarkKind(err, shared.KindValidation)
//	}
//
// Callers branch on the kind, never on message text:
//
//	switch shared.KindOf(err) {
//	case shared.KindValidation:
//	    // bad pattern, timezone or configuration value
//	case shared.KindDependencyFailure:
//	    // journal storage is unavailable
//	}
//
// When several kinds are present (errors.Join), KindOf reports the one with
// the highest priority: Canceled, Validation, NotFound, DependencyFailure.
package shared
