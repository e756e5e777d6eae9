/*
matcher.go - Shift window matching and business-day attribution

PURPOSE:
  Given one punch event, finds the shift whose acceptance window
  contains it and resolves which business day the punch belongs to.

FIXED vs AUTO SHIFT:
  An employee with an assigned shift is matched against only that
  definition. Otherwise every catalog entry is tried in catalog order
  and the FIRST acceptance match wins. Ties between overlapping
  windows are resolved by enumeration order only; this mirrors the
  behavior attendance operators already depend on (see DESIGN.md for
  the tie-break discussion).

SEE ALSO:
  - shift.go: Window arithmetic, night-shift date rollover
  - reconciler.go: Feeds matched punches to the session builders
*/
package attendance

import "context"

// Match is the matcher's output: the accepted shift anchored to the
// business day the punch belongs to.
type Match struct {
	Shift  ShiftDefinition
	Window ShiftWindow
}

// Day returns the business day the punch was attributed to.
func (m Match) Day() Day { return m.Window.Day }

// ShiftMatcher resolves punches against the shift catalog.
type ShiftMatcher struct {
	Catalog ShiftCatalog
}

// MatchIn finds the shift whose IN acceptance window contains the punch.
func (sm *ShiftMatcher) MatchIn(ctx context.Context, emp Employee, ev RawEvent) (Match, error) {
	candidates, err := sm.candidates(ctx, emp)
	if err != nil {
		return Match{}, err
	}

	for _, shift := range candidates {
		w := shift.WindowFor(ev.Timestamp)
		if w.AcceptsIn(ev.Timestamp) {
			return Match{Shift: shift, Window: w}, nil
		}
	}
	return Match{}, &NoMatchingShiftError{Employee: emp.ID, At: ev.Timestamp, Direction: ev.Direction}
}

// MatchOut finds the shift whose OUT acceptance window (symmetric window
// around the shift end) contains the punch. Used only when an OUT has no
// open session to close, so an OUT-only record can still be attributed.
func (sm *ShiftMatcher) MatchOut(ctx context.Context, emp Employee, ev RawEvent) (Match, error) {
	candidates, err := sm.candidates(ctx, emp)
	if err != nil {
		return Match{}, err
	}

	for _, shift := range candidates {
		w := shift.WindowFor(ev.Timestamp)
		if w.AcceptsOut(ev.Timestamp, &shift) {
			return Match{Shift: shift, Window: w}, nil
		}
	}
	return Match{}, &NoMatchingShiftError{Employee: emp.ID, At: ev.Timestamp, Direction: ev.Direction}
}

// candidates returns the employee's pinned shift, or the whole catalog
// in auto-shift mode.
func (sm *ShiftMatcher) candidates(ctx context.Context, emp Employee) ([]ShiftDefinition, error) {
	if emp.ShiftName != "" {
		s, err := sm.Catalog.ByName(ctx, emp.ShiftName)
		if err != nil {
			return nil, err
		}
		return []ShiftDefinition{s}, nil
	}
	return sm.Catalog.All(ctx)
}
