package session

import (
	"fmt"

	"github.com/rustyeddy/swingsim/market"
)

// Migrate upgrades s to SchemaVersion in place. Version 1 records carried a
// practice start date; it is resolved to an index into bars, which must be
// the session's full window. Current records are left alone.
func Migrate(s *Session, bars []market.Bar) error {
	switch {
	case s.SchemaVersion == SchemaVersion:
		return nil
	case s.SchemaVersion > SchemaVersion:
		return fmt.Errorf("migrate %s: schema version %d is newer than %d", s.ID, s.SchemaVersion, SchemaVersion)
	}

	if s.LegacyPracticeStartDate != nil {
		want := market.Day(*s.LegacyPracticeStartDate)
		idx := -1
		for i, b := range bars {
			if !b.Date.Before(want) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("migrate %s: practice start %s not in bar window",
				s.ID, want.Format(market.DateLayout))
		}
		s.PracticeStartIndex = idx
		s.LegacyPracticeStartDate = nil
	}

	if s.PracticeStartIndex+s.PeriodDays > len(bars) {
		return fmt.Errorf("migrate %s: window needs %d bars, have %d",
			s.ID, s.PracticeStartIndex+s.PeriodDays, len(bars))
	}
	s.SchemaVersion = SchemaVersion
	return nil
}

// Validate checks the invariants a loaded or migrated session must hold.
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("session id is empty")
	case s.PeriodDays <= 0:
		return fmt.Errorf("session %s: period days must be positive", s.ID)
	case s.CurrentDay < 0 || s.CurrentDay > s.TerminalDay():
		return fmt.Errorf("session %s: current day %d outside [0,%d]", s.ID, s.CurrentDay, s.TerminalDay())
	case s.PracticeStartIndex < 0:
		return fmt.Errorf("session %s: practice start index is negative", s.ID)
	}
	switch s.Status {
	case Paused, Playing, Completed:
	default:
		return fmt.Errorf("session %s: unknown status %q", s.ID, s.Status)
	}
	return nil
}
