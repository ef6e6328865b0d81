package session

import (
	"fmt"
	"time"
)

// Start moves a paused session to playing. Start and Resume are the same
// transition.
func (s *Session) Start() error {
	switch s.Status {
	case Playing:
		return nil
	case Completed:
		return fmt.Errorf("start: session %s is completed: %w", s.ID, ErrInvalidOperation)
	}
	if s.CurrentDay >= s.PeriodDays {
		return fmt.Errorf("start: no bars left: %w", ErrInvalidOperation)
	}
	s.Status = Playing
	return nil
}

func (s *Session) Resume() error {
	return s.Start()
}

// Pause moves a playing session to paused. Pausing a paused session does
// nothing.
func (s *Session) Pause() error {
	if s.Status == Completed {
		return fmt.Errorf("pause: session %s is completed: %w", s.ID, ErrInvalidOperation)
	}
	s.Status = Paused
	return nil
}

// Advance moves to the next bar. At the terminal bar it completes the
// session instead and reports completed=true.
func (s *Session) Advance(now time.Time) (completed bool, err error) {
	if s.Status == Completed {
		return false, fmt.Errorf("advance: session %s is completed: %w", s.ID, ErrInvalidOperation)
	}
	if s.CurrentDay >= s.TerminalDay() {
		s.complete(now)
		return true, nil
	}
	s.CurrentDay++
	return false, nil
}

// Complete ends the session early.
func (s *Session) Complete(now time.Time) error {
	if s.Status == Completed {
		return fmt.Errorf("complete: session %s is completed: %w", s.ID, ErrInvalidOperation)
	}
	s.complete(now)
	return nil
}

func (s *Session) complete(now time.Time) {
	s.Status = Completed
	s.CompletedAt = &now
}

// CheckActive returns ErrInvalidOperation for a completed session.
func (s *Session) CheckActive(op string) error {
	if s.Status == Completed {
		return fmt.Errorf("%s: session %s is completed: %w", op, s.ID, ErrInvalidOperation)
	}
	return nil
}
