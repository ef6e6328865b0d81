package sim

import "github.com/rustyeddy/swingsim/session"

type EventKind string

const (
	EventOrderFilled    EventKind = "order_filled"
	EventPositionClosed EventKind = "position_closed"
	EventAdvanced       EventKind = "advanced"
	EventRulesEvaluated EventKind = "rules_evaluated"
	EventStatusChanged  EventKind = "status_changed"
	EventSyncFailed     EventKind = "sync_failed"
)

// ChangeSet is what one engine operation added or changed.
type ChangeSet struct {
	Trades        []session.Trade
	Positions     []session.Position
	Violations    []session.RuleViolation
	StatusChanged bool
}

func (c ChangeSet) Empty() bool {
	return len(c.Trades) == 0 && len(c.Positions) == 0 && len(c.Violations) == 0 && !c.StatusChanged
}

// Event is emitted after an operation commits. Status and CurrentDay are the
// session's values at that moment.
type Event struct {
	Kind       EventKind
	SessionID  string
	Status     session.Status
	CurrentDay int
	Changes    ChangeSet
	Err        error
}

// Listener is notified after the engine lock is released, so it may call
// back into the engine.
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }
