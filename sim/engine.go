// Package sim runs a practice session: it fills market orders against the
// current bar, books positions and profit, advances the bar window and
// records rule violations.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swingsim/indicators"
	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/pkg/id"
	"github.com/rustyeddy/swingsim/pricing"
	"github.com/rustyeddy/swingsim/risk"
	"github.com/rustyeddy/swingsim/session"
)

// ErrNotPlaying is returned by Tick when the session left playing before the
// tick ran.
var ErrNotPlaying = fmt.Errorf("session not playing: %w", session.ErrInvalidOperation)

// Options configure an Engine. Start from DefaultOptions.
type Options struct {
	Schedule       pricing.Schedule
	Policy         risk.Policy
	MarginLeverage float64

	Logger  zerolog.Logger
	Metrics Metrics
	Syncer  Syncer

	Clock func() time.Time
	NewID func() string
}

func DefaultOptions() Options {
	return Options{
		Schedule:       pricing.DefaultSchedule(),
		Policy:         risk.DefaultPolicy(),
		MarginLeverage: pricing.DefaultMarginLeverage,
	}
}

func (o *Options) fill() {
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.Syncer == nil {
		o.Syncer = nopSyncer{}
	}
	if o.Clock == nil {
		o.Clock = systemClock
	}
	if o.NewID == nil {
		o.NewID = id.New
	}
	if o.Policy == (risk.Policy{}) {
		o.Policy = risk.DefaultPolicy()
	}
}

// Engine owns one session and serializes every operation on it.
type Engine struct {
	mu   sync.Mutex
	s    *session.Session
	bars []market.Bar
	opts Options
	log  zerolog.Logger

	listeners []registered
	nextSub   int
}

type registered struct {
	id int
	l  Listener
}

// SessionRequest describes a new practice session.
type SessionRequest struct {
	OwnerID        string        `json:"owner_id" validate:"required"`
	Name           string        `json:"name"`
	InitialCapital float64       `json:"initial_capital" validate:"gt=0"`
	PeriodDays     int           `json:"period_days" validate:"gt=0"`
	PlaybackSpeed  time.Duration `json:"playback_speed" validate:"gt=0"`
	MAPeriods      []int         `json:"ma_periods" validate:"dive,gt=0"`
}

// NewSession creates a paused session over window and returns its engine.
// The window must hold PracticeStartIndex+PeriodDays bars; nothing is
// created otherwise.
func NewSession(req SessionRequest, w market.Window, opts Options) (*Engine, error) {
	if err := validateRequest("new session", req); err != nil {
		return nil, err
	}
	need := w.PracticeStartIndex + req.PeriodDays
	if w.PracticeStartIndex < 0 || len(w.Bars) < need {
		return nil, fmt.Errorf("new session: %s: %w: need %d bars, have %d",
			w.Symbol, market.ErrInsufficientHistory, need, len(w.Bars))
	}
	bars := w.Bars[:need]
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("new session: %s: %w", w.Symbol, err)
	}

	opts.fill()
	now := opts.Clock()
	name := req.Name
	if name == "" {
		name = w.Name
	}
	s := &session.Session{
		SchemaVersion:      session.SchemaVersion,
		ID:                 opts.NewID(),
		OwnerID:            req.OwnerID,
		Symbol:             w.Symbol,
		Name:               name,
		InitialCapital:     req.InitialCapital,
		CurrentCapital:     req.InitialCapital,
		StartDate:          bars[0].Date,
		EndDate:            bars[len(bars)-1].Date,
		PeriodDays:         req.PeriodDays,
		PracticeStartIndex: w.PracticeStartIndex,
		Status:             session.Paused,
		PlaybackSpeed:      req.PlaybackSpeed,
		MAPeriods:          append([]int(nil), req.MAPeriods...),
		PeakEquity:         req.InitialCapital,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	e := newEngine(s, bars, opts)
	e.mu.Lock()
	e.commitLocked()
	e.mu.Unlock()
	e.log.Info().Str("symbol", s.Symbol).Int("period_days", s.PeriodDays).Msg("session created")
	return e, nil
}

// Open resumes a stored session over its bars. Old schema versions are
// migrated, and a session saved while playing comes back paused. The engine
// works on a copy; stored is never modified.
func Open(stored *session.Session, bars []market.Bar, opts Options) (*Engine, error) {
	s := stored.Clone()
	migrated := s.SchemaVersion != session.SchemaVersion
	if err := session.Migrate(s, bars); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if len(bars) < s.PracticeStartIndex+s.PeriodDays {
		return nil, fmt.Errorf("open session %s: %w: need %d bars, have %d", s.ID,
			market.ErrInsufficientHistory, s.PracticeStartIndex+s.PeriodDays, len(bars))
	}

	opts.fill()
	paused := s.Status == session.Playing
	if paused {
		s.Status = session.Paused
	}

	e := newEngine(s, bars[:s.PracticeStartIndex+s.PeriodDays], opts)
	if migrated || paused {
		e.mu.Lock()
		e.commitLocked()
		e.mu.Unlock()
	}
	return e, nil
}

// LoadBars fetches the bar window a stored session was created over.
func LoadBars(ctx context.Context, p market.PriceProvider, s *session.Session) ([]market.Bar, error) {
	bars, err := p.FetchPrices(ctx, s.Symbol, s.StartDate, s.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", s.ID, err)
	}
	return bars, nil
}

func newEngine(s *session.Session, bars []market.Bar, opts Options) *Engine {
	e := &Engine{
		s:    s,
		bars: bars,
		opts: opts,
		log:  opts.Logger.With().Str("session", s.ID).Logger(),
	}
	if fr, ok := opts.Syncer.(failureReporter); ok {
		fr.OnFailure(e.reportSyncFailure)
	}
	return e
}

// Subscribe registers l and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	sub := e.nextSub
	e.listeners = append(e.listeners, registered{id: sub, l: l})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, r := range e.listeners {
			if r.id == sub {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// run executes op under the lock, commits, and notifies listeners after the
// lock is released. A rejected op that still paused the session commits and
// reports the status change.
func (e *Engine) run(op func() (EventKind, ChangeSet, error)) (ChangeSet, error) {
	e.mu.Lock()

	kind, cs, err := op()
	if err != nil {
		if !cs.StatusChanged {
			e.mu.Unlock()
			return ChangeSet{}, err
		}
		kind, cs = EventStatusChanged, ChangeSet{StatusChanged: true}
	}

	e.commitLocked()
	ev := e.eventLocked(kind, cs)

	// Capture listeners before releasing lock to avoid race
	listeners := e.listenersLocked()

	e.mu.Unlock()

	for _, l := range listeners {
		l.OnEvent(ev)
	}
	return cs, err
}

func (e *Engine) commitLocked() {
	e.s.UpdatedAt = e.opts.Clock()
	e.s.RecomputeStats()
	e.opts.Metrics.Capital(e.s.ID, e.s.CurrentCapital)
	e.opts.Syncer.Commit(e.s.Clone())
}

func (e *Engine) eventLocked(kind EventKind, cs ChangeSet) Event {
	return Event{
		Kind:       kind,
		SessionID:  e.s.ID,
		Status:     e.s.Status,
		CurrentDay: e.s.CurrentDay,
		Changes:    cs,
	}
}

func (e *Engine) listenersLocked() []Listener {
	out := make([]Listener, len(e.listeners))
	for i, r := range e.listeners {
		out[i] = r.l
	}
	return out
}

func (e *Engine) reportSyncFailure(err error) {
	e.log.Error().Err(err).Msg("session not synced")

	e.mu.Lock()
	ev := e.eventLocked(EventSyncFailed, ChangeSet{})
	ev.Err = err
	listeners := e.listenersLocked()
	e.mu.Unlock()

	for _, l := range listeners {
		l.OnEvent(ev)
	}
}

// Start moves a paused session to playing.
func (e *Engine) Start() (ChangeSet, error) {
	return e.transition("start", (*session.Session).Start)
}

func (e *Engine) Resume() (ChangeSet, error) {
	return e.transition("resume", (*session.Session).Resume)
}

// Pause is a no-op on a paused session.
func (e *Engine) Pause() (ChangeSet, error) {
	return e.transition("pause", (*session.Session).Pause)
}

// Complete ends the session before its last bar.
func (e *Engine) Complete() (ChangeSet, error) {
	return e.transition("complete", func(s *session.Session) error {
		return s.Complete(e.opts.Clock())
	})
}

func (e *Engine) transition(name string, fn func(*session.Session) error) (ChangeSet, error) {
	return e.run(func() (EventKind, ChangeSet, error) {
		before := e.s.Status
		if err := fn(e.s); err != nil {
			return "", ChangeSet{}, err
		}
		cs := ChangeSet{StatusChanged: before != e.s.Status}
		if cs.StatusChanged {
			e.log.Debug().Str("op", name).Str("from", string(before)).Str("to", string(e.s.Status)).Msg("status")
		}
		return EventStatusChanged, cs, nil
	})
}

// Advance moves to the next bar and evaluates the rulebook against it. At
// the last bar it completes the session instead.
func (e *Engine) Advance() (ChangeSet, error) {
	return e.run(e.advanceLocked)
}

// Tick is the playback step: it advances like Advance, but only while the
// session is playing. The status check and the advance happen under one
// lock, so an order or pause that got in first wins and Tick returns
// ErrNotPlaying without touching the session.
func (e *Engine) Tick() (ChangeSet, error) {
	return e.run(func() (EventKind, ChangeSet, error) {
		if e.s.Status != session.Playing {
			return "", ChangeSet{}, fmt.Errorf("tick (%s): %w", e.s.Status, ErrNotPlaying)
		}
		return e.advanceLocked()
	})
}

func (e *Engine) advanceLocked() (EventKind, ChangeSet, error) {
	done, err := e.s.Advance(e.opts.Clock())
	if err != nil {
		return "", ChangeSet{}, err
	}
	if done {
		e.log.Info().Float64("capital", e.s.CurrentCapital).Msg("session completed")
		return EventStatusChanged, ChangeSet{StatusChanged: true}, nil
	}

	e.opts.Metrics.BarAdvanced()
	cs := ChangeSet{Violations: e.evaluateLocked()}
	e.markEquityLocked()
	return EventAdvanced, cs, nil
}

// EvaluateRules runs the rulebook against the current bar and records any
// violation not already on file.
func (e *Engine) EvaluateRules() (ChangeSet, error) {
	return e.run(func() (EventKind, ChangeSet, error) {
		if err := e.s.CheckActive("evaluate rules"); err != nil {
			return "", ChangeSet{}, err
		}
		return EventRulesEvaluated, ChangeSet{Violations: e.evaluateLocked()}, nil
	})
}

func (e *Engine) evaluateLocked() []session.RuleViolation {
	return e.recordLocked(risk.Evaluate(e.opts.Policy, e.riskSnapshotLocked()))
}

func (e *Engine) riskSnapshotLocked() risk.Snapshot {
	return risk.Snapshot{
		Capital:   e.s.CurrentCapital,
		Price:     e.currentBarLocked().Close,
		Positions: e.s.Exposures(),
	}
}

// recordLocked appends the candidates whose key is new to the session.
func (e *Engine) recordLocked(candidates []risk.Violation) []session.RuleViolation {
	fresh := risk.Filter(candidates, e.s.RecordedKeys())
	if len(fresh) == 0 {
		return nil
	}

	ts := e.currentBarLocked().Date
	out := make([]session.RuleViolation, 0, len(fresh))
	for _, v := range fresh {
		rv := session.RuleViolation{
			ID:          e.opts.NewID(),
			SessionID:   e.s.ID,
			Timestamp:   ts,
			PositionID:  v.Scope,
			Type:        v.Rule,
			Description: v.Msg,
			Severity:    v.Severity,
		}
		e.s.Violations = append(e.s.Violations, rv)
		out = append(out, rv)

		e.opts.Metrics.ViolationRecorded(string(v.Rule), string(v.Severity))
		e.log.Warn().Str("rule", string(v.Rule)).Str("scope", v.Scope).
			Str("severity", string(v.Severity)).Msg(v.Msg)
	}
	return out
}

// pauseLocked pauses a playing session and reports whether it did.
func (e *Engine) pauseLocked() bool {
	if e.s.Status != session.Playing {
		return false
	}
	e.s.Status = session.Paused
	return true
}

func (e *Engine) currentBarLocked() market.Bar {
	return e.bars[e.s.CurrentIndex()]
}

// SetPlaybackSpeed changes the seconds-per-bar of the session.
func (e *Engine) SetPlaybackSpeed(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("set playback speed: %w: %v must be positive", session.ErrValidation, d)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.PlaybackSpeed = d
	e.commitLocked()
	return nil
}

// Snapshot returns a deep copy of the session.
func (e *Engine) Snapshot() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone()
}

func (e *Engine) Status() session.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Status
}

func (e *Engine) PlaybackSpeed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.PlaybackSpeed
}

// CurrentBar is the bar orders fill against.
func (e *Engine) CurrentBar() market.Bar {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentBarLocked()
}

// VisibleBars returns history plus practice bars up to the current day.
func (e *Engine) VisibleBars() []market.Bar {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]market.Bar(nil), e.bars[:e.s.CurrentIndex()+1]...)
}

// MovingAverages computes the session's configured SMAs over VisibleBars.
func (e *Engine) MovingAverages() (map[int][]indicators.Value, error) {
	e.mu.Lock()
	periods := append([]int(nil), e.s.MAPeriods...)
	e.mu.Unlock()
	return indicators.MovingAverages(e.VisibleBars(), periods)
}

// Dirty reports whether the last committed snapshot failed to persist.
func (e *Engine) Dirty() bool {
	return e.opts.Syncer.Dirty()
}

// Day returns the current practice day and the last one.
func (e *Engine) Day() (current, last int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.CurrentDay, e.s.TerminalDay()
}
