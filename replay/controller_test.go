package replay

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

type fakeTimer struct {
	s       *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler holds callbacks until the test fires them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire runs a timer's callback even if it was stopped, the way a timer that
// already fired races a Stop.
func (t *fakeTimer) fire() { t.f() }

func newController(t *testing.T, closes ...float64) (*Controller, *sim.Engine, *fakeScheduler) {
	t.Helper()
	e := newEngine(t, closes...)
	sched := &fakeScheduler{}
	c := New(e, sched, zerolog.Nop())
	t.Cleanup(c.Close)
	return c, e, sched
}

func newEngine(t *testing.T, closes ...float64) *sim.Engine {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Symbol: "A", Date: start.AddDate(0, 0, i), Close: c}
	}
	e, err := sim.NewSession(sim.SessionRequest{
		OwnerID:        "o",
		InitialCapital: 1_000_000,
		PeriodDays:     len(closes),
		PlaybackSpeed:  time.Second,
	}, market.Window{Instrument: market.Instrument{Symbol: "A"}, Bars: bars}, sim.DefaultOptions())
	require.NoError(t, err)
	return e
}

func TestPlayTicksAndRearms(t *testing.T) {
	t.Parallel()
	c, e, sched := newController(t, 10, 11, 12, 13)

	require.NoError(t, c.Play())
	assert.Equal(t, session.Playing, e.Status())
	require.Equal(t, 1, sched.count())
	assert.Equal(t, time.Second, sched.last().d)

	sched.last().fire()
	cur, _ := e.Day()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 2, sched.count(), "re-armed after the tick")
	assert.True(t, c.Armed())
}

func TestSpeedAppliesToNextArm(t *testing.T) {
	t.Parallel()
	c, _, sched := newController(t, 10, 11, 12, 13)

	require.NoError(t, c.Play())
	first := sched.last()
	require.NoError(t, c.SetSpeed(250*time.Millisecond))
	assert.Equal(t, time.Second, first.d, "in-flight wait keeps its delay")

	first.fire()
	assert.Equal(t, 250*time.Millisecond, sched.last().d)

	assert.Error(t, c.SetSpeed(0))
}

func TestPauseCancelsAndStaleTickIgnored(t *testing.T) {
	t.Parallel()
	c, e, sched := newController(t, 10, 11, 12, 13)

	require.NoError(t, c.Play())
	pending := sched.last()
	require.NoError(t, c.Pause())

	assert.True(t, pending.stopped)
	assert.False(t, c.Armed())
	assert.Equal(t, session.Paused, e.Status())

	pending.fire()
	cur, _ := e.Day()
	assert.Equal(t, 0, cur, "stale callback does nothing")
	assert.Equal(t, 1, sched.count())
}

func TestOrderDisarmsTimer(t *testing.T) {
	t.Parallel()
	c, e, sched := newController(t, 10, 11, 12, 13)

	require.NoError(t, c.Play())
	pending := sched.last()

	_, err := e.SubmitOrder(sim.OrderRequest{Side: market.Buy, TradingType: market.Spot, Shares: 100, Memo: "dip"})
	require.NoError(t, err)

	assert.True(t, pending.stopped)
	assert.False(t, c.Armed())
	pending.fire()
	cur, _ := e.Day()
	assert.Equal(t, 0, cur)
}

// buyBeforeTick places an order right as the timer fires, after the
// controller has accepted the callback but before the engine steps.
type buyBeforeTick struct {
	*sim.Engine
	t *testing.T
}

func (b buyBeforeTick) Tick() (sim.ChangeSet, error) {
	_, err := b.SubmitOrder(sim.OrderRequest{Side: market.Buy, TradingType: market.Spot, Shares: 100, Memo: "late"})
	require.NoError(b.t, err)
	return b.Engine.Tick()
}

func TestOrderRacingTickWins(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10, 11, 12, 13)
	sched := &fakeScheduler{}
	c := New(buyBeforeTick{Engine: e, t: t}, sched, zerolog.Nop())
	t.Cleanup(c.Close)

	require.NoError(t, c.Play())
	sched.last().fire()

	cur, _ := e.Day()
	assert.Equal(t, 0, cur, "paused session is not advanced")
	assert.Equal(t, session.Paused, e.Status())
	assert.Len(t, e.Snapshot().Trades, 1)
	assert.False(t, c.Armed())
	assert.Equal(t, 1, sched.count())
}

func TestTickRequiresPlaying(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10, 11, 12)

	_, err := e.Tick()
	assert.ErrorIs(t, err, sim.ErrNotPlaying)
	assert.ErrorIs(t, err, session.ErrInvalidOperation)
	cur, _ := e.Day()
	assert.Equal(t, 0, cur)
}

func TestNextOnlyWhilePaused(t *testing.T) {
	t.Parallel()
	c, e, _ := newController(t, 10, 11, 12)

	_, err := c.Next()
	require.NoError(t, err)
	cur, _ := e.Day()
	assert.Equal(t, 1, cur)

	require.NoError(t, c.Play())
	_, err = c.Next()
	assert.ErrorIs(t, err, session.ErrInvalidOperation)
}

func TestTickAtLastBarCompletes(t *testing.T) {
	t.Parallel()
	c, e, sched := newController(t, 10, 11, 12)

	require.NoError(t, c.Play())
	sched.last().fire()
	sched.last().fire()
	cur, last := e.Day()
	require.Equal(t, last, cur)
	assert.Equal(t, session.Playing, e.Status())

	sched.last().fire()
	assert.Equal(t, session.Completed, e.Status())
	assert.False(t, c.Armed())
	assert.Equal(t, 3, sched.count(), "no timer after completion")

	assert.Error(t, c.Play())
	_, err := c.Next()
	assert.ErrorIs(t, err, session.ErrInvalidOperation)
}

func TestCloseDetaches(t *testing.T) {
	t.Parallel()
	c, e, sched := newController(t, 10, 11, 12)

	require.NoError(t, c.Play())
	pending := sched.last()
	c.Close()

	pending.fire()
	cur, _ := e.Day()
	assert.Equal(t, 0, cur)
	assert.Equal(t, session.Playing, e.Status(), "close leaves the session alone")
}

func TestRealScheduler(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	tm := RealScheduler{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, tm.Stop())
}
