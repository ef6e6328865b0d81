// Package replay drives a session forward one bar per tick at the session's
// playback speed.
package replay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

// Engine is the part of sim.Engine the controller drives.
type Engine interface {
	Resume() (sim.ChangeSet, error)
	Pause() (sim.ChangeSet, error)
	Advance() (sim.ChangeSet, error)
	Tick() (sim.ChangeSet, error)
	Status() session.Status
	PlaybackSpeed() time.Duration
	SetPlaybackSpeed(d time.Duration) error
	Subscribe(l sim.Listener) (unsubscribe func())
}

var _ Engine = (*sim.Engine)(nil)

// Controller owns at most one pending timer. Every arm or disarm bumps a
// generation number and a callback from an older generation does nothing.
// The controller mutex is never held while calling the engine.
type Controller struct {
	eng   Engine
	sched Scheduler
	log   zerolog.Logger

	mu     sync.Mutex
	timer  Timer
	gen    uint64
	closed bool
	unsub  func()
}

// New subscribes the controller to eng so it disarms whenever the session
// leaves playing, whoever caused it.
func New(eng Engine, sched Scheduler, log zerolog.Logger) *Controller {
	c := &Controller{eng: eng, sched: sched, log: log}
	c.unsub = eng.Subscribe(sim.ListenerFunc(c.onEvent))
	return c
}

func (c *Controller) onEvent(ev sim.Event) {
	if ev.Kind == sim.EventSyncFailed {
		return
	}
	if ev.Status != session.Playing {
		c.disarm()
	}
}

// Play resumes the session and arms the timer at the current speed.
func (c *Controller) Play() error {
	if _, err := c.eng.Resume(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.arm(0, false)
	return nil
}

// Pause cancels the timer, then pauses the session.
func (c *Controller) Pause() error {
	c.disarm()
	if _, err := c.eng.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

// Next advances one bar. It is only allowed while paused.
func (c *Controller) Next() (sim.ChangeSet, error) {
	if st := c.eng.Status(); st != session.Paused {
		return sim.ChangeSet{}, fmt.Errorf("next: session is %s: %w", st, session.ErrInvalidOperation)
	}
	return c.eng.Advance()
}

// SetSpeed changes the delay per bar. A pending tick keeps its old delay.
func (c *Controller) SetSpeed(d time.Duration) error {
	return c.eng.SetPlaybackSpeed(d)
}

// Armed reports whether a tick is pending.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Close cancels the timer and detaches from the engine. The session state is
// left as it is.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopLocked()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// arm schedules the next tick. When only is set, it arms only if the
// generation is still want, so a tick never re-arms after a pause.
func (c *Controller) arm(want uint64, only bool) {
	d := c.eng.PlaybackSpeed()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (only && c.gen != want) {
		return
	}
	c.stopLocked()
	g := c.gen
	c.timer = c.sched.AfterFunc(d, func() { c.tick(g) })
}

func (c *Controller) disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) tick(g uint64) {
	c.mu.Lock()
	if c.closed || g != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	cs, err := c.eng.Tick()
	switch {
	case errors.Is(err, sim.ErrNotPlaying):
		return
	case err != nil:
		c.log.Error().Err(err).Msg("tick")
		return
	case cs.StatusChanged:
		return
	}
	c.arm(g, true)
}
