package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swingsim/session"
)

// Metrics is the subset of metrics.Recorder the syncer reports to.
type Metrics interface {
	SyncFailed()
	SaveDuration(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SyncFailed()                {}
func (nopMetrics) SaveDuration(time.Duration) {}

type SyncOptions struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	// Timeout bounds one save attempt.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics Metrics
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		RetryAttempts: 3,
		RetryBackoff:  200 * time.Millisecond,
		Timeout:       5 * time.Second,
	}
}

func (o *SyncOptions) fill() {
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
}

// Syncer writes committed snapshots to a Store from one background
// goroutine. Commit never blocks on storage; if several snapshots arrive
// while a save is running only the newest is written next. When every
// attempt fails the session is flagged dirty until a later save succeeds.
type Syncer struct {
	store Store
	opts  SyncOptions
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	pending *session.Session
	failed  *session.Session
	busy    bool
	dirty   bool
	lastErr error
	closed  bool
	onFail  func(error)
}

// NewSyncer starts the worker. Call Close to stop it.
func NewSyncer(store Store, opts SyncOptions) *Syncer {
	opts.fill()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		store:  store,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "syncer").Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Commit queues snap, replacing any snapshot not yet picked up.
func (s *Syncer) Commit(snap *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn().Str("session", snap.ID).Msg("commit after close dropped")
		return
	}
	s.pending = snap
	s.failed = nil
	s.cond.Broadcast()
}

// OnFailure registers f to be called, without any syncer lock held, each
// time a snapshot exhausts its retries.
func (s *Syncer) OnFailure(f func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFail = f
}

// Dirty reports whether the last failed snapshot is still unsaved.
func (s *Syncer) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Syncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Retry queues the last failed snapshot again. It reports false when there
// is nothing to retry.
func (s *Syncer) Retry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil || s.pending != nil || s.closed {
		return false
	}
	s.pending = s.failed
	s.failed = nil
	s.cond.Broadcast()
	return true
}

// Flush waits until nothing is queued or being saved and returns the error
// of the last failed save, if it is still unresolved.
func (s *Syncer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending != nil || s.busy {
		s.cond.Wait()
	}
	return s.lastErr
}

// Close saves whatever is queued, stops the worker and returns Flush's
// result.
func (s *Syncer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.LastError()
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	<-s.done
	s.cancel()
	return s.LastError()
}

func (s *Syncer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.pending == nil && !s.closed {
			s.cond.Wait()
		}
		if s.pending == nil {
			s.mu.Unlock()
			return
		}
		snap := s.pending
		s.pending = nil
		s.busy = true
		s.mu.Unlock()

		err := s.save(snap)

		s.mu.Lock()
		s.busy = false
		var notify func(error)
		if err != nil {
			if s.pending == nil {
				s.failed = snap
			}
			s.dirty = true
			s.lastErr = err
			notify = s.onFail
		} else if s.pending == nil {
			s.dirty = false
			s.lastErr = nil
		}
		s.cond.Broadcast()
		s.mu.Unlock()

		if err != nil {
			s.log.Error().Err(err).Str("session", snap.ID).Msg("session unsynced")
			s.opts.Metrics.SyncFailed()
			if notify != nil {
				notify(err)
			}
		}
	}
}

func (s *Syncer) save(snap *session.Session) error {
	var err error
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		start := time.Now()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
		err = s.store.SaveSession(ctx, snap.OwnerID, snap)
		cancel()
		s.opts.Metrics.SaveDuration(time.Since(start))
		if err == nil {
			return nil
		}

		s.log.Warn().Err(err).Str("session", snap.ID).Int("attempt", attempt).Msg("save failed")
		if attempt == s.opts.RetryAttempts {
			break
		}
		select {
		case <-time.After(s.opts.RetryBackoff * time.Duration(attempt)):
		case <-s.ctx.Done():
			return err
		}
	}
	return fmt.Errorf("save session %s after %d attempts: %w", snap.ID, s.opts.RetryAttempts, err)
}
