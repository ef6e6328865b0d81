package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

type countingMetrics struct {
	mu       sync.Mutex
	failures int
	saves    int
}

func (c *countingMetrics) SyncFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingMetrics) SaveDuration(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
}

// gatedStore blocks the first save until release is closed and records the
// current day of every snapshot it saves.
type gatedStore struct {
	*Memory
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu   sync.Mutex
	days []int
}

func newGatedStore() *gatedStore {
	return &gatedStore{Memory: NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) SaveSession(ctx context.Context, owner string, s *session.Session) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	g.mu.Lock()
	g.days = append(g.days, s.CurrentDay)
	g.mu.Unlock()
	return g.Memory.SaveSession(ctx, owner, s)
}

func fastOptions(m Metrics) SyncOptions {
	opts := DefaultSyncOptions()
	opts.RetryBackoff = time.Millisecond
	opts.Metrics = m
	return opts
}

func TestSyncerSavesCommit(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	m := &countingMetrics{}
	s := NewSyncer(store, fastOptions(m))
	t.Cleanup(func() { _ = s.Close() })

	s.Commit(sampleSession("s1", "alice"))
	require.NoError(t, s.Flush())

	got, err := store.LoadSession(context.Background(), "alice", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.False(t, s.Dirty())
	assert.Equal(t, 1, m.saves)
}

func TestSyncerLatestSnapshotWins(t *testing.T) {
	t.Parallel()
	store := newGatedStore()
	s := NewSyncer(store, fastOptions(nil))
	t.Cleanup(func() { _ = s.Close() })

	snap := func(d int) *session.Session {
		x := sampleSession("s1", "alice")
		x.CurrentDay = d
		return x
	}

	s.Commit(snap(1))
	<-store.started
	s.Commit(snap(2))
	s.Commit(snap(3))
	close(store.release)
	require.NoError(t, s.Flush())

	assert.Equal(t, []int{1, 3}, store.days)
	got, err := store.LoadSession(context.Background(), "alice", "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentDay)
}

func TestSyncerRetriesThenFlagsDirty(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	boom := errors.New("database is locked")
	var attempts int
	var amu sync.Mutex
	store.SetFailSave(func(*session.Session) error {
		amu.Lock()
		defer amu.Unlock()
		attempts++
		return boom
	})

	m := &countingMetrics{}
	s := NewSyncer(store, fastOptions(m))
	t.Cleanup(func() { _ = s.Close() })

	failures := make(chan error, 1)
	s.OnFailure(func(err error) { failures <- err })

	s.Commit(sampleSession("s1", "alice"))
	err := s.Flush()
	require.ErrorIs(t, err, boom)

	assert.True(t, s.Dirty())
	assert.ErrorIs(t, s.LastError(), boom)
	assert.ErrorIs(t, <-failures, boom)
	amu.Lock()
	assert.Equal(t, 3, attempts)
	amu.Unlock()
	m.mu.Lock()
	assert.Equal(t, 1, m.failures)
	m.mu.Unlock()

	store.SetFailSave(nil)
	require.True(t, s.Retry())
	require.NoError(t, s.Flush())
	assert.False(t, s.Dirty())
	assert.NoError(t, s.LastError())
	assert.False(t, s.Retry(), "nothing left to retry")

	_, err = store.LoadSession(context.Background(), "alice", "s1")
	assert.NoError(t, err)
}

func TestSyncerCloseDrainsQueue(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	s := NewSyncer(store, fastOptions(nil))

	s.Commit(sampleSession("s1", "alice"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := store.LoadSession(context.Background(), "alice", "s1")
	assert.NoError(t, err)

	s.Commit(sampleSession("s2", "alice"))
	_, err = store.LoadSession(context.Background(), "alice", "s2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncerBehindEngine(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	s := NewSyncer(store, fastOptions(nil))
	t.Cleanup(func() { _ = s.Close() })

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 5)
	for i := range bars {
		bars[i] = market.Bar{Symbol: "A", Date: start.AddDate(0, 0, i), Close: 100}
	}
	opts := sim.DefaultOptions()
	opts.Syncer = s
	e, err := sim.NewSession(sim.SessionRequest{
		OwnerID: "alice", InitialCapital: 100_000, PeriodDays: 5, PlaybackSpeed: time.Second,
	}, market.Window{Instrument: market.Instrument{Symbol: "A"}, Bars: bars}, opts)
	require.NoError(t, err)

	synced := make(chan sim.Event, 1)
	e.Subscribe(sim.ListenerFunc(func(ev sim.Event) {
		if ev.Kind == sim.EventSyncFailed {
			synced <- ev
		}
	}))

	_, err = e.Advance()
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	id := e.Snapshot().ID
	got, err := store.LoadSession(context.Background(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentDay)

	boom := errors.New("offline")
	store.SetFailSave(func(*session.Session) error { return boom })
	_, err = e.Advance()
	require.NoError(t, err, "gameplay continues when saving fails")
	require.Error(t, s.Flush())

	ev := <-synced
	assert.ErrorIs(t, ev.Err, boom)
	assert.True(t, e.Dirty())
}
