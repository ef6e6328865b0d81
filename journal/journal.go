// Package journal persists practice sessions and renders them for review.
package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/rustyeddy/swingsim/session"
)

// ErrNotFound is returned when a session does not exist for the owner.
var ErrNotFound = errors.New("session not found")

type ChangeOp string

const (
	Saved   ChangeOp = "saved"
	Deleted ChangeOp = "deleted"
)

// Change tells readers a stored session was written or removed.
type Change struct {
	Op        ChangeOp
	OwnerID   string
	SessionID string
}

// Store keeps whole sessions. SaveSession replaces the stored record,
// children included.
type Store interface {
	LoadSession(ctx context.Context, ownerID, id string) (*session.Session, error)
	SaveSession(ctx context.Context, ownerID string, s *session.Session) error
	ListSessions(ctx context.Context, ownerID string) ([]*session.Session, error)
	DeleteSession(ctx context.Context, ownerID, id string) error
	Changes() <-chan Change
	Close() error
}

// changeBuffer is how many changes a slow reader may fall behind before it
// starts missing them.
const changeBuffer = 64

type notifier struct {
	mu     sync.Mutex
	subs   []chan Change
	closed bool
}

func (n *notifier) subscribe() <-chan Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan Change, changeBuffer)
	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)
	return ch
}

func (n *notifier) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
