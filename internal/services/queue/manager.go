package queue

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/notify"
	"github.com/mcoot/dicemeister/internal/protocol"
)

const (
	enteredMessage = "You entered in waiting queue with ranking  %d points."
	alreadyMessage = "You are already in the waiting queue with %d points."
)

// Selector picks the start of an n-entry window to dequeue.
// It runs under the queue lock and may reorder entries in place.
type Selector func(entries []*model.Session, n int) (start int, ok bool)

// Manager holds authenticated players waiting for a match.
// At most one entry exists per username.
type Manager struct {
	mu      sync.Mutex
	entries []*model.Session

	changes *notify.Notifier
	logger  *slog.Logger
}

// New creates an empty queue
func New(logger *slog.Logger) *Manager {
	return &Manager{
		changes: notify.New(),
		logger:  logger.With(slog.String("component", "queue")),
	}
}

// Changes returns a channel signalled after every queue mutation
func (m *Manager) Changes() <-chan struct{} {
	return m.changes.Subscribe()
}

// Enqueue admits a session and sends it a QUEUE notification.
// A session whose username is already queued replaces that entry's
// connection in place instead of taking a second slot.
func (m *Manager) Enqueue(s *model.Session) error {
	m.mu.Lock()
	queued := m.indexOf(s) >= 0
	m.mu.Unlock()

	text := fmt.Sprintf(enteredMessage, s.Rank)
	if queued {
		text = fmt.Sprintf(alreadyMessage, s.Rank)
	}

	// Acked before insertion so the scheduler never hands out a conn mid-exchange
	if err := s.Notify(protocol.TypeQueue, text); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}

	m.mu.Lock()
	var stale protocol.Conn
	i := m.indexOf(s)
	if i >= 0 {
		if m.entries[i].Conn != s.Conn {
			stale = m.entries[i].Conn
		}
		m.entries[i].Conn = s.Conn
	} else {
		m.entries = append(m.entries, s)
	}
	size := len(m.entries)
	m.mu.Unlock()

	// The queue may have changed while the QUEUE message was in flight;
	// the slot is still correct, only the text the player saw is not.
	if queued != (i >= 0) {
		m.logger.Warn("queue changed during admission",
			slog.String("username", s.Username),
			slog.Bool("told_already_queued", queued),
			slog.Bool("was_queued", i >= 0))
	}

	if stale != nil {
		_ = stale.Close()
		m.logger.Info("queued player reconnected",
			slog.String("username", s.Username),
			slog.Int("queue_size", size))
	} else {
		m.logger.Info("player queued",
			slog.String("username", s.Username),
			slog.Int64("rank", s.Rank),
			slog.Int("queue_size", size))
	}

	m.changes.Notify()
	return nil
}

// DequeueGroup removes n entries chosen by sel, or returns nil if the queue
// holds fewer than n entries or sel finds no window.
func (m *Manager) DequeueGroup(n int, sel Selector) []*model.Session {
	m.mu.Lock()
	if n <= 0 || len(m.entries) < n {
		m.mu.Unlock()
		return nil
	}

	start, ok := sel(m.entries, n)
	if !ok || start < 0 || start+n > len(m.entries) {
		m.mu.Unlock()
		return nil
	}

	group := slices.Clone(m.entries[start : start+n])
	m.entries = slices.Delete(m.entries, start, start+n)
	m.mu.Unlock()

	m.changes.Notify()
	return group
}

// SortByRank orders the queue by ascending rank, keeping arrival order on ties
func (m *Manager) SortByRank() {
	m.mu.Lock()
	SortByRank(m.entries)
	m.mu.Unlock()
}

// Probe sends PING to every queued player and drops those whose send fails.
// It returns the number of dropped entries.
func (m *Manager) Probe() int {
	m.mu.Lock()
	if len(m.entries) == 0 {
		m.mu.Unlock()
		return 0
	}

	var dead []*model.Session
	alive := m.entries[:0]
	for _, s := range m.entries {
		if err := s.Send(protocol.TypePing, ""); err != nil {
			dead = append(dead, s)
			continue
		}
		alive = append(alive, s)
	}
	clear(m.entries[len(alive):])
	m.entries = alive
	m.mu.Unlock()

	for _, s := range dead {
		_ = s.Close()
		m.logger.Info("dropped unreachable player", slog.String("username", s.Username))
	}
	if len(dead) > 0 {
		m.changes.Notify()
	}
	return len(dead)
}

// Remove drops the entry for username, reporting whether one existed
func (m *Manager) Remove(username string) bool {
	m.mu.Lock()
	i := m.indexOf(&model.Session{Username: username})
	if i >= 0 {
		m.entries = slices.Delete(m.entries, i, i+1)
	}
	m.mu.Unlock()

	if i < 0 {
		return false
	}
	m.changes.Notify()
	return true
}

// Drain empties the queue and returns what it held
func (m *Manager) Drain() []*model.Session {
	m.mu.Lock()
	drained := m.entries
	m.entries = nil
	m.mu.Unlock()

	if len(drained) > 0 {
		m.changes.Notify()
	}
	return drained
}

// Len returns the number of queued players
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns the queue size and up to limit usernames in queue order
func (m *Manager) Snapshot(limit int) (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, min(limit, len(m.entries)))
	for i := 0; i < len(m.entries) && i < limit; i++ {
		names = append(names, m.entries[i].Username)
	}
	return len(m.entries), names
}

func (m *Manager) indexOf(s *model.Session) int {
	return slices.IndexFunc(m.entries, s.SameIdentity)
}

// SortByRank stable-sorts sessions by ascending rank
func SortByRank(entries []*model.Session) {
	slices.SortStableFunc(entries, func(a, b *model.Session) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
}

// First selects the n oldest entries
func First(entries []*model.Session, n int) (int, bool) {
	return 0, len(entries) >= n
}
