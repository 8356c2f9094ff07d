package checkin

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync"
	"github.com/rs/zerolog"
)

// Manager keeps one Session per event and drops sessions nobody used for
// a while. Dropping a session discards its overlay and award book; the next
// request starts over from a full reload.
type Manager struct {
	sessions *xsync.MapOf[string, *Session]
	up       Upstream
	guard    Guard
	pub      Publisher
	log      zerolog.Logger
	opts     Options
	idleTTL  time.Duration
}

func NewManager(up Upstream, guard Guard, pub Publisher, log zerolog.Logger, opts Options, idleTTL time.Duration) *Manager {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	return &Manager{
		sessions: xsync.NewMapOf[*Session](),
		up:       up,
		guard:    guard,
		pub:      pub,
		log:      log.With().Str("component", "checkin").Logger(),
		opts:     opts,
		idleTTL:  idleTTL,
	}
}

// Session returns the loaded session of eventID, creating and loading it on
// first use.
func (m *Manager) Session(ctx context.Context, eventID string) (*Session, error) {
	s, ok := m.sessions.Load(eventID)
	if !ok {
		s, _ = m.sessions.LoadOrStore(eventID, NewSession(eventID, m.up, m.guard, m.pub, m.log, m.opts))
	}
	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the session of eventID if one exists, loaded or not.
func (m *Manager) Lookup(eventID string) (*Session, bool) {
	return m.sessions.Load(eventID)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// Sweep closes and forgets the sessions idle since before now-idleTTL and
// returns how many were dropped.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	var idle []string
	m.sessions.Range(func(id string, s *Session) bool {
		if now.Sub(s.LastUsed()) > m.idleTTL {
			idle = append(idle, id)
		}
		return true
	})
	n := 0
	for _, id := range idle {
		if s, ok := m.sessions.LoadAndDelete(id); ok {
			s.Close()
			n++
			m.log.Info().Str("event_id", id).Msg("idle session dropped")
		}
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.Sweep(now)
		}
	}
}

// Close stops every session.
func (m *Manager) Close() {
	m.sessions.Range(func(id string, s *Session) bool {
		s.Close()
		m.sessions.Delete(id)
		return true
	})
}
