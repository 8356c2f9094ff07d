package checkin

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ReleaseFunc gives a guard key back. Calling it more than once, or after
// the key expired and was taken by someone else, is harmless.
type ReleaseFunc func()

// Guard is a keyed registry of actions in flight. The same key never has
// two holders at once, and every key is released eventually: explicitly
// through the ReleaseFunc or by its TTL running out.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// GuardKey builds the composite key of an action, e.g.
// "checkin-list_guest-7-42" for guest 42 on list 7.
func GuardKey(action string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	all = append(all, action)
	for _, p := range parts {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, "-")
}

type lease struct {
	token   uint64
	expires time.Time
}

// MemoryGuard is the in-process Guard used by a single replica.
type MemoryGuard struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    uint64
	now    func() time.Time
}

// NewMemoryGuard returns an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{leases: map[string]lease{}, now: time.Now}
}

// Acquire marks key as in flight for at most ttl. It reports false when the
// key is already held.
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if l, ok := g.leases[key]; ok && now.Before(l.expires) {
		return nil, false, nil
	}
	g.seq++
	token := g.seq
	g.leases[key] = lease{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if l, ok := g.leases[key]; ok && l.token == token {
				delete(g.leases, key)
			}
		})
	}, true, nil
}

// Held reports whether key is currently in flight.
func (g *MemoryGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.leases[key]
	return ok && g.now().Before(l.expires)
}
