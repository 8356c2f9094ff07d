package checkin

import "sync"

// Query classes tracked by Generations.
const (
	ClassReload       = "reload"
	ClassReservations = "reservations"
)

// Generations tracks the latest request issued per query class so a slow,
// superseded response can be recognized and discarded.
type Generations struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewGenerations returns a tracker with every class at generation zero.
func NewGenerations() *Generations {
	return &Generations{latest: map[string]uint64{}}
}

// Next issues a new generation for class, superseding all earlier ones.
func (g *Generations) Next(class string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest[class]++
	return g.latest[class]
}

// Current reports whether gen is still the latest generation of class.
func (g *Generations) Current(class string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[class] == gen
}

// Latest returns the most recent generation issued for class without
// superseding it.
func (g *Generations) Latest(class string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[class]
}
