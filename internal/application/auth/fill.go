package auth

import "sync"

// fillGens tracks read-through cache fills in flight per subject. A mutation
// bumps the subject's generation; a fill that started under an older
// generation must not leave its snapshot in the cache.
//
// Entries exist only while at least one fill for the subject is running, so
// the map stays bounded by concurrency rather than by the user count.
type fillGens struct {
	mu sync.Mutex
	m  map[string]*fillGen
}

type fillGen struct {
	gen   uint64
	fills int
}

// begin registers a fill and returns the generation it runs under.
func (g *fillGens) begin(id string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = make(map[string]*fillGen)
	}
	e, ok := g.m[id]
	if !ok {
		e = &fillGen{}
		g.m[id] = e
	}
	e.fills++
	return e.gen
}

func (g *fillGens) end(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.m[id]
	if !ok {
		return
	}
	if e.fills--; e.fills <= 0 {
		delete(g.m, id)
	}
}

// current reports whether gen is still the subject's generation.
func (g *fillGens) current(id string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.m[id]
	return ok && e.gen == gen
}

// bump marks every fill in flight for id as stale. With none in flight there
// is nothing to track.
func (g *fillGens) bump(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.m[id]; ok {
		e.gen++
	}
}
