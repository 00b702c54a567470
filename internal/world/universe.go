package world

import (
	"slices"
	"strings"
)

// DefaultWorldID is where new sessions are placed.
const DefaultWorldID = "wilderness"

// Universe is the set of live worlds. Worlds are created on first use and
// never destroyed.
type Universe struct {
	worlds  map[string]*World
	terrain func(id string) Terrain
}

// NewUniverse returns an empty universe. terrain supplies the map for each
// newly created world; nil uses DefaultTerrain.
func NewUniverse(terrain func(id string) Terrain) *Universe {
	if terrain == nil {
		terrain = func(string) Terrain { return DefaultTerrain() }
	}
	return &Universe{worlds: make(map[string]*World), terrain: terrain}
}

// GetOrCreate returns the world with id, creating it when missing. The
// second result reports whether the world was created by this call.
func (u *Universe) GetOrCreate(id string) (*World, bool) {
	if w, ok := u.worlds[id]; ok {
		return w, false
	}
	w := New(id, u.terrain(id))
	u.worlds[id] = w
	return w, true
}

func (u *Universe) Get(id string) (*World, bool) {
	w, ok := u.worlds[id]
	return w, ok
}

// Worlds returns every world ordered by id.
func (u *Universe) Worlds() []*World {
	out := make([]*World, 0, len(u.worlds))
	for _, w := range u.worlds {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b *World) int { return strings.Compare(a.id, b.id) })
	return out
}

// EntityCount totals entities across worlds, dead ones included.
func (u *Universe) EntityCount() int {
	total := 0
	for _, w := range u.worlds {
		total += w.Len()
	}
	return total
}
