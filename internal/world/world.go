// Package world owns entities by id and resolves their interactions.
package world

import (
	"errors"
	"fmt"
	"slices"

	"terrafort/server/internal/entity"
)

// ErrDuplicateEntity is returned when an id is registered twice.
var ErrDuplicateEntity = errors.New("world: duplicate entity id")

// World is a named container of entities. It is not safe for concurrent
// use; the engine confines each world to one goroutine per phase.
type World struct {
	id       string
	terrain  Terrain
	entities map[entity.ID]*entity.Entity
}

func New(id string, terrain Terrain) *World {
	return &World{
		id:       id,
		terrain:  terrain,
		entities: make(map[entity.ID]*entity.Entity),
	}
}

func (w *World) ID() string { return w.id }

// Terrain returns the payload sent to clients joining this world.
func (w *World) Terrain() Terrain { return w.terrain }

func (w *World) RegisterEntity(e *entity.Entity) error {
	if e == nil {
		return errors.New("world: nil entity")
	}
	if _, exists := w.entities[e.ID]; exists {
		return fmt.Errorf("%w: %d in %s", ErrDuplicateEntity, e.ID, w.id)
	}
	w.entities[e.ID] = e
	return nil
}

// RemoveEntity drops the entity with id. Absent ids are ignored.
func (w *World) RemoveEntity(id entity.ID) {
	delete(w.entities, id)
}

func (w *World) Get(id entity.ID) (*entity.Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

func (w *World) Len() int { return len(w.entities) }

// Entities returns every entity, dead or alive, ordered by id.
func (w *World) Entities() []*entity.Entity {
	ids := w.sortedIDs()
	out := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.entities[id])
	}
	return out
}

// Alive returns the live entities ordered by id.
func (w *World) Alive() []*entity.Entity {
	ids := w.sortedIDs()
	out := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		if e := w.entities[id]; !e.IsDead() {
			out = append(out, e)
		}
	}
	return out
}

// CollectGarbage removes every dead entity and returns the removed ids.
func (w *World) CollectGarbage() []entity.ID {
	var removed []entity.ID
	for _, id := range w.sortedIDs() {
		if w.entities[id].IsDead() {
			delete(w.entities, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (w *World) sortedIDs() []entity.ID {
	ids := make([]entity.ID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
